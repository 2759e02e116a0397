package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/logging"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
	"github.com/sant0-9/promptforge/internal/store"
)

// env is everything a subcommand needs, built from the config file.
type env struct {
	cfg       *config.Config
	cfgPath   string
	logger    *zap.Logger
	store     *store.Store
	provider  llm.Provider
	retriever *rag.Retriever
	engine    *session.Engine
}

var errNoConfig = errors.New("no configuration found; run `promptforge chat` to set up, or pass --config")

func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// newEnv opens the store and logger for cfg. console tees logs to stderr;
// the TUI disables it because it owns the terminal. The provider is only
// built when withProvider is set.
func newEnv(opts *rootOptions, cfg *config.Config, cfgPath string, console, withProvider bool) (*env, error) {
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	logger, err := logging.New(logging.Options{
		FilePath: filepath.Join(dataDir, "logs", appName+".log"),
		Level:    cfg.LogLevel,
		Console:  console && cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, err
	}

	st, err := store.OpenDir(dataDir, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	e := &env{
		cfg:       cfg,
		cfgPath:   cfgPath,
		logger:    logger,
		store:     st,
		retriever: rag.NewRetriever(cfg.Retrieval, logger),
	}

	if withProvider {
		provider, err := llm.NewProvider(cfg)
		if err != nil {
			e.close()
			return nil, err
		}
		e.provider = provider
		e.engine = session.NewEngine(provider, cfg, e.retriever, st, st, logger)
	}

	logger.Debug("environment ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("data_dir", dataDir))
	return e, nil
}

// open loads the config and builds an env; a missing config is an error.
func open(opts *rootOptions, withProvider bool) (*env, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errNoConfig
	}
	return newEnv(opts, cfg, path, true, withProvider)
}

func (e *env) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

// session returns the session named by --session, else the most recent
// one, else a new one.
func (e *env) session(ctx context.Context, id string) (*session.Session, error) {
	if id != "" {
		return e.store.LoadSession(ctx, id)
	}
	s, err := e.store.LatestSession(ctx)
	if errors.Is(err, session.ErrSessionNotFound) {
		s = session.New()
		return s, e.store.SaveSession(ctx, s)
	}
	return s, err
}
