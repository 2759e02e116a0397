package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sant0-9/promptforge/internal/config"
)

var efforts = []string{config.EffortLow, config.EffortMedium, config.EffortHigh}

func (a *App) renderSettings() string {
	switch a.state.settingsMode {
	case "model":
		return a.renderSettingsModel()
	default:
		return a.renderSettingsMain()
	}
}

func (a *App) handleSettingsKey(msg tea.KeyMsg) tea.Cmd {
	s := a.state
	cfg := s.config
	if s.streaming {
		return nil
	}

	if s.settingsMode == "model" {
		models := a.models()
		switch msg.String() {
		case "up", "k":
			if s.settingsSelected > 0 {
				s.settingsSelected--
			}
		case "down", "j":
			if s.settingsSelected < len(models)-1 {
				s.settingsSelected++
			}
		case "enter":
			if len(models) > 0 {
				cfg.Model = models[s.settingsSelected]
			}
			s.settingsMode = ""
		case "esc":
			s.settingsMode = ""
		}
		return nil
	}

	switch msg.String() {
	case "e":
		i := 0
		for j, e := range efforts {
			if e == cfg.ReasoningEffort {
				i = j
			}
		}
		cfg.ReasoningEffort = efforts[(i+1)%len(efforts)]
	case "m":
		cfg.Maker = !cfg.Maker
	case "o":
		s.settingsMode = "model"
		s.settingsSelected = 0
	case "w":
		if err := a.saveConfig(); err != nil {
			s.setNotice("Could not save settings: "+err.Error(), true)
		} else {
			s.setNotice("Settings saved.", false)
		}
	}
	return nil
}

func (a *App) saveConfig() error {
	if a.deps.ConfigPath != "" {
		return a.state.config.SaveFile(a.deps.ConfigPath)
	}
	return a.state.config.Save()
}

func (a *App) models() []string {
	p := config.GetProvider(a.state.config.Provider)
	if p == nil {
		return nil
	}
	return p.Models
}

func (a *App) renderSettingsMain() string {
	var b strings.Builder
	cfg := a.state.config

	// Title
	title := lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		Render("Settings")
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, title))
	b.WriteString("\n\n")

	// Current config
	provider := config.GetProvider(cfg.Provider)
	providerName := cfg.Provider
	if provider != nil {
		providerName = provider.Name
	}

	// Mask API key
	maskedKey := "Not set"
	if cfg.APIKey != "" {
		if len(cfg.APIKey) > 8 {
			maskedKey = cfg.APIKey[:4] + "****" + cfg.APIKey[len(cfg.APIKey)-4:]
		} else {
			maskedKey = "****"
		}
	}

	configLines := []string{
		fmt.Sprintf("  Provider:  %s", providerName),
		fmt.Sprintf("  Model:     %s", cfg.Model),
		fmt.Sprintf("  API Key:   %s", maskedKey),
		fmt.Sprintf("  Effort:    %s", cfg.ReasoningEffort),
		fmt.Sprintf("  Maker:     %s", onOff(cfg.Maker)),
		fmt.Sprintf("  Context:   %d tokens", cfg.ContextSize),
		fmt.Sprintf("  History:   %d messages", cfg.HistoryLimit),
		fmt.Sprintf("  Thinking:  %s max", cfg.ThinkingTimeout),
	}

	configBox := styleBox.
		Width(50).
		Render(strings.Join(configLines, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, configBox))
	b.WriteString("\n\n")

	// Actions
	actions := []string{
		"  [e] Cycle reasoning effort",
		"  [m] Toggle maker mode",
		"  [o] Choose model",
		"  [w] Write to config file",
	}
	actionsBox := styleBox.
		Width(50).
		Render(strings.Join(actions, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, actionsBox))
	b.WriteString("\n\n")

	if a.state.notice != "" {
		b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, styleSubtitle.Render(a.state.notice)))
		b.WriteString("\n\n")
	}

	// Instructions
	instructions := styleStatusBar.Render("[Esc] Back")
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, instructions))

	return a.centerVertically(b.String())
}

func (a *App) renderSettingsModel() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		Render("Select Model")
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, title))
	b.WriteString("\n\n")

	models := a.models()
	if len(models) == 0 {
		desc := styleSubtitle.Render("This provider has no model list; set model in the config file.")
		b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, desc))
		return a.centerVertically(b.String())
	}

	var lines []string
	for i, model := range models {
		cursor := "  "
		if i == a.state.settingsSelected {
			cursor = "> "
		}
		// Mark current model
		current := ""
		if model == a.state.config.Model {
			current = " (current)"
		}
		line := fmt.Sprintf("%s%s%s", cursor, model, current)
		if i == a.state.settingsSelected {
			line = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render(line)
		}
		lines = append(lines, line)
	}

	listBox := styleBox.
		Width(50).
		Render(strings.Join(lines, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, listBox))
	b.WriteString("\n\n")

	instructions := styleStatusBar.Render("[Up/Down] Navigate  [Enter] Select  [Esc] Cancel")
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, instructions))

	return a.centerVertically(b.String())
}
