package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sant0-9/promptforge/internal/config"
)

const logo = `
 ___                      _   ___
| _ \_ _ ___ _ __  _ __| |_| __|__ _ _ __ _ ___
|  _/ '_/ _ \ '  \| '_ \  _| _/ _ \ '_/ _' / -_)
|_| |_| \___/_|_|_| .__/\__|_|\___/_| \__, \___|
                  |_|                 |___/
`

// Setup is the first-run wizard: pick a provider and, if it needs one,
// enter an API key. The caller saves the resulting config.
type Setup struct {
	width  int
	height int

	config           *config.Config
	step             int
	selectedProvider int
	apiKeyInput      textinput.Model

	done      bool
	cancelled bool
}

func NewSetup(cfg *config.Config) *Setup {
	apiKey := textinput.New()
	apiKey.Placeholder = "Paste your API key here..."
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.CharLimit = 200
	apiKey.Width = 50

	return &Setup{config: cfg, apiKeyInput: apiKey}
}

// Config returns the configured settings.
func (m *Setup) Config() *config.Config { return m.config }

// Done reports whether the wizard completed rather than being cancelled.
func (m *Setup) Done() bool { return m.done && !m.cancelled }

func (m *Setup) Init() tea.Cmd {
	return tea.WindowSize()
}

func (m *Setup) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			return m, tea.Quit
		}
		switch m.step {
		case 0: // Provider selection
			switch msg.String() {
			case "esc":
				m.cancelled = true
				return m, tea.Quit
			case "up", "k":
				if m.selectedProvider > 0 {
					m.selectedProvider--
				}
			case "down", "j":
				if m.selectedProvider < len(config.Providers)-1 {
					m.selectedProvider++
				}
			case "enter":
				provider := config.Providers[m.selectedProvider]
				m.config.Provider = provider.ID
				m.config.Model = provider.DefaultModel
				m.config.BaseURL = provider.BaseURL

				if provider.NeedsAPIKey {
					m.step = 1
					m.apiKeyInput.Focus()
					return m, textinput.Blink
				}
				m.done = true
				return m, tea.Quit
			}
			return m, nil

		case 1: // API key entry
			switch msg.String() {
			case "esc":
				m.step = 0
				m.apiKeyInput.Reset()
				return m, nil
			case "enter":
				key := strings.TrimSpace(m.apiKeyInput.Value())
				if key == "" {
					return m, nil
				}
				m.config.APIKey = key
				m.done = true
				return m, tea.Quit
			}
		}
	}

	if m.step == 1 {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Setup) View() string {
	if m.done || m.cancelled {
		return ""
	}
	switch m.step {
	case 1:
		return m.renderAPIKeyEntry()
	default:
		return m.renderProviderSelection()
	}
}

func (m *Setup) renderProviderSelection() string {
	var b strings.Builder

	// Header
	header := styleTitle.Render(logo)
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, header))
	b.WriteString("\n\n")

	// Title
	title := lipgloss.NewStyle().
		Foreground(colorWhite).
		Bold(true).
		Render("Welcome! Choose your LLM provider:")
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, title))
	b.WriteString("\n\n")

	// Provider list
	var providerLines []string
	for i, p := range config.Providers {
		var line string
		cursor := "  "
		if i == m.selectedProvider {
			cursor = "> "
			line = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				Render(fmt.Sprintf("%s[x] %-12s %s", cursor, p.Name, p.Description))
		} else {
			line = lipgloss.NewStyle().
				Foreground(colorMuted).
				Render(fmt.Sprintf("%s[ ] %-12s %s", cursor, p.Name, p.Description))
		}
		providerLines = append(providerLines, line)
	}

	providerBox := styleBox.
		Width(64).
		Render(strings.Join(providerLines, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, providerBox))
	b.WriteString("\n\n")

	// Instructions
	instructions := styleStatusBar.Render("[j/k] Navigate  [Enter] Select  [Esc] Quit")
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, instructions))

	return centerVertically(b.String(), m.height)
}

func (m *Setup) renderAPIKeyEntry() string {
	var b strings.Builder

	provider := config.GetProvider(m.config.Provider)

	// Header
	header := styleTitle.Render(logo)
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, header))
	b.WriteString("\n\n")

	// Title
	title := lipgloss.NewStyle().
		Foreground(colorWhite).
		Bold(true).
		Render(fmt.Sprintf("Enter your %s API key:", provider.Name))
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, title))
	b.WriteString("\n\n")

	// Signup link
	if provider.SignupURL != "" {
		link := styleSubtitle.Render(fmt.Sprintf("Get one at: %s", provider.SignupURL))
		b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, link))
		b.WriteString("\n\n")
	}

	// Input
	inputBox := styleBox.
		Width(60).
		BorderForeground(colorSecondary).
		Render(m.apiKeyInput.View())
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, inputBox))
	b.WriteString("\n\n")

	// Instructions
	instructions := styleStatusBar.Render("[Enter] Continue  [Esc] Back")
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, instructions))

	return centerVertically(b.String(), m.height)
}
