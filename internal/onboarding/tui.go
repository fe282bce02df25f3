package onboarding

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tableagent/internal/catalog"
	"tableagent/internal/config"
)

// --- Styles ---

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	titleStyle   = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1).
			Bold(true)

	docStyle = lipgloss.NewStyle().Padding(1, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Padding(0, 1)

	windowStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1)
)

// --- Types ---

type state int

const (
	stateProvider state = iota
	stateAPIKey
	stateEndpoint
	stateModel
	stateDataDir
	stateOutputDir
	stateMiddlewares
	stateDone
)

var tabs = []string{"Provider", "Model", "Data", "Middlewares", "Finish"}

func (s state) tab() int {
	switch s {
	case stateProvider, stateAPIKey, stateEndpoint:
		return 0
	case stateModel:
		return 1
	case stateDataDir, stateOutputDir:
		return 2
	case stateMiddlewares:
		return 3
	default:
		return 4
	}
}

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type savedMsg struct{ err error }

type TUIModel struct {
	state state
	path  string
	file  config.File

	listLocal func(baseURL string) []string

	list     list.Model
	input    textinput.Model
	saveErr  error
	saved    bool
	quitting bool
	width    int
	height   int

	cursor int // for middleware list
}

// --- Initial Model ---

// NewTUIModel starts the wizard; the result is written to path.
func NewTUIModel(path string) TUIModel {
	items := make([]list.Item, len(providers))
	for i, p := range providers {
		items[i] = item{title: string(p.id), desc: p.desc}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select AI Provider"
	l.SetShowHelp(false)

	ti := textinput.New()
	ti.Focus()

	return TUIModel{
		state:     stateProvider,
		path:      path,
		list:      l,
		input:     ti,
		listLocal: LocalModels,
		file:      config.File{Middlewares: defaultMiddlewares()},
	}
}

func (m TUIModel) Init() tea.Cmd {
	return nil
}

// File is what the wizard collected so far.
func (m TUIModel) File() config.File { return m.file }

// Err reports a failure to write the config file.
func (m TUIModel) Err() error { return m.saveErr }

func (m *TUIModel) prompt(label, value string, secret bool) {
	m.input.Prompt = label
	m.input.SetValue(value)
	m.input.Placeholder = ""
	if secret {
		m.input.EchoMode = textinput.EchoPassword
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
}

func (m *TUIModel) showModels() {
	provider := catalog.Provider(m.file.Provider)
	var items []list.Item
	if provider == catalog.ProviderOllama {
		m.list.Title = "Select Local Model"
		for _, name := range m.listLocal(m.file.OllamaBaseURL) {
			items = append(items, item{title: name, desc: "Local Ollama model"})
		}
		if len(items) == 0 {
			for _, name := range catalog.ToolCapableModels() {
				items = append(items, item{title: name, desc: "Not pulled yet, downloaded on first run"})
			}
		}
	} else {
		m.list.Title = "Select Cloud Model"
		for _, name := range cloudModels(provider) {
			items = append(items, item{title: name, desc: string(provider)})
		}
	}
	m.list.SetItems(items)
	m.list.Select(0)
	m.state = stateModel
}

func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			// Text inputs take q as a character.
			if m.state == stateProvider || m.state == stateModel || m.state == stateMiddlewares {
				m.quitting = true
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-10, msg.Height-15)

	case savedMsg:
		m.saved = true
		m.saveErr = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	enter := false
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		enter = true
	}

	switch m.state {
	case stateProvider:
		m.list, cmd = m.list.Update(msg)
		if enter {
			if i, ok := m.list.SelectedItem().(item); ok {
				m.file.Provider = i.title
				if catalog.Provider(i.title) == catalog.ProviderOllama {
					m.file.OllamaBaseURL = config.DefaultOllamaURL
					m.showModels()
				} else {
					m.state = stateAPIKey
					m.prompt(fmt.Sprintf("%s API Key: ", i.title), "", true)
					m.input.Placeholder = "leave empty to use " + keyEnv(catalog.Provider(i.title))
				}
			}
		}

	case stateAPIKey:
		m.input, cmd = m.input.Update(msg)
		if enter {
			m.file.APIKey = strings.TrimSpace(m.input.Value())
			switch catalog.Provider(m.file.Provider) {
			case catalog.ProviderAzureOpenAI:
				m.state = stateEndpoint
				m.prompt("Azure OpenAI endpoint: ", "", false)
			case catalog.ProviderOpenAI:
				m.state = stateEndpoint
				m.prompt("Base URL (optional): ", "", false)
			default:
				m.showModels()
			}
		}

	case stateEndpoint:
		m.input, cmd = m.input.Update(msg)
		if enter {
			m.file.BaseURL = strings.TrimSpace(m.input.Value())
			m.showModels()
		}

	case stateModel:
		m.list, cmd = m.list.Update(msg)
		if enter {
			if i, ok := m.list.SelectedItem().(item); ok {
				m.file.Model = i.title
				m.state = stateDataDir
				m.prompt("Data directory: ", config.DefaultDataDir, false)
			}
		}

	case stateDataDir:
		m.input, cmd = m.input.Update(msg)
		if enter {
			m.file.DataDir = valueOr(m.input.Value(), config.DefaultDataDir)
			m.state = stateOutputDir
			m.prompt("Chart output directory: ", config.DefaultOutputDir, false)
		}

	case stateOutputDir:
		m.input, cmd = m.input.Update(msg)
		if enter {
			m.file.OutputDir = valueOr(m.input.Value(), config.DefaultOutputDir)
			m.state = stateMiddlewares
		}

	case stateMiddlewares:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
			case "down", "j":
				if m.cursor < len(m.file.Middlewares)-1 {
					m.cursor++
				}
			case " ":
				if len(m.file.Middlewares) > 0 {
					m.file.Middlewares[m.cursor].Enabled = !m.file.Middlewares[m.cursor].Enabled
				}
			case "enter":
				m.state = stateDone
				return m, m.saveConfig()
			}
		}

	case stateDone:
		if _, ok := msg.(tea.KeyMsg); ok && m.saved {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, cmd
}

func valueOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func (m TUIModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(" tableagent setup "))
	s.WriteString("\n\n")

	renderedTabs := make([]string, len(tabs))
	for i, t := range tabs {
		if i == m.state.tab() {
			renderedTabs[i] = activeTabStyle.Render(t)
		} else {
			renderedTabs[i] = inactiveTabStyle.Render(t)
		}
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...))
	s.WriteString("\n\n")

	var content string
	switch m.state {
	case stateProvider, stateModel:
		content = m.list.View()
	case stateAPIKey, stateEndpoint, stateDataDir, stateOutputDir:
		content = "\n" + m.input.View() + "\n\n" + helpStyle.Render("Press enter to continue")
	case stateMiddlewares:
		var mwView strings.Builder
		mwView.WriteString("Toggle middlewares with [SPACE], Press [ENTER] to finish.\n\n")
		for i, mw := range m.file.Middlewares {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
			}
			checked := " "
			if mw.Enabled {
				checked = "x"
			}
			line := fmt.Sprintf("%s [%s] %s", cursor, checked, mw.ID)
			if m.cursor == i {
				mwView.WriteString(focusedStyle.Render(line) + "\n")
			} else {
				mwView.WriteString(line + "\n")
			}
		}
		content = mwView.String()
	case stateDone:
		switch {
		case !m.saved:
			content = fmt.Sprintf("\nSaving configuration to %s...", m.path)
		case m.saveErr != nil:
			content = "\n" + errStyle.Render(fmt.Sprintf("Could not save %s: %v", m.path, m.saveErr)) + "\nPress any key to exit."
		default:
			content = fmt.Sprintf("\nSaved %s.\nDone! Press any key to exit.", m.path)
		}
	}

	s.WriteString(windowStyle.Width(max(m.width-10, 40)).Height(max(m.height-15, 8)).Render(content))

	if m.state != stateDone {
		s.WriteString("\n\n" + helpStyle.Render("q/ctrl+c: quit • ↑/↓: navigate • enter: select"))
	}

	return docStyle.Render(s.String())
}

func (m TUIModel) saveConfig() tea.Cmd {
	f := m.file
	path := m.path
	return func() tea.Msg {
		return savedMsg{err: f.SaveToFile(path)}
	}
}

// --- Runner ---

// RunTUI runs the wizard and writes the config file to path.
func RunTUI(path string) error {
	p := tea.NewProgram(NewTUIModel(path), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	m, ok := final.(TUIModel)
	if !ok {
		return nil
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	if !m.saved {
		return fmt.Errorf("setup canceled")
	}
	return nil
}

// RunPlain runs the line-based wizard and writes the config file to path.
func RunPlain(w *Wizard, path string) error {
	f, err := w.Run()
	if err != nil {
		return err
	}
	if err := f.SaveToFile(path); err != nil {
		return err
	}
	fmt.Fprintf(w.out, "\nSaved %s.\n", config.ExpandHome(path))
	return nil
}
