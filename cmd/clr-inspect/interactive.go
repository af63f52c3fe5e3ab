package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/clr-bridge/bridge"
	"github.com/wippyai/clr-bridge/functable"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	asmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectAssembly modelState = iota
	stateBrowseTypes
	stateLookup
	stateShowResult
)

type interactiveModel struct {
	alc        *bridge.LoadContext
	assemblies []*bridge.Assembly
	result     string
	input      textinput.Model
	selected   int
	typeCursor int
	state      modelState
	found      bool
}

func newInteractiveModel(alc *bridge.LoadContext) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "Namespace.TypeName"
	ti.Prompt = "type: "
	ti.Width = 48

	return &interactiveModel{
		alc:        alc,
		assemblies: alc.Assemblies(),
		input:      ti,
		state:      stateSelectAssembly,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) current() *bridge.Assembly {
	if m.selected < len(m.assemblies) {
		return m.assemblies[m.selected]
	}
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateLookup {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.input.Blur()
			m.state = stateSelectAssembly
			return m, nil
		case "enter":
			m.lookup(strings.TrimSpace(m.input.Value()))
			m.input.Blur()
			m.state = stateShowResult
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		switch m.state {
		case stateSelectAssembly:
			if m.selected > 0 {
				m.selected--
			}
		case stateBrowseTypes:
			if m.typeCursor > 0 {
				m.typeCursor--
			}
		}

	case "down", "j":
		switch m.state {
		case stateSelectAssembly:
			if m.selected < len(m.assemblies)-1 {
				m.selected++
			}
		case stateBrowseTypes:
			if asm := m.current(); asm != nil && m.typeCursor < len(asm.GetTypes())-1 {
				m.typeCursor++
			}
		}

	case "enter":
		switch m.state {
		case stateSelectAssembly:
			if asm := m.current(); asm != nil && asm.Loaded() {
				m.typeCursor = 0
				m.state = stateBrowseTypes
			}
		case stateShowResult:
			m.state = stateSelectAssembly
			m.result = ""
		}

	case "/":
		if m.state != stateShowResult {
			m.input.SetValue("")
			m.input.Focus()
			m.state = stateLookup
		}

	case "esc":
		switch m.state {
		case stateBrowseTypes, stateShowResult:
			m.state = stateSelectAssembly
			m.result = ""
		}
	}

	return m, nil
}

func (m *interactiveModel) lookup(name string) {
	t := m.alc.GetType(name)
	m.found = !t.IsNull()
	if m.found {
		m.result = fmt.Sprintf("%s  id %#x", t.Name(), uint64(t.ID()))
	} else {
		m.result = fmt.Sprintf("%s: not found", name)
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CLR Inspector"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%s (id %d)", m.alc.Name(), m.alc.ID()))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectAssembly:
		if len(m.assemblies) == 0 {
			b.WriteString("No assemblies loaded.\n")
		} else {
			b.WriteString("Select an assembly:\n\n")
		}
		for i, asm := range m.assemblies {
			line := formatAssembly(asm)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter types • / find type • q quit"))

	case stateBrowseTypes:
		asm := m.current()
		b.WriteString(fmt.Sprintf("Types in %s:\n\n", asmStyle.Render(asm.Name())))
		for i, t := range asm.GetTypes() {
			if i == m.typeCursor {
				b.WriteString(selectedStyle.Render("> " + t.Name()))
			} else {
				b.WriteString("  " + typeStyle.Render(t.Name()))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ move • / find type • esc back • q quit"))

	case stateLookup:
		b.WriteString("Find a type by qualified name:\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter find • esc back"))

	case stateShowResult:
		if m.found {
			b.WriteString(resultStyle.Render(m.result))
		} else {
			b.WriteString(errorStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatAssembly(asm *bridge.Assembly) string {
	if asm.LoadStatus() != functable.LoadSuccess {
		return asm.Path() + " " + errorStyle.Render(asm.LoadStatus().String())
	}
	return asmStyle.Render(asm.Name()) + " " + typeStyle.Render(fmt.Sprintf("%d types", len(asm.GetTypes())))
}

func runInteractive(table *functable.Table, opts options) error {
	host, alc, err := loadAll(table, opts)
	if err != nil {
		return err
	}
	defer host.Close()

	p := tea.NewProgram(newInteractiveModel(alc), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
