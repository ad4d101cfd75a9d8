package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/weftworks/weft"
	"github.com/weftworks/weft/confmap"
)

const historyWindow = 20

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func replCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Interactively evaluate expressions against a config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "config file to load",
				Required: true,
				Sources:  cli.EnvVars("WEFT_CONFIG"),
			},
		},
		Action: runRepl,
	}
}

func runRepl(_ context.Context, cmd *cli.Command) error {
	container, err := loadContainer(cmd.String("file"))
	if err != nil {
		return err
	}

	model := newReplModel(container, weft.Default())

	_, err = tea.NewProgram(model).Run()

	return err
}

type replEntry struct {
	input  string
	output string
	failed bool
}

type replModel struct {
	input     textinput.Model
	history   []replEntry
	container *confmap.Container
	resolvers *weft.ResolverRegistry
}

func newReplModel(container *confmap.Container, resolvers *weft.ResolverRegistry) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("weft> ")
	ti.Placeholder = "${some.key} or ${resolver:args}"
	ti.Focus()

	return &replModel{
		input:     ti,
		container: container,
		resolvers: resolvers,
	}
}

// Init implements tea.Model.
func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			if line != "" {
				m.history = append(m.history, m.evaluate(line))
				m.input.SetValue("")
			}

			return m, nil
		}
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

// View implements tea.Model.
func (m *replModel) View() string {
	var view string

	start := 0
	if len(m.history) > historyWindow {
		start = len(m.history) - historyWindow
	}

	for _, entry := range m.history[start:] {
		view += dimStyle.Render("weft> ") + entry.input + "\n"

		if entry.failed {
			view += failStyle.Render(entry.output) + "\n"
		} else {
			view += okStyle.Render(entry.output) + "\n"
		}
	}

	view += m.input.View() + "\n"
	view += dimStyle.Render("enter to evaluate, esc to quit") + "\n"

	return view
}

func (m *replModel) evaluate(line string) replEntry {
	ast, err := weft.Parse(line)
	if err != nil {
		return replEntry{input: line, output: err.Error(), failed: true}
	}

	ctx := weft.StrictContext()
	ctx.Parent = m.container.Root()

	v, err := weft.Evaluate(ast, m.container, m.resolvers, ctx)
	if err != nil {
		return replEntry{input: line, output: err.Error(), failed: true}
	}

	v, err = weft.Materialize(v, m.container, m.resolvers, ctx)
	if err != nil {
		return replEntry{input: line, output: err.Error(), failed: true}
	}

	return replEntry{input: line, output: fmt.Sprintf("%s (%s)", v, v.Kind())}
}
