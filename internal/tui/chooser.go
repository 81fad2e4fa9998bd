// Package tui provides the terminal chooser used when a run is interactive.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"plansheet/internal/selector"
)

// Chooser implements selector.Chooser with a filterable bubbletea list.
type Chooser struct {
	In  io.Reader
	Out io.Writer
}

// New returns a Chooser on stdin, drawing to stderr so stdout stays clean.
func New() *Chooser {
	return &Chooser{In: os.Stdin, Out: os.Stderr}
}

func (c *Chooser) Choose(ctx context.Context, title string, options []selector.Option) (int, bool, error) {
	if len(options) == 0 {
		return -1, false, nil
	}
	m := newPickModel(title, options)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(c.In),
		tea.WithOutput(c.Out),
	)
	final, err := p.Run()
	if err != nil {
		return -1, false, fmt.Errorf("tui: %w", err)
	}
	pm, ok := final.(pickModel)
	if !ok || pm.chosen < 0 {
		return -1, false, nil
	}
	return pm.chosen, true, nil
}

// optionItem wraps an Option for the list display.
type optionItem struct {
	opt selector.Option
}

func (i optionItem) Title() string       { return i.opt.Label }
func (i optionItem) Description() string { return "id " + i.opt.ID }
func (i optionItem) FilterValue() string { return i.opt.Label }

type pickModel struct {
	list   list.Model
	chosen int
}

func newPickModel(title string, options []selector.Option) pickModel {
	items := make([]list.Item, len(options))
	for i, o := range options {
		items[i] = optionItem{opt: o}
	}
	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)
	delegate.SetSpacing(0)

	l := list.New(items, delegate, 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#6BCB77"))

	return pickModel{list: l, chosen: -1}
}

func (m pickModel) Init() tea.Cmd { return nil }

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := msg.Height - 2
		if h < 5 {
			h = msg.Height
		}
		m.list.SetSize(msg.Width-2, h)
		return m, nil

	case tea.KeyMsg:
		// While the filter prompt is open, keys belong to the list.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.chosen = -1
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(optionItem); ok {
				m.chosen = m.indexOf(item.opt.ID)
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) indexOf(id string) int {
	for i, it := range m.list.Items() {
		if oi, ok := it.(optionItem); ok && oi.opt.ID == id {
			return i
		}
	}
	return -1
}

func (m pickModel) View() string {
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render("enter to select · / to filter · esc to cancel")
	return m.list.View() + "\n" + hint
}
