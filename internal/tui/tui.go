// Package tui implements the terminal grid viewer behind `nestgrid
// view`: a read-only, scrollable rendering of a workspace with search.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/grid"
)

// ValueFunc computes the displayed string for one cell.
type ValueFunc func(row *core.Row, col *core.Column) string

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Search   key.Binding
	Sort     key.Binding
	SortAdd  key.Binding
	Clear    key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k")),
	Down:     key.NewBinding(key.WithKeys("down", "j")),
	Left:     key.NewBinding(key.WithKeys("left", "h")),
	Right:    key.NewBinding(key.WithKeys("right", "l")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d")),
	Top:      key.NewBinding(key.WithKeys("g", "home")),
	Bottom:   key.NewBinding(key.WithKeys("G", "end")),
	Search:   key.NewBinding(key.WithKeys("/")),
	Sort:     key.NewBinding(key.WithKeys("s")),
	SortAdd:  key.NewBinding(key.WithKeys("S")),
	Clear:    key.NewBinding(key.WithKeys("esc")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	statusStyle   = lipgloss.NewStyle().Faint(true)
	errCellStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Model is the bubbletea model for the grid viewer.
type Model struct {
	workspace *core.Workspace
	columns   []*core.Column
	allRows   []*core.Row
	rows      []*core.Row
	value     ValueFunc

	cursor    int
	colOffset int
	width     int
	height    int

	searching bool
	search    textinput.Model
	query     string
	sorts     []*core.Sort
}

// New creates a viewer over the given pipeline output. rows should
// already have the workspace's saved filters and sorts applied.
func New(ws *core.Workspace, columns []*core.Column, rows []*core.Row, value ValueFunc) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.CharLimit = 64
	return Model{
		workspace: ws,
		columns:   columns,
		allRows:   rows,
		rows:      rows,
		value:     value,
		width:     80,
		height:    24,
		search:    ti,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			switch msg.Type {
			case tea.KeyEnter:
				m.searching = false
				m.applySearch(m.search.Value())
				return m, nil
			case tea.KeyEsc:
				m.searching = false
				m.search.SetValue("")
				m.applySearch("")
				return m, nil
			}
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.moveCursor(-1)
		case key.Matches(msg, keys.Down):
			m.moveCursor(1)
		case key.Matches(msg, keys.PageUp):
			m.moveCursor(-m.pageSize())
		case key.Matches(msg, keys.PageDown):
			m.moveCursor(m.pageSize())
		case key.Matches(msg, keys.Top):
			m.cursor = 0
		case key.Matches(msg, keys.Bottom):
			m.cursor = len(m.rows) - 1
			if m.cursor < 0 {
				m.cursor = 0
			}
		case key.Matches(msg, keys.Left):
			if m.colOffset > 0 {
				m.colOffset--
			}
		case key.Matches(msg, keys.Right):
			if m.colOffset < len(m.columns)-1 {
				m.colOffset++
			}
		case key.Matches(msg, keys.Search):
			m.searching = true
			m.search.Focus()
			return m, textinput.Blink
		case key.Matches(msg, keys.Sort):
			m.cycleSort(false)
		case key.Matches(msg, keys.SortAdd):
			m.cycleSort(true)
		case key.Matches(msg, keys.Clear):
			m.search.SetValue("")
			m.applySearch("")
		}
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) pageSize() int {
	if h := m.height - 4; h > 1 {
		return h
	}
	return 1
}

func (m *Model) applySearch(query string) {
	m.query = query
	m.refresh()
}

// cycleSort advances the leftmost visible column through
// unset -> asc -> desc -> unset; tieBreak keeps the other sort keys.
func (m *Model) cycleSort(tieBreak bool) {
	if m.colOffset >= len(m.columns) {
		return
	}
	col := m.columns[m.colOffset]
	if tieBreak {
		m.sorts = grid.AppendSort(m.sorts, m.workspace.ID, col.ID)
	} else {
		m.sorts = grid.CycleSort(m.sorts, m.workspace.ID, col.ID)
	}
	m.refresh()
}

func (m *Model) refresh() {
	value := func(row *core.Row, columnID string) string {
		for _, col := range m.columns {
			if col.ID == columnID {
				return m.value(row, col)
			}
		}
		return ""
	}
	rows := grid.ApplySearch(m.allRows, m.columns, m.query, value)
	m.rows = grid.ApplySorts(rows, m.columns, m.sorts, value)
	if m.cursor >= len(m.rows) {
		m.cursor = 0
	}
}

// colWidth converts the persisted pixel width to terminal cells.
func colWidth(col *core.Column) int {
	w := grid.ClampWidth(col.Width) / 8
	if w < 8 {
		w = 8
	}
	if w > 40 {
		w = 40
	}
	return w
}

func pad(s string, w int) string {
	r := []rune(s)
	if len(r) > w {
		return string(r[:w-1]) + "…"
	}
	return s + strings.Repeat(" ", w-len(r))
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	visible := m.visibleColumns()
	header := pad("#", 5)
	for _, col := range visible {
		header += " " + pad(col.Name+m.sortMarker(col.ID), colWidth(col))
	}
	b.WriteString(headerStyle.Render(pad(header, m.width)))
	b.WriteString("\n")

	top := m.scrollTop()
	bottom := top + m.pageSize()
	if bottom > len(m.rows) {
		bottom = len(m.rows)
	}
	for i := top; i < bottom; i++ {
		row := m.rows[i]
		line := pad(fmt.Sprintf("%d", i+1), 5)
		hasError := false
		for _, col := range visible {
			v := m.value(row, col)
			if strings.HasPrefix(v, "#ERROR:") {
				hasError = true
			}
			line = line + " " + pad(strings.ReplaceAll(v, "\n", " "), colWidth(col))
		}
		line = pad(line, m.width)
		switch {
		case i == m.cursor:
			line = selectedStyle.Render(line)
		case hasError:
			line = errCellStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) visibleColumns() []*core.Column {
	cols := m.columns
	if m.colOffset < len(cols) {
		cols = cols[m.colOffset:]
	}
	avail := m.width - 6
	out := make([]*core.Column, 0, len(cols))
	for _, col := range cols {
		w := colWidth(col) + 1
		if avail-w < 0 && len(out) > 0 {
			break
		}
		avail -= w
		out = append(out, col)
	}
	return out
}

func (m Model) scrollTop() int {
	page := m.pageSize()
	top := m.cursor - page/2
	if top > len(m.rows)-page {
		top = len(m.rows) - page
	}
	if top < 0 {
		top = 0
	}
	return top
}

func (m Model) statusLine() string {
	if m.searching {
		return m.search.View()
	}
	status := fmt.Sprintf("%s — %d rows", m.workspace.Name, len(m.rows))
	if m.query != "" {
		status += fmt.Sprintf(" (search: %q)", m.query)
	}
	if m.workspace.Sandbox {
		status += "  [SANDBOX]"
	}
	status += "  ·  /:search  s:sort  S:add sort  esc:clear  q:quit"
	return statusStyle.Render(status)
}

func (m Model) sortMarker(columnID string) string {
	for _, s := range m.sorts {
		if s.ColumnID != columnID {
			continue
		}
		if s.Direction == core.SortDesc {
			return " ▼"
		}
		return " ▲"
	}
	return ""
}

// Run starts the viewer and blocks until the user quits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
