package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/ejb-bridge/bridge"
	"github.com/wippyai/ejb-bridge/handle"
	"github.com/wippyai/ejb-bridge/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var (
	dbType   = handle.TagOf[*storage.MemoryDB]().String()
	snapType = handle.TagOf[*storage.Snapshot]().String()
	forkType = handle.TagOf[*storage.Fork]().String()
	listType = handle.TagOf[*storage.ListIndex]().String()
)

// listName is the list every "l" keypress binds to.
const listName = "items"

type modelState int

const (
	stateBrowse modelState = iota
	stateInputItem
)

type interactiveModel struct {
	err    error
	rt     *bridge.Runtime
	result string
	input  textinput.Model
	table  table.Model
	state  modelState
	target int64
}

func newInteractiveModel(rt *bridge.Runtime) *interactiveModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Handle", Width: 10},
			{Title: "Type", Width: 22},
			{Title: "Detail", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4"))
	t.SetStyles(s)

	ti := textinput.New()
	ti.Prompt = "item: "
	ti.Width = 40

	m := &interactiveModel{rt: rt, table: t, input: ti, state: stateBrowse}
	m.refresh()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateInputItem {
		switch key.String() {
		case "enter":
			m.report("list_add", m.rt.ListAdd(m.target, []byte(m.input.Value())))
			m.closeInput()
		case "esc":
			m.closeInput()
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "n":
		raw := m.rt.NewMemoryDB()
		m.result, m.err = fmt.Sprintf("memorydb_new -> %d", raw), nil

	case "s", "f":
		raw, typ := m.selected()
		if typ != dbType {
			m.err = fmt.Errorf("select a database first")
			break
		}
		if key.String() == "s" {
			snap, err := m.rt.CreateSnapshot(raw)
			m.reportHandle("create_snapshot", snap, err)
		} else {
			fork, err := m.rt.CreateFork(raw)
			m.reportHandle("create_fork", fork, err)
		}

	case "l":
		raw, typ := m.selected()
		if typ != snapType && typ != forkType {
			m.err = fmt.Errorf("select a snapshot or fork first")
			break
		}
		list, err := m.rt.NewList(raw, listName)
		m.reportHandle("list_new", list, err)

	case "a":
		raw, typ := m.selected()
		if typ != listType {
			m.err = fmt.Errorf("select a list first")
			break
		}
		m.target = raw
		m.state = stateInputItem
		m.input.Focus()
		return m, textinput.Blink

	case "d":
		raw, typ := m.selected()
		switch typ {
		case dbType:
			m.report("memorydb_free", m.rt.FreeDB(raw))
		case snapType, forkType:
			m.report("view_free", m.rt.FreeView(raw))
		case listType:
			m.report("list_free", m.rt.FreeList(raw))
		default:
			m.err = fmt.Errorf("nothing selected")
		}

	case "m":
		// Merges the selected fork into the only database, if there is one.
		raw, typ := m.selected()
		db, ok := m.soleDB()
		if typ != forkType || !ok {
			m.err = fmt.Errorf("select a fork with exactly one database live")
			break
		}
		m.report("merge", m.rt.Merge(db, raw))

	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m *interactiveModel) closeInput() {
	m.input.Blur()
	m.input.Reset()
	m.state = stateBrowse
	m.refresh()
}

func (m *interactiveModel) report(op string, err error) {
	m.err = err
	if err == nil {
		m.result = op + " ok"
	}
}

func (m *interactiveModel) reportHandle(op string, raw int64, err error) {
	m.err = err
	if err == nil {
		m.result = fmt.Sprintf("%s -> %d", op, raw)
	}
}

func (m *interactiveModel) selected() (int64, string) {
	row := m.table.SelectedRow()
	if row == nil {
		return 0, ""
	}
	raw, err := strconv.ParseInt(strings.TrimPrefix(row[0], "handle#"), 10, 64)
	if err != nil {
		return 0, ""
	}
	return raw, row[1]
}

func (m *interactiveModel) soleDB() (int64, bool) {
	var dbs []int64
	for _, row := range m.table.Rows() {
		if row[1] == dbType {
			raw, _ := strconv.ParseInt(strings.TrimPrefix(row[0], "handle#"), 10, 64)
			dbs = append(dbs, raw)
		}
	}
	if len(dbs) != 1 {
		return 0, false
	}
	return dbs[0], true
}

func (m *interactiveModel) refresh() {
	var rows []table.Row
	m.rt.Registry().Each(func(h handle.Handle, tag handle.TypeTag, v any) bool {
		rows = append(rows, table.Row{h.String(), tag.String(), describe(v)})
		return true
	})
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func describe(v any) string {
	switch o := v.(type) {
	case *storage.ListIndex:
		n, err := o.Size()
		if err != nil {
			return fmt.Sprintf("%s (%v)", o.Name(), err)
		}
		return fmt.Sprintf("%s, %d items", o.Name(), n)
	case storage.View:
		if o.ReadOnly() {
			return "read-only"
		}
		return "writable"
	default:
		return ""
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	s := m.rt.Registry().Stats()
	b.WriteString(titleStyle.Render("EJB Handles"))
	b.WriteString(fmt.Sprintf(" live %d • minted %d • dropped %d\n\n", s.Live, s.Minted, s.Dropped))

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	if m.state == stateInputItem {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter add • esc cancel"))
		return b.String()
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error (status %d): %v", bridge.Status(m.err), m.err)))
	case m.result != "":
		b.WriteString(resultStyle.Render(m.result))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("n new db • s snapshot • f fork • l list • a add • m merge • d drop • q quit"))
	return b.String()
}

func runInteractive(rt *bridge.Runtime) error {
	p := tea.NewProgram(newInteractiveModel(rt), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
