// Package treeconsole is the interactive terminal view of the mapping store: mappings
// grouped by target table, with live search and delete.
package treeconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
)

type MappingService interface {
	Search(ctx context.Context, term string) ([]domainmapping.Mapping, error)
	Statistics(ctx context.Context) (domainmapping.Statistics, error)
	Delete(ctx context.Context, id string) error
}

type rowKind int

const (
	rowGroup rowKind = iota
	rowMapping
)

type treeRow struct {
	kind    rowKind
	group   string
	count   int
	mapping domainmapping.Mapping
}

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Toggle      key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	Search      key.Binding
	Delete      key.Binding
	Refresh     key.Binding
	Quit        key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.ExpandAll, k.CollapseAll, k.Search, k.Delete, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle:      key.NewBinding(key.WithKeys("enter", "tab"), key.WithHelp("enter", "expand/collapse")),
	ExpandAll:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
	CollapseAll: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
	Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Refresh:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "refresh")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type treeModel struct {
	ctx     context.Context
	service MappingService

	groups   []domainmapping.Group
	expanded map[string]bool
	stats    domainmapping.Statistics
	selected int

	search        textinput.Model
	searching     bool
	pendingDelete string
	status        string
	help          help.Model
}

type mappingsLoadedMsg struct {
	term  string
	items []domainmapping.Mapping
	stats domainmapping.Statistics
	err   error
}

type deleteDoneMsg struct {
	id  string
	err error
}

func NewTreeModel(ctx context.Context, service MappingService) tea.Model {
	return newTreeModel(ctx, service)
}

func newTreeModel(ctx context.Context, service MappingService) *treeModel {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search tables, fields, transformations, notes"
	search.CharLimit = 200

	return &treeModel{
		ctx:      logging.WithComponent(ctx, "usecase.treeconsole"),
		service:  service,
		expanded: make(map[string]bool),
		search:   search,
		status:   "loading",
		help:     help.New(),
	}
}

func (m *treeModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m *treeModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case mappingsLoadedMsg:
		if msg.term != strings.TrimSpace(m.search.Value()) {
			return m, nil
		}
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
			return m, nil
		}
		m.applyLoaded(msg)
		return m, nil
	case deleteDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("delete %s failed: %v", msg.id, msg.err)
			return m, nil
		}
		m.status = "deleted " + msg.id
		return m, m.loadCmd()
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateTree(msg)
	}
	return m, nil
}

func (m *treeModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		return m, m.loadCmd()
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.loadCmd())
}

func (m *treeModel) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pendingDelete != "" {
		id := m.pendingDelete
		m.pendingDelete = ""
		if msg.String() == "y" {
			m.status = "deleting " + id
			return m, m.deleteCmd(id)
		}
		m.status = "delete cancelled"
		return m, nil
	}

	rows := m.visibleRows()
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Refresh):
		m.status = "refreshing"
		return m, m.loadCmd()
	case key.Matches(msg, keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, keys.Down):
		if m.selected < len(rows)-1 {
			m.selected++
		}
	case key.Matches(msg, keys.Toggle):
		if m.selected < len(rows) {
			group := rows[m.selected].group
			m.expanded[group] = !m.expanded[group]
			m.selectGroup(group)
		}
	case key.Matches(msg, keys.ExpandAll):
		m.setAllExpanded(true)
	case key.Matches(msg, keys.CollapseAll):
		var group string
		if m.selected < len(rows) {
			group = rows[m.selected].group
		}
		m.setAllExpanded(false)
		m.selectGroup(group)
	case key.Matches(msg, keys.Search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, keys.Delete):
		if m.selected < len(rows) && rows[m.selected].kind == rowMapping {
			item := rows[m.selected].mapping
			m.pendingDelete = item.ID
			m.status = fmt.Sprintf("delete %s.%s ← %s.%s? press y to confirm", item.TargetTable, item.TargetField, item.SourceTable, item.SourceField)
		} else {
			m.status = "select a mapping to delete"
		}
	}
	return m, nil
}

func (m *treeModel) applyLoaded(msg mappingsLoadedMsg) {
	m.groups = domainmapping.GroupByTarget(msg.items)
	m.stats = msg.stats

	// A search shows every match; the plain tree keeps the user's expansion state.
	if msg.term != "" {
		m.setAllExpanded(true)
	}

	rows := m.visibleRows()
	if m.selected >= len(rows) {
		m.selected = len(rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}

	if msg.term != "" {
		m.status = fmt.Sprintf("%d matching mappings", len(msg.items))
	} else {
		m.status = fmt.Sprintf("loaded %d mappings", len(msg.items))
	}
}

func (m *treeModel) setAllExpanded(expanded bool) {
	for _, group := range m.groups {
		m.expanded[group.TargetTable] = expanded
	}
}

func (m *treeModel) selectGroup(group string) {
	for index, row := range m.visibleRows() {
		if row.kind == rowGroup && row.group == group {
			m.selected = index
			return
		}
	}
}

func (m *treeModel) visibleRows() []treeRow {
	rows := make([]treeRow, 0, len(m.groups))
	for _, group := range m.groups {
		rows = append(rows, treeRow{kind: rowGroup, group: group.TargetTable, count: len(group.Mappings)})
		if !m.expanded[group.TargetTable] {
			continue
		}
		for _, item := range group.Mappings {
			rows = append(rows, treeRow{kind: rowMapping, group: group.TargetTable, mapping: item})
		}
	}
	return rows
}

func (m *treeModel) selectedMapping() (domainmapping.Mapping, bool) {
	rows := m.visibleRows()
	if m.selected < 0 || m.selected >= len(rows) || rows[m.selected].kind != rowMapping {
		return domainmapping.Mapping{}, false
	}
	return rows[m.selected].mapping, true
}

func (m *treeModel) loadCmd() tea.Cmd {
	term := strings.TrimSpace(m.search.Value())
	ctx := m.ctx
	service := m.service
	return func() tea.Msg {
		items, err := service.Search(ctx, term)
		if err != nil {
			logging.Warn(ctx, "load mappings failed", slog.Any("err", errs.Loggable(err)))
			return mappingsLoadedMsg{term: term, err: err}
		}
		stats, err := service.Statistics(ctx)
		if err != nil {
			return mappingsLoadedMsg{term: term, err: err}
		}
		return mappingsLoadedMsg{term: term, items: items, stats: stats}
	}
}

func (m *treeModel) deleteCmd(id string) tea.Cmd {
	ctx := m.ctx
	service := m.service
	return func() tea.Msg {
		err := service.Delete(ctx, id)
		if err != nil {
			logging.Warn(ctx, "delete mapping failed", slog.String("id", id), slog.Any("err", errs.Loggable(err)))
		}
		return deleteDoneMsg{id: id, err: err}
	}
}

func (m *treeModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	groupStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Source-to-Target Mappings"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"targets=%d mappings=%d sources=%d transformations=%d",
		m.stats.TargetCount,
		m.stats.MappingCount,
		m.stats.SourceCount,
		m.stats.TransformationCount,
	)))
	builder.WriteString("\n")
	if m.searching || m.search.Value() != "" {
		builder.WriteString(m.search.View())
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Tree"))
	builder.WriteString("\n")
	rows := m.visibleRows()
	if len(rows) == 0 {
		builder.WriteString(dimStyle.Render("- no mappings"))
		builder.WriteString("\n")
	}
	for index, row := range rows {
		var line string
		if row.kind == rowGroup {
			marker := "▸"
			if m.expanded[row.group] {
				marker = "▾"
			}
			line = groupStyle.Render(fmt.Sprintf("%s %s (%d)", marker, row.group, row.count))
			if index == m.selected {
				line = selectedStyle.Render(fmt.Sprintf("%s %s (%d)", marker, row.group, row.count))
			}
		} else {
			text := fmt.Sprintf("    %s ← %s.%s", row.mapping.TargetField, row.mapping.SourceTable, row.mapping.SourceField)
			if row.mapping.Transformation != "" {
				text += "  [" + row.mapping.Transformation + "]"
			}
			line = text
			if index == m.selected {
				line = selectedStyle.Render(text)
			}
		}
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if item, ok := m.selectedMapping(); ok {
		builder.WriteString(fmt.Sprintf("ID: %s\n", item.ID))
		builder.WriteString(fmt.Sprintf("Target: %s.%s\n", item.TargetTable, item.TargetField))
		builder.WriteString(fmt.Sprintf("Source: %s.%s\n", item.SourceTable, item.SourceField))
		builder.WriteString(fmt.Sprintf("Transformation: %s\n", firstNonEmpty(item.Transformation, "-")))
		builder.WriteString(fmt.Sprintf("Notes: %s\n", firstNonEmpty(item.Notes, "-")))
		builder.WriteString(fmt.Sprintf("Created: %s\n", item.CreatedAt.Local().Format(domainmapping.DefaultTimeLayout)))
		if item.UpdatedAt != nil {
			builder.WriteString(fmt.Sprintf("Updated: %s\n", item.UpdatedAt.Local().Format(domainmapping.DefaultTimeLayout)))
		}
	} else {
		builder.WriteString(dimStyle.Render("- select a mapping"))
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")
	builder.WriteString(m.help.View(keys))
	builder.WriteString("\n")
	return builder.String()
}

func firstNonEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
