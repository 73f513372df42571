package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// List styles
var (
	listDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	statusOKStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	statusErrStyle = lipgloss.NewStyle().Foreground(colorRed)
)

// Editor steps.
const (
	moveStep   = 10.0
	fineStep   = 1.0
	scaleStep  = 1.1
	rotateStep = 15.0

	editorRefresh = 250 * time.Millisecond
)

// refreshMsg re-reads the workbench state. History entries land after the
// debounce period, so the view polls for them.
type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(editorRefresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// =============================================================================
// EditorModel - Interactive composition editing
// =============================================================================

// EditorModel is the bubbletea model of the edit command.
type EditorModel struct {
	wb     *workbench.Workbench
	state  workbench.State
	cursor int

	// output is where "e" exports to.
	output string
	// save persists the workbench, or is nil when editing without a session.
	save func() error

	status string
	failed bool
}

// NewEditorModel returns an editor over wb.
func NewEditorModel(wb *workbench.Workbench, output string, save func() error) EditorModel {
	return EditorModel{wb: wb, state: wb.State(), output: output, save: save}
}

func (m EditorModel) Init() tea.Cmd {
	return refresh()
}

func (m EditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.sync()
		return m, refresh()
	case tea.KeyMsg:
		return m.key(msg.String())
	}
	return m, nil
}

func (m *EditorModel) sync() {
	m.state = m.wb.State()
	if m.cursor >= len(m.state.Elements) {
		m.cursor = max(len(m.state.Elements)-1, 0)
	}
}

func (m EditorModel) selected() (workbench.ElementState, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Elements) {
		return workbench.ElementState{}, false
	}
	return m.state.Elements[m.cursor], true
}

func (m EditorModel) key(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "q", "ctrl+c", "esc":
		m.wb.Flush()
		if m.save != nil {
			if err := m.save(); err != nil {
				m.setErr(err)
				return m, nil
			}
		}
		return m, tea.Quit
	case "tab", "j":
		if n := len(m.state.Elements); n > 0 {
			m.cursor = (m.cursor + 1) % n
		}
		return m, nil
	case "shift+tab", "k":
		if n := len(m.state.Elements); n > 0 {
			m.cursor = (m.cursor + n - 1) % n
		}
		return m, nil
	case "u":
		ok, err := m.wb.Undo()
		m.report(ok, err, "undone", "nothing to undo")
	case "r":
		ok, err := m.wb.QuickRedo()
		m.report(ok, err, "restored", "nothing to restore")
	case "e":
		m.export()
	case "s":
		if m.save == nil {
			m.setStatus("no session to save")
		} else {
			m.wb.Flush()
			if err := m.save(); err != nil {
				m.setErr(err)
			} else {
				m.setStatus("saved")
			}
		}
	default:
		m.edit(k)
	}
	m.sync()
	return m, nil
}

// edit applies an element key to the selection.
func (m *EditorModel) edit(k string) {
	e, ok := m.selected()
	if !ok {
		return
	}
	var p workbench.Patch
	switch k {
	case "up":
		p.DY = -moveStep
	case "down":
		p.DY = moveStep
	case "left":
		p.DX = -moveStep
	case "right":
		p.DX = moveStep
	case "shift+up":
		p.DY = -fineStep
	case "shift+down":
		p.DY = fineStep
	case "shift+left":
		p.DX = -fineStep
	case "shift+right":
		p.DX = fineStep
	case "+", "=":
		p.ScaleBy = scaleStep
	case "-":
		p.ScaleBy = 1 / scaleStep
	case "[":
		r := e.Rotation - rotateStep
		p.Rotation = &r
	case "]":
		r := e.Rotation + rotateStep
		p.Rotation = &r
	case "h":
		v := !e.Visible
		p.Visible = &v
	case "x", "delete", "backspace":
		if _, err := m.wb.Delete(e.ID); err != nil {
			m.setErr(err)
			return
		}
		m.setStatus(fmt.Sprintf("deleted %s", e.Kind))
		return
	default:
		return
	}
	if _, err := m.wb.Modify(e.ID, p); err != nil {
		m.setErr(err)
		return
	}
	m.status = ""
}

func (m *EditorModel) export() {
	f, err := os.Create(m.output)
	if err != nil {
		m.setErr(err)
		return
	}
	if err := m.wb.ExportPNG(f); err != nil {
		f.Close()
		m.setErr(err)
		return
	}
	if err := f.Close(); err != nil {
		m.setErr(err)
		return
	}
	m.setStatus("exported " + m.output)
}

func (m *EditorModel) report(ok bool, err error, done, noop string) {
	switch {
	case err != nil:
		m.setErr(err)
	case ok:
		m.setStatus(done)
	default:
		m.setStatus(noop)
	}
}

func (m *EditorModel) setStatus(s string) { m.status, m.failed = s, false }

func (m *EditorModel) setErr(err error) {
	m.status, m.failed = errors.UserMessage(err), true
}

func (m EditorModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Edit Composition"))
	b.WriteString("  ")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("%.0f×%.0f %s", m.state.Size.W, m.state.Size.H, m.state.Background)))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("tab select  ←↑↓→ move (shift fine)  +/- scale  [ ] rotate  h hide  x delete"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("u undo  r quick-redo  e export  s save  q quit"))
	b.WriteString("\n\n")

	if len(m.state.Elements) == 0 {
		b.WriteString(listDimStyle.Render("  (empty canvas)"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.elementTable())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  history %d/%d · quick-redo %d", m.state.Cursor+1, m.state.History, m.state.QuickRedo)))
	if m.status != "" {
		style := statusOKStyle
		if m.failed {
			style = statusErrStyle
		}
		b.WriteString("  ")
		b.WriteString(style.Render(m.status))
	}
	return b.String()
}

func (m EditorModel) elementTable() string {
	rows := make([][]string, 0, len(m.state.Elements))
	for i, e := range m.state.Elements {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		visible := "✓"
		if !e.Visible {
			visible = ""
		}
		if !e.Loaded {
			visible = "missing"
		}
		rows = append(rows, []string{
			cursor,
			string(e.Kind),
			fmt.Sprintf("%.0f, %.0f", e.Position.X, e.Position.Y),
			fmt.Sprintf("%.2f", e.ScaleX),
			fmt.Sprintf("%.0f°", e.Rotation),
			visible,
			truncate(e.Source, 40),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Kind", "Position", "Scale", "Angle", "Shown", "Source").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row == m.cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if row < len(m.state.Elements) && !m.state.Elements[row].Visible {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		}).
		Render()
}

// truncate shortens s to n runes, keeping the tail where file names live.
func truncate(s string, n int) string {
	if strings.HasPrefix(s, "data:") {
		return "data:…"
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
