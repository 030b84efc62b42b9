package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brianly1003/workbench/internal/board"
	"github.com/brianly1003/workbench/internal/domain"
)

// View renders the current screen.
func (a *App) View() string {
	var content string
	switch a.state {
	case viewCreate:
		content = a.renderCreate()
	case viewConfirmDelete:
		content = a.renderConfirmDelete()
	case viewEdit:
		content = a.renderEdit()
	case viewPeek:
		content = a.renderPeek()
	case viewOrphans:
		content = a.renderOrphans()
	case viewConfirmKill:
		content = a.renderConfirmKill()
	default:
		content = a.renderBoard()
	}
	return strings.Join([]string{a.renderHeader(), content, a.renderFooter()}, "\n")
}

func (a *App) renderHeader() string {
	title := "workbench"
	if a.board != nil {
		title = fmt.Sprintf("%s · %d sessions", a.board.Project.Name, a.board.CardCount())
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(title)
}

func (a *App) renderFooter() string {
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render(a.hintLine())

	status := a.statusMsg
	if a.opPending {
		status = fmt.Sprintf("%s %s", a.spin.View(), a.statusMsg)
	}
	var statusLine string
	if a.boardErr != "" {
		statusLine = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("board: " + a.boardErr)
	} else if status != "" {
		statusLine = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render(status)
	}
	if statusLine == "" {
		return hint
	}
	return lipgloss.JoinVertical(lipgloss.Left, hint, statusLine)
}

func (a *App) hintLine() string {
	switch a.state {
	case viewCreate:
		return "Enter → create    Esc → cancel"
	case viewConfirmDelete:
		return "y → delete    f → toggle force    n/Esc → keep"
	case viewEdit:
		if a.edit != nil && a.edit.mode == editAI {
			return "Enter → run fill    Ctrl+a → manual    Esc → close"
		}
		return "Tab/Shift+Tab → field    Enter → save    Ctrl+a → ai fill    Esc → close"
	case viewPeek:
		return "j/k → scroll    Esc → back"
	case viewOrphans:
		return "j/k → select    x → kill    r → re-sweep    Esc → back"
	case viewConfirmKill:
		return "y → kill    n/Esc → keep"
	}
	return "h/j/k/l → navigate    H/L → move card    n → new    e → edit    d → delete    Enter → attach    p → peek    o → orphans    q → quit"
}

func (a *App) renderBoard() string {
	if a.board == nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("Loading board...")
	}
	cols := a.board.Columns
	if len(cols) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("No columns configured.")
	}

	width := a.width
	if width <= 0 {
		width = 100
	}
	colWidth := max(18, width/len(cols)-4)

	boxes := make([]string, 0, len(cols))
	for i, col := range cols {
		boxes = append(boxes, a.renderColumn(i, col, colWidth))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (a *App) renderColumn(idx int, col board.Column, width int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("%s (%d)", col.Name, len(col.Cards)))

	rows := []string{title}
	if len(col.Cards) == 0 {
		rows = append(rows, lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("empty"))
	}
	for j, card := range col.Cards {
		rows = append(rows, a.renderCard(card, idx == a.selCol && j == a.selRow, width-4))
	}

	border := lipgloss.Color("#444444")
	if idx == a.selCol {
		border = lipgloss.Color("#5B8DEF")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(max(14, width)).
		Render(strings.Join(rows, "\n"))
}

func (a *App) renderCard(card board.Card, selected bool, width int) string {
	indicator := " "
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	if selected {
		indicator = ">"
		nameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC"))
	}
	name := card.Session.Name
	if card.Session.ProvisioningState != domain.StateProvisioned {
		name = fmt.Sprintf("%s [%s]", name, card.Session.ProvisioningState)
	}
	name = truncate(name, max(8, width-4))
	return fmt.Sprintf("%s %s %s", indicator, runtimeIndicator(card.Runtime), nameStyle.Render(name))
}

// runtimeIndicator maps a runtime status to a colored one-glyph marker so
// the whole board can be scanned at a glance.
func runtimeIndicator(status domain.RuntimeStatus) string {
	switch status {
	case domain.RuntimeActive:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Render("●")
	case domain.RuntimeWaiting:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Render("◐")
	case domain.RuntimeInactive:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("○")
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("?")
	}
}

func (a *App) renderCreate() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("New session")
	body := lipgloss.JoinVertical(lipgloss.Left, title, "", a.nameInput.View())
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#5B8DEF")).
		Padding(1, 2).
		Render(body)
}

func (a *App) renderConfirmDelete() string {
	if a.deleteTarget == nil {
		return ""
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render(fmt.Sprintf("Delete %s?", a.deleteTarget.Name))
	note := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render("Removes the tmux session, the worktree, and the branch.")
	forceMark := "[ ]"
	if a.deleteForce {
		forceMark = "[x]"
	}
	force := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(fmt.Sprintf("%s force · continue past pieces that are already gone", forceMark))
	body := lipgloss.JoinVertical(lipgloss.Left, title, "", note, force)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#FF6B6B")).
		Padding(1, 2).
		Render(body)
}

func (a *App) renderPeek() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Pane · %s", a.peekName))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(a.peek.View())
	return lipgloss.JoinVertical(lipgloss.Left, title, box)
}

func (a *App) renderEdit() string {
	e := a.edit
	if e == nil {
		return ""
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Edit %s", e.session.Name))

	rows := []string{title, ""}
	if len(e.defs) == 0 {
		rows = append(rows, lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render("No fields defined yet. Add one with `wb fields add`."))
	}
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Width(16)
	for i, def := range e.defs {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(def.Name), e.inputs[i].View()))
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("comment"), e.comment.View()))

	if e.mode == editAI {
		mode := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801")).Render("AI fill")
		rows = append(rows, "", mode, e.notes.View())
		if e.filling {
			rows = append(rows, fmt.Sprintf("%s asking for values...", a.spin.View()))
		}
		if e.fillErr != "" {
			rows = append(rows, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render(e.fillErr))
		}
	}

	if len(e.comments) > 0 {
		rows = append(rows, "", lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")).
			Render(fmt.Sprintf("Comments (%d)", len(e.comments))))
		start := 0
		if len(e.comments) > 5 {
			start = len(e.comments) - 5
		}
		for _, c := range e.comments[start:] {
			line := fmt.Sprintf("%s · %s", c.CreatedAt.Format("Jan 02 15:04"), c.Body)
			rows = append(rows, lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render(line))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#5B8DEF")).
		Padding(1, 2).
		Render(strings.Join(rows, "\n"))
}

func (a *App) renderOrphans() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Orphan sweep")
	r := a.orphans
	if r == nil || r.Empty() {
		note := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render("Everything lines up. Nothing orphaned.")
		return lipgloss.JoinVertical(lipgloss.Left, title, "", note)
	}

	rows := []string{title}
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	lineStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))

	if len(r.MissingRuntime) > 0 {
		rows = append(rows, "", sectionStyle.Render(fmt.Sprintf("Missing tmux session (%d)", len(r.MissingRuntime))))
		for _, s := range r.MissingRuntime {
			rows = append(rows, lineStyle.Render("  "+s.Name))
		}
	}
	if len(r.MissingWorktree) > 0 {
		rows = append(rows, "", sectionStyle.Render(fmt.Sprintf("Missing worktree (%d)", len(r.MissingWorktree))))
		for _, s := range r.MissingWorktree {
			rows = append(rows, lineStyle.Render(fmt.Sprintf("  %s · %s", s.Name, s.WorktreePath)))
		}
	}
	if len(r.Stalled) > 0 {
		rows = append(rows, "", sectionStyle.Render(fmt.Sprintf("Stalled (%d)", len(r.Stalled))))
		for _, s := range r.Stalled {
			rows = append(rows, lineStyle.Render(fmt.Sprintf("  %s · %s", s.Name, s.ProvisioningState)))
		}
	}
	if len(r.UnmanagedRuntime) > 0 {
		rows = append(rows, "", sectionStyle.Render(fmt.Sprintf("Unmanaged tmux sessions (%d)", len(r.UnmanagedRuntime))))
		for i, name := range r.UnmanagedRuntime {
			indicator := " "
			style := lineStyle
			if i == a.orphanSel {
				indicator = ">"
				style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC"))
			}
			rows = append(rows, style.Render(fmt.Sprintf("%s %s", indicator, name)))
		}
	}
	return strings.Join(rows, "\n")
}

func (a *App) renderConfirmKill() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render(fmt.Sprintf("Kill %s?", a.killTarget))
	note := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render("The tmux session and whatever runs inside it will be terminated.")
	body := lipgloss.JoinVertical(lipgloss.Left, title, "", note)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#FF6B6B")).
		Padding(1, 2).
		Render(body)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
