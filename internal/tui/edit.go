package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// editMode selects how the edit modal fills fields.
type editMode int

const (
	editManual editMode = iota
	editAI
)

// editState holds the field-edit modal: one text input per field
// definition, a comment input at the bottom, and an AI mode that proposes
// values from free-form notes plus recent pane output.
type editState struct {
	session  *domain.Session
	defs     []*domain.FieldDefinition
	inputs   []textinput.Model
	comment  textinput.Model
	comments []*domain.Comment

	mode    editMode
	notes   textinput.Model
	filling bool
	fillErr string

	focus int
}

func newEditState(sess *domain.Session, defs []*domain.FieldDefinition, values map[int64]string, comments []*domain.Comment) *editState {
	e := &editState{
		session:  sess,
		defs:     defs,
		comments: comments,
	}
	for _, def := range defs {
		in := textinput.New()
		in.Placeholder = def.Description
		in.CharLimit = 200
		in.Width = 48
		in.SetValue(values[def.ID])
		e.inputs = append(e.inputs, in)
	}

	e.comment = textinput.New()
	e.comment.Placeholder = "add a comment"
	e.comment.CharLimit = 400
	e.comment.Width = 48

	e.notes = textinput.New()
	e.notes.Placeholder = "notes for the fill"
	e.notes.CharLimit = 400
	e.notes.Width = 48

	e.focusRow(0)
	return e
}

// rows counts the focusable rows: one per field, plus the comment input.
func (e *editState) rows() int {
	return len(e.inputs) + 1
}

// focusRow moves focus to row i, wrapping at either end.
func (e *editState) focusRow(i int) {
	n := e.rows()
	if i < 0 {
		i = n - 1
	}
	if i >= n {
		i = 0
	}
	e.focus = i
	for j := range e.inputs {
		e.inputs[j].Blur()
	}
	e.comment.Blur()
	if i < len(e.inputs) {
		e.inputs[i].Focus()
	} else {
		e.comment.Focus()
	}
}

func (e *editState) toggleMode() {
	if e.mode == editManual {
		e.mode = editAI
		for j := range e.inputs {
			e.inputs[j].Blur()
		}
		e.comment.Blur()
		e.notes.Focus()
		return
	}
	e.mode = editManual
	e.notes.Blur()
	e.focusRow(e.focus)
}

// applyFill writes proposed values into the field inputs. Empty strings
// leave the field as it was. A successful fill drops back to manual mode
// so the values can be reviewed before saving.
func (e *editState) applyFill(msg fillDoneMsg) {
	e.filling = false
	if msg.err != nil {
		e.fillErr = msg.err.Error()
		return
	}
	e.fillErr = ""
	for i, v := range msg.values {
		if i >= len(e.inputs) || v == "" {
			continue
		}
		e.inputs[i].SetValue(v)
	}
	e.mode = editManual
	e.notes.Blur()
	e.focusRow(e.focus)
}

// forward routes non-key messages (cursor blinks) to the focused input.
func (e *editState) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if e.mode == editAI {
		e.notes, cmd = e.notes.Update(msg)
		return cmd
	}
	if e.focus < len(e.inputs) {
		e.inputs[e.focus], cmd = e.inputs[e.focus].Update(msg)
	} else {
		e.comment, cmd = e.comment.Update(msg)
	}
	return cmd
}

// openEdit loads the session's field definitions, current values, and
// comments, then opens the edit modal.
func (a *App) openEdit(sess *domain.Session) tea.Cmd {
	ctx := context.Background()
	defs, err := a.store.ListFieldDefs(ctx, sess.ProjectID)
	if err != nil {
		a.statusMsg = fmt.Sprintf("load fields: %v", err)
		return nil
	}
	values, err := a.store.GetFieldValues(ctx, sess.ID)
	if err != nil {
		a.statusMsg = fmt.Sprintf("load values: %v", err)
		return nil
	}
	comments, err := a.store.ListComments(ctx, sess.ID)
	if err != nil {
		a.statusMsg = fmt.Sprintf("load comments: %v", err)
		return nil
	}
	a.edit = newEditState(sess, defs, values, comments)
	a.state = viewEdit
	return textinput.Blink
}

func (a *App) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := a.edit
	if e == nil {
		a.state = viewBoard
		return a, nil
	}

	switch msg.String() {
	case "esc":
		a.edit = nil
		a.state = viewBoard
		return a, nil

	case "ctrl+a":
		e.toggleMode()
		return a, textinput.Blink
	}

	if e.mode == editAI {
		if msg.Type == tea.KeyEnter {
			if e.filling {
				return a, nil
			}
			return a, a.runFill()
		}
		return a, e.forward(msg)
	}

	switch msg.String() {
	case "tab", "down":
		e.focusRow(e.focus + 1)
		return a, textinput.Blink

	case "shift+tab", "up":
		e.focusRow(e.focus - 1)
		return a, textinput.Blink

	case "enter":
		return a, a.saveEdit()
	}

	return a, e.forward(msg)
}

// saveEdit persists the modal's field values and any new comment, then
// returns to the board.
func (a *App) saveEdit() tea.Cmd {
	e := a.edit
	ctx := context.Background()

	values := make(map[int64]string, len(e.defs))
	for i, def := range e.defs {
		values[def.ID] = e.inputs[i].Value()
	}
	if err := a.store.SaveFieldValues(ctx, e.session.ID, values); err != nil {
		a.statusMsg = fmt.Sprintf("save fields: %v", err)
		return nil
	}
	if body := strings.TrimSpace(e.comment.Value()); body != "" {
		if _, err := a.store.AddComment(ctx, e.session.ID, body); err != nil {
			a.statusMsg = fmt.Sprintf("save comment: %v", err)
			return nil
		}
	}

	a.statusMsg = fmt.Sprintf("saved %s", e.session.Name)
	a.edit = nil
	a.state = viewBoard
	return a.refreshBoard()
}

// runFill asks the filler for values from the notes and the session's
// recent pane output. A missing pane is fine, the filler works without it.
func (a *App) runFill() tea.Cmd {
	e := a.edit
	e.filling = true
	e.fillErr = ""

	fields := make([]ports.FieldSpec, len(e.defs))
	for i, def := range e.defs {
		fields[i] = ports.FieldSpec{Name: def.Name, Description: def.Description}
	}
	notes := e.notes.Value()
	runtimeName := domain.RuntimeSessionName(a.prefix, e.session.ProjectID, e.session.ID)

	return func() tea.Msg {
		ctx := context.Background()
		pane, _ := a.runtime.CapturePane(ctx, runtimeName, peekLines)
		values, err := a.filler.Fill(ctx, ports.FillRequest{
			Fields:   fields,
			UserText: notes,
			PaneText: pane,
		})
		return fillDoneMsg{values: values, err: err}
	}
}
