// Package board projects the store and the runtime monitor into the
// columned view the interfaces render.
package board

import (
	"context"
	"sort"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// Card pairs a session with its point-in-time runtime status.
type Card struct {
	Session *domain.Session      `json:"session"`
	Runtime domain.RuntimeStatus `json:"runtime"`
}

// Column is one board column with its cards in creation order.
type Column struct {
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}

// Board is a full snapshot of the project's board.
type Board struct {
	Project *domain.Project `json:"project"`
	Columns []Column        `json:"columns"`
}

// CardCount returns the number of cards across all columns.
func (b *Board) CardCount() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Cards)
	}
	return n
}

// Projection builds Board snapshots. It only reads; refreshing twice in a
// row with no outside changes yields the same board.
type Projection struct {
	project *domain.Project
	store   ports.SessionStore
	runtime ports.RuntimeMonitor
	columns []string
	prefix  string
}

// NewProjection creates a new Projection. Columns defaults to the standard
// sequence when empty.
func NewProjection(project *domain.Project, store ports.SessionStore, runtime ports.RuntimeMonitor, columns []string, prefix string) *Projection {
	if len(columns) == 0 {
		columns = domain.DefaultColumns
	}
	return &Projection{
		project: project,
		store:   store,
		runtime: runtime,
		columns: columns,
		prefix:  prefix,
	}
}

// Refresh reads one store snapshot and one runtime snapshot and lays the
// sessions out by column. Sessions whose status is no longer in the
// configured sequence (a changed configuration can cause this) appear in
// extra trailing columns rather than vanishing.
func (p *Projection) Refresh(ctx context.Context) (*Board, error) {
	sessions, err := p.store.ListSessions(ctx, p.project.ID)
	if err != nil {
		return nil, err
	}

	refs := make([]ports.RuntimeRef, 0, len(sessions))
	for _, sess := range sessions {
		refs = append(refs, ports.RuntimeRef{
			SessionID:   sess.ID,
			RuntimeName: domain.RuntimeSessionName(p.prefix, p.project.ID, sess.ID),
		})
	}
	statuses, err := p.runtime.Snapshot(ctx, refs)
	if err != nil {
		return nil, err
	}

	byColumn := make(map[string][]Card)
	for _, sess := range sessions {
		status, ok := statuses[sess.ID]
		if !ok {
			status = domain.RuntimeUnknown
		}
		byColumn[sess.Status] = append(byColumn[sess.Status], Card{Session: sess, Runtime: status})
	}

	board := &Board{Project: p.project}
	for _, name := range p.columns {
		board.Columns = append(board.Columns, Column{Name: name, Cards: byColumn[name]})
		delete(byColumn, name)
	}

	var extra []string
	for name := range byColumn {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		board.Columns = append(board.Columns, Column{Name: name, Cards: byColumn[name]})
	}

	return board, nil
}
