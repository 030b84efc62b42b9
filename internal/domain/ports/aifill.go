package ports

import "context"

// FieldSpec names one field the filler should produce a value for.
type FieldSpec struct {
	Name        string
	Description string
}

// FillRequest carries everything the filler may use: the fields in display
// order, free-form user text, and optionally trailing pane output for
// context.
type FillRequest struct {
	Fields   []FieldSpec
	UserText string
	PaneText string
}

// FieldFiller proposes values for a session's fields, one per requested
// field in order. An empty string means "leave this field untouched".
// Failures are AIError and never fatal to the calling flow.
type FieldFiller interface {
	Fill(ctx context.Context, req FillRequest) ([]string, error)
}
