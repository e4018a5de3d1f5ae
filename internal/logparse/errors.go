package logparse

import (
	"fmt"
)

// MalformedLineError reports a line that matched a category keyword but lacks a
// field that category requires. It aborts the stream it was found in.
type MalformedLineError struct {
	File     string
	Line     int
	Category Category
	Field    string
	Text     string
	Err      error
}

func (e *MalformedLineError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	msg := fmt.Sprintf("malformed %s line at %s: missing %s", e.Category, loc, e.Field)
	if e.Err != nil {
		msg = fmt.Sprintf("malformed %s line at %s: invalid %s: %v", e.Category, loc, e.Field, e.Err)
	}
	if e.Text != "" {
		msg += fmt.Sprintf(" (%q)", e.Text)
	}
	return msg
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

func missingField(category Category, field string) *MalformedLineError {
	return &MalformedLineError{Category: category, Field: field}
}

func invalidField(category Category, field string, err error) *MalformedLineError {
	return &MalformedLineError{Category: category, Field: field, Err: err}
}
