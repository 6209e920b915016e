package parser

import (
	"fmt"

	"github.com/dgallion1/docseg/internal/doctree"
)

// ParseError reports a native document that could not be decoded. It is
// fatal for the document and is never retried.
type ParseError struct {
	Kind doctree.Kind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
