package parser

import (
	"context"
	"strings"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// cssParser slices CSS files into chunks at fixed character intervals, the
// same stepping the generic parser uses. No detailed AST parsing: it emits
// no entities, relationships, or call-site references.
type cssParser struct{}

func newCssParser() (*cssParser, error) {
	return &cssParser{}, nil
}

func (p *cssParser) Language() string { return "css" }

func (p *cssParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.css").With("file", fileSlug)

	if strings.TrimSpace(content) == "" {
		return &Result{SliceLines: model.SliceLines{}}
	}

	slices := intervalSliceLines(content)
	log.Debug("yielding interval slice lines", "count", len(slices))
	return &Result{SliceLines: slices}
}
