package parser

import (
	"context"
	"sort"
	"strings"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	genericChunkSize    = 1000
	genericChunkOverlap = 100
)

// genericParser handles recognized-but-unparsed file types. It produces
// slice lines at approximately fixed character intervals and emits no
// entities, relationships, or call-site references.
type genericParser struct {
	language string
}

func newGenericParser(language string) *genericParser {
	return &genericParser{language: language}
}

func (p *genericParser) Language() string { return p.language }

func (p *genericParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.generic").With("file", fileSlug)

	if strings.TrimSpace(content) == "" {
		log.Debug("content is empty, yielding empty slice lines")
		return &Result{SliceLines: model.SliceLines{}}
	}

	slices := intervalSliceLines(content)
	log.Debug("yielding calculated slice lines", "count", len(slices))
	return &Result{SliceLines: slices}
}

// intervalSliceLines produces slice lines at approximately fixed character
// intervals with overlap-aware stepping. Shared by the generic and CSS
// parsers.
func intervalSliceLines(content string) model.SliceLines {
	textLen := len(content)
	if textLen <= genericChunkSize {
		return model.SliceLines{0}
	}

	sliceSet := map[int]bool{0: true}
	step := genericChunkSize - genericChunkOverlap
	for startChar := step; startChar < textLen; startChar += step {
		line0 := strings.Count(content[:startChar], "\n")
		sliceSet[line0] = true
	}

	slices := make([]int, 0, len(sliceSet))
	for line := range sliceSet {
		slices = append(slices, line)
	}
	sort.Ints(slices)
	return slices
}
