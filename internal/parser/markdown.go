package parser

import (
	"context"
	"strings"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// markdownParser slices Markdown files (.md, .mdx) into chunks at document
// structure boundaries: ATX headings and fenced code block openings. It
// emits no entities, relationships, or call-site references.
type markdownParser struct{}

func newMarkdownParser() (*markdownParser, error) {
	return &markdownParser{}, nil
}

func (p *markdownParser) Language() string { return "markdown" }

func (p *markdownParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.markdown").With("file", fileSlug)

	if strings.TrimSpace(content) == "" {
		return &Result{SliceLines: model.SliceLines{}}
	}

	sliceSet := map[int]bool{0: true}
	inFence := false
	for line0, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			if !inFence {
				sliceSet[line0] = true
			}
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			sliceSet[line0] = true
		}
	}

	slices := sortedSlices(sliceSet)
	log.Debug("yielding heading slice lines", "count", len(slices))
	return &Result{SliceLines: slices}
}
