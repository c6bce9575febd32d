package parser

import (
	"context"
	"strings"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// dockerfileInstructions are the keywords at which a new chunk begins.
var dockerfileInstructions = map[string]bool{
	"FROM": true, "RUN": true, "CMD": true, "LABEL": true, "MAINTAINER": true,
	"EXPOSE": true, "ENV": true, "ADD": true, "COPY": true, "ENTRYPOINT": true,
	"VOLUME": true, "USER": true, "WORKDIR": true, "ARG": true, "ONBUILD": true,
	"STOPSIGNAL": true, "HEALTHCHECK": true, "SHELL": true,
}

// dockerfileParser slices Dockerfiles into chunks at instruction
// boundaries. It emits no entities, relationships, or call-site references.
type dockerfileParser struct{}

func newDockerfileParser() (*dockerfileParser, error) {
	return &dockerfileParser{}, nil
}

func (p *dockerfileParser) Language() string { return "dockerfile" }

func (p *dockerfileParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.dockerfile").With("file", fileSlug)

	if strings.TrimSpace(content) == "" {
		return &Result{SliceLines: model.SliceLines{}}
	}

	sliceSet := map[int]bool{0: true}
	continued := false
	for line0, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if continued {
			// Inside a backslash-continued instruction.
			continued = strings.HasSuffix(trimmed, "\\")
			continue
		}
		keyword := strings.ToUpper(strings.Fields(trimmed)[0])
		if dockerfileInstructions[keyword] {
			sliceSet[line0] = true
		}
		continued = strings.HasSuffix(trimmed, "\\")
	}

	slices := sortedSlices(sliceSet)
	log.Debug("yielding instruction slice lines", "count", len(slices))
	return &Result{SliceLines: slices}
}
