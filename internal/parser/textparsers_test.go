package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

func TestMarkdownParserSlicesAtHeadings(t *testing.T) {
	content := `intro text
# Title
body
## Section
` + "```go\n# not a heading, fenced\ncode\n```\n" + `tail
### Deep
`
	p, err := newMarkdownParser()
	require.NoError(t, err)
	result := p.Parse(context.Background(), "repo:README.md", content)

	assert.Equal(t, model.SliceLines{0, 1, 3, 4, 9}, result.SliceLines)
	assert.Empty(t, result.Items, "markdown parser emits no entities")
}

func TestMarkdownParserEmptyContent(t *testing.T) {
	p, err := newMarkdownParser()
	require.NoError(t, err)
	result := p.Parse(context.Background(), "repo:README.md", "\n  \n")
	assert.Equal(t, model.SliceLines{}, result.SliceLines)
}

func TestDockerfileParserSlicesAtInstructions(t *testing.T) {
	content := `FROM golang:1.24 AS build
# comment
WORKDIR /src
RUN go build \
    -o /bin/app ./...
COPY . .
CMD ["/bin/app"]
`
	p, err := newDockerfileParser()
	require.NoError(t, err)
	result := p.Parse(context.Background(), "repo:Dockerfile", content)

	// FROM(0), WORKDIR(2), RUN(3), COPY(5), CMD(6); the continued RUN
	// argument line is not a slice point.
	assert.Equal(t, model.SliceLines{0, 2, 3, 5, 6}, result.SliceLines)
	assert.Empty(t, result.Items)
}

func TestCssParserIntervalSlices(t *testing.T) {
	p, err := newCssParser()
	require.NoError(t, err)

	small := p.Parse(context.Background(), "repo:site.css", ".a { color: red; }\n")
	assert.Equal(t, model.SliceLines{0}, small.SliceLines)

	var b []byte
	for i := 0; i < 200; i++ {
		b = append(b, []byte(".rule { padding: 1px; }\n")...)
	}
	large := p.Parse(context.Background(), "repo:site.css", string(b))
	require.GreaterOrEqual(t, len(large.SliceLines), 2)
	assert.Equal(t, 0, large.SliceLines[0])
	assert.Empty(t, large.Items)
}
