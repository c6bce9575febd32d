// Package chunker converts a file's content plus a parser-emitted list of
// slice lines into contiguous, non-overlapping text chunks.
package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// splitKeepEnds splits content into lines with their trailing newlines
// preserved, so that joining the pieces reproduces the input byte for byte.
func splitKeepEnds(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

// Chunks generates TextChunks from a file's full content based on
// 0-indexed slice lines.
//
// Slice lines outside [0, totalLines) are discarded; the survivors are
// deduplicated and sorted. Each chunk runs from its slice line up to the
// line before the next one (or end of file). Line ranges on the emitted
// chunks are 1-based inclusive. If the content is non-empty but no slice
// line is in range, a single chunk covering the whole file is emitted.
// Whitespace-only content, or an empty slice list, yields no chunks.
func Chunks(sourceFileSlug, content string, sliceLines []int) []model.TextChunk {
	log := logging.Component("chunker").With("file", sourceFileSlug)
	log.Debug("starting chunk generation", "slice_lines", len(sliceLines), "content_len", len(content))

	if strings.TrimSpace(content) == "" || len(sliceLines) == 0 {
		if len(sliceLines) > 0 && strings.TrimSpace(content) == "" {
			log.Warn("received slice lines but content is empty, returning no chunks")
		}
		return nil
	}

	lines := splitKeepEnds(content)
	totalLines := len(lines)

	seen := make(map[int]bool, len(sliceLines))
	valid := make([]int, 0, len(sliceLines))
	for _, s := range sliceLines {
		if s >= 0 && s < totalLines && !seen[s] {
			seen[s] = true
			valid = append(valid, s)
		}
	}
	sort.Ints(valid)

	if len(valid) == 0 {
		log.Warn("all slice lines out of bounds, creating single chunk for whole file", "total_lines", totalLines)
		return []model.TextChunk{{
			SlugID:    fmt.Sprintf("%s|0", sourceFileSlug),
			FileSlug:  sourceFileSlug,
			StartLine: 1,
			EndLine:   totalLines,
			Content:   strings.Join(lines, ""),
		}}
	}

	chunks := make([]model.TextChunk, 0, len(valid))
	chunkIndex := 0
	for i, start0 := range valid {
		end0 := totalLines - 1
		if i+1 < len(valid) {
			end0 = valid[i+1] - 1
		}
		if end0 < start0 {
			log.Warn("skipping empty slice segment", "start", start0, "end", end0)
			continue
		}

		start1 := start0 + 1
		end1 := end0 + 1
		chunks = append(chunks, model.TextChunk{
			SlugID:    fmt.Sprintf("%s|%d@%d-%d", sourceFileSlug, chunkIndex, start1, end1),
			FileSlug:  sourceFileSlug,
			StartLine: start1,
			EndLine:   end1,
			Content:   strings.Join(lines[start0:end0+1], ""),
		})
		chunkIndex++
	}

	log.Debug("finished chunk generation", "chunks", len(chunks))
	return chunks
}
