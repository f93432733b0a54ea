package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
)

func TestSplitMarkdown_HeadingPaths(t *testing.T) {
	s := newSplitter(common.SplitterConfig{})

	content := `# Guide

Intro text.

## Install

Install body.

### Flags

Flags body.

## Usage

Usage body.`

	chunks, err := s.splitMarkdown(content)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, "# Guide\n\nIntro text.", chunks[0].Content)
	assert.Equal(t, models.Section{Level: 1, Path: []string{"Guide"}}, chunks[0].Section)

	assert.Equal(t, "## Install\n\nInstall body.", chunks[1].Content)
	assert.Equal(t, models.Section{Level: 2, Path: []string{"Guide", "Install"}}, chunks[1].Section)

	assert.Equal(t, "### Flags\n\nFlags body.", chunks[2].Content)
	assert.Equal(t, models.Section{Level: 3, Path: []string{"Guide", "Install", "Flags"}}, chunks[2].Section)

	assert.Equal(t, "## Usage\n\nUsage body.", chunks[3].Content)
	assert.Equal(t, models.Section{Level: 2, Path: []string{"Guide", "Usage"}}, chunks[3].Section)
}

func TestSplitMarkdown_SkippedHeadingLevels(t *testing.T) {
	s := newSplitter(common.SplitterConfig{})

	content := `# Top

### Deep

Deep body.

## Mid

Mid body.`

	chunks, err := s.splitMarkdown(content)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, []string{"Top"}, chunks[0].Section.Path)
	assert.Equal(t, []string{"Top", "Deep"}, chunks[1].Section.Path,
		"a skipped level still nests under the last shallower heading")
	assert.Equal(t, []string{"Top", "Mid"}, chunks[2].Section.Path,
		"a later h2 pops the deeper heading off the stack")
}

func TestSplitMarkdown_PreambleBeforeFirstHeading(t *testing.T) {
	s := newSplitter(common.SplitterConfig{})

	chunks, err := s.splitMarkdown("Plain intro paragraph.\n\n# First\n\nFirst body.")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Plain intro paragraph.", chunks[0].Content)
	assert.Equal(t, models.Section{Level: 0, Path: nil}, chunks[0].Section)
	assert.Equal(t, []string{"First"}, chunks[1].Section.Path)
}

func TestSplitMarkdown_CodeFencesKeptIntact(t *testing.T) {
	s := newSplitter(common.SplitterConfig{})

	content := "# API\n\nBefore paragraph.\n\n```go\nfunc Hello() {}\n```\n\nAfter paragraph."

	chunks, err := s.splitMarkdown(content)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "# API\n\nBefore paragraph.", chunks[0].Content)
	assert.Equal(t, "```go\nfunc Hello() {}\n```", chunks[1].Content)
	assert.Equal(t, "After paragraph.", chunks[2].Content,
		"text after a fence is never folded into the code chunk")

	for _, chunk := range chunks {
		assert.Equal(t, []string{"API"}, chunk.Section.Path)
	}
}

func TestSplitMarkdown_OversizeCodeFenceSplitsByLines(t *testing.T) {
	s := newSplitter(common.SplitterConfig{MinChunkSize: 10, PreferredChunkSize: 40, MaxChunkSize: 120})

	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, strings.Repeat("x", 19)+string(rune('0'+i)))
	}
	content := "# Code\n\n```go\n" + strings.Join(lines, "\n") + "\n```"

	chunks, err := s.splitMarkdown(content)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2, "the oversize fence splits into several fenced chunks")

	var kept []string
	for _, chunk := range chunks[1:] {
		assert.True(t, strings.HasPrefix(chunk.Content, "```go\n"), "got %q", chunk.Content)
		assert.True(t, strings.HasSuffix(chunk.Content, "\n```"))
		assert.LessOrEqual(t, len(chunk.Content), 120)
		inner := strings.TrimSuffix(strings.TrimPrefix(chunk.Content, "```go\n"), "\n```")
		kept = append(kept, strings.Split(inner, "\n")...)
	}
	assert.Equal(t, lines, kept, "splitting loses no code lines")
}

func TestSplitMarkdown_OversizeParagraphSplit(t *testing.T) {
	s := newSplitter(common.SplitterConfig{MinChunkSize: 10, PreferredChunkSize: 40, MaxChunkSize: 120})

	paragraph := strings.Repeat("y", 300)
	chunks, err := s.splitMarkdown(paragraph)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	total := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), 120)
		total += len(chunk.Content)
	}
	assert.Equal(t, 300, total, "hard splitting loses no characters")
}

func TestSplitMarkdown_MergesTrailingFragment(t *testing.T) {
	s := newSplitter(common.SplitterConfig{MinChunkSize: 30, PreferredChunkSize: 60, MaxChunkSize: 200})

	first := strings.Repeat("a", 50)
	second := strings.Repeat("b", 10)
	chunks, err := s.splitMarkdown(first + "\n\n" + second)
	require.NoError(t, err)

	require.Len(t, chunks, 1, "a fragment below the minimum folds into its predecessor")
	assert.Equal(t, first+"\n\n"+second, chunks[0].Content)
}

func TestSplitMarkdown_Tables(t *testing.T) {
	s := newSplitter(common.SplitterConfig{})

	content := `# Matrix

| Name  | Role   |
| ----- | ------ |
| Alpha | Leader |
| Beta  | Helper |`

	chunks, err := s.splitMarkdown(content)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	joined := chunks[0].Content
	assert.Contains(t, joined, "Alpha")
	assert.Contains(t, joined, "Beta")
	assert.Contains(t, joined, "|")
}
