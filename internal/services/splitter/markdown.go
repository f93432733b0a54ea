package splitter

import (
	"strings"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// piece is one block-level unit collected from a section before packing.
// Code pieces are never merged with text; they become fenced chunks.
type piece struct {
	text     string
	code     bool
	language string
}

// section groups the pieces that share one heading position.
type section struct {
	level  int
	path   []string
	pieces []piece
}

// splitMarkdown parses the markdown AST and emits chunks along the heading
// hierarchy: every chunk carries the path of heading titles leading to it.
func (s *Service) splitMarkdown(content string) ([]models.ContentChunk, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough),
	)
	source := []byte(content)
	doc := md.Parser().Parse(text.NewReader(source))

	// Heading stack entries pair a level with its title so skipped levels
	// (an H3 directly under an H1) nest correctly.
	type stackEntry struct {
		level int
		title string
	}
	var stack []stackEntry

	current := &section{level: 0, path: nil}
	sections := []*section{current}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			title := inlineText(n, source)
			for len(stack) > 0 && stack[len(stack)-1].level >= n.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, stackEntry{level: n.Level, title: title})

			path := make([]string, len(stack))
			for i, e := range stack {
				path[i] = e.title
			}

			current = &section{level: n.Level, path: path}
			current.pieces = append(current.pieces, piece{
				text: strings.Repeat("#", n.Level) + " " + title,
			})
			sections = append(sections, current)

		case *ast.FencedCodeBlock:
			current.pieces = append(current.pieces, piece{
				text:     blockLines(n, source),
				code:     true,
				language: string(n.Language(source)),
			})

		case *ast.CodeBlock:
			current.pieces = append(current.pieces, piece{
				text: blockLines(n, source),
				code: true,
			})

		default:
			if raw := nodeSource(node, source); raw != "" {
				current.pieces = append(current.pieces, piece{text: raw})
			}
		}
	}

	var chunks []models.ContentChunk
	for _, sec := range sections {
		chunks = append(chunks, s.packSection(sec)...)
	}
	return chunks, nil
}

// packSection greedily packs a section's pieces into chunks around the
// preferred size, then merges trailing fragments below the minimum.
func (s *Service) packSection(sec *section) []models.ContentChunk {
	meta := models.Section{Level: sec.level, Path: sec.path}

	var chunks []models.ContentChunk
	var buf strings.Builder

	flush := func() {
		content := strings.TrimSpace(buf.String())
		buf.Reset()
		if content != "" {
			chunks = append(chunks, models.ContentChunk{Content: content, Section: meta})
		}
	}

	for _, p := range sec.pieces {
		if p.code {
			flush()
			for _, fenced := range s.fenceCode(p.text, p.language) {
				chunks = append(chunks, models.ContentChunk{Content: fenced, Section: meta})
			}
			continue
		}

		for _, part := range splitOversize(p.text, s.config.MaxChunkSize) {
			if buf.Len() > 0 && buf.Len()+len(part)+2 > s.config.PreferredChunkSize {
				flush()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(part)
		}
	}
	flush()

	return s.mergeSmallChunks(chunks)
}

// mergeSmallChunks folds chunks under the minimum size into their
// predecessor when the result stays within the hard cap. Code chunks are
// left alone so fences stay intact.
func (s *Service) mergeSmallChunks(chunks []models.ContentChunk) []models.ContentChunk {
	if len(chunks) < 2 {
		return chunks
	}
	merged := chunks[:1]
	for _, chunk := range chunks[1:] {
		last := &merged[len(merged)-1]
		smallText := len(chunk.Content) < s.config.MinChunkSize && !strings.HasPrefix(chunk.Content, "```")
		fits := len(last.Content)+len(chunk.Content)+2 <= s.config.MaxChunkSize
		if smallText && fits && !strings.HasPrefix(last.Content, "```") {
			last.Content = last.Content + "\n\n" + chunk.Content
			continue
		}
		merged = append(merged, chunk)
	}
	return merged
}

// fenceCode wraps code in markdown fences, splitting by lines when a single
// fenced block would exceed the hard cap.
func (s *Service) fenceCode(code, language string) []string {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return nil
	}

	overhead := len("```") + len(language) + 1 + len("\n```")
	budget := s.config.MaxChunkSize - overhead
	if budget < 1 {
		budget = s.config.MaxChunkSize
	}

	var fenced []string
	for _, part := range splitByLines(code, budget) {
		fenced = append(fenced, "```"+language+"\n"+part+"\n```")
	}
	return fenced
}

// inlineText concatenates the literal text of a node's inline children.
func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
				continue
			}
			walk(c)
		}
	}
	walk(node)
	return strings.TrimSpace(sb.String())
}

// blockLines returns the raw line content of a leaf block node.
func blockLines(node ast.Node, source []byte) string {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
	}
	return sb.String()
}

// nodeSource reconstructs a block node's source text, covering container
// nodes like lists whose own Lines() is empty.
func nodeSource(node ast.Node, source []byte) string {
	start, stop := nodeSpan(node)
	if start < 0 || stop <= start || stop > len(source) {
		return ""
	}
	return strings.TrimRight(string(source[start:stop]), "\n")
}

func nodeSpan(node ast.Node) (int, int) {
	if lines := node.Lines(); lines != nil && lines.Len() > 0 {
		return lines.At(0).Start, lines.At(lines.Len() - 1).Stop
	}
	start, stop := -1, -1
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		cs, cstop := nodeSpan(c)
		if cs < 0 {
			continue
		}
		if start < 0 || cs < start {
			start = cs
		}
		if cstop > stop {
			stop = cstop
		}
	}
	return start, stop
}
