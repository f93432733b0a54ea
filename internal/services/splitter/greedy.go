package splitter

import "strings"

// splitOversize breaks a text block that exceeds the hard cap, preferring
// paragraph boundaries, then lines, then rune positions. Blocks within the
// cap pass through unchanged.
func splitOversize(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= max {
		return []string{text}
	}

	var parts []string
	var buf strings.Builder
	flush := func() {
		if part := strings.TrimSpace(buf.String()); part != "" {
			parts = append(parts, part)
		}
		buf.Reset()
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if len(paragraph) > max {
			flush()
			parts = append(parts, splitByLines(paragraph, max)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(paragraph)+2 > max {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(paragraph)
	}
	flush()
	return parts
}

// splitByLines groups lines greedily under the cap; a single line over the
// cap is cut at rune boundaries.
func splitByLines(text string, max int) []string {
	var parts []string
	var buf strings.Builder
	flush := func() {
		if part := strings.TrimRight(buf.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if len(line) > max {
			flush()
			parts = append(parts, hardSplit(line, max)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(line)+1 > max {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)
	}
	flush()
	return parts
}

// hardSplit cuts text into pieces of at most max bytes without breaking
// UTF-8 sequences.
func hardSplit(text string, max int) []string {
	if max < 4 {
		max = 4
	}
	var parts []string
	var buf strings.Builder
	for _, r := range text {
		if buf.Len()+len(string(r)) > max {
			parts = append(parts, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	return parts
}
