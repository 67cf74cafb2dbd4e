package lexical

import "strings"

const defaultChunkWindow = 700

type rawChunk struct {
	title string
	body  string
}

// splitDocument cuts a source document into chunks: by top-level heading
// sections when the document has them, by fixed character windows otherwise.
func splitDocument(title, text string, window int) []rawChunk {
	if window <= 0 {
		window = defaultChunkWindow
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sections := splitByHeadings(text)
	if len(sections) > 1 {
		out := make([]rawChunk, 0, len(sections))
		for _, section := range sections {
			sectionTitle, body := headingAndBody(section)
			if sectionTitle == "" {
				sectionTitle = title
			}
			for _, piece := range windowed(body, window) {
				out = append(out, rawChunk{title: sectionTitle, body: piece})
			}
		}
		return out
	}

	out := make([]rawChunk, 0, len(text)/window+1)
	for _, piece := range windowed(text, window) {
		out = append(out, rawChunk{title: title, body: piece})
	}
	return out
}

func splitByHeadings(text string) []string {
	lines := strings.Split(text, "\n")
	var sections []string
	var current []string

	for _, line := range lines {
		if strings.HasPrefix(line, "# ") && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

func headingAndBody(section string) (string, string) {
	section = strings.TrimSpace(section)
	if !strings.HasPrefix(section, "# ") {
		return "", section
	}
	newline := strings.IndexByte(section, '\n')
	if newline < 0 {
		return strings.TrimSpace(section[2:]), ""
	}
	return strings.TrimSpace(section[2:newline]), strings.TrimSpace(section[newline+1:])
}

func windowed(text string, window int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/window+1)
	for start := 0; start < len(runes); start += window {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
