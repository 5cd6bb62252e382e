package command

import "strings"

// Tokenize splits a command line into whitespace-separated tokens. A
// double-quoted run is one token with the surrounding quotes removed and
// embedded \" sequences unescaped to ". An unterminated quote consumes the
// rest of the line.
//
// Postcondition: Returns nil for a blank line.
func Tokenize(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var tokens []string
	i := 0
	for i < len(line) {
		// skip whitespace between tokens
		if line[i] == ' ' || line[i] == '\t' {
			i++
			continue
		}

		if line[i] == '"' {
			content, next := scanQuoted(line, i+1)
			tokens = append(tokens, content)
			i = next
			continue
		}

		start := i
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		tokens = append(tokens, line[start:i])
	}
	return tokens
}

// scanQuoted reads a quoted run starting just past the opening quote.
// It returns the unescaped content and the index past the closing quote.
func scanQuoted(line string, start int) (string, int) {
	var b strings.Builder
	i := start
	for i < len(line) {
		if line[i] == '\\' && i+1 < len(line) && line[i+1] == '"' {
			b.WriteByte('"')
			i += 2
			continue
		}
		if line[i] == '"' {
			return b.String(), i + 1
		}
		b.WriteByte(line[i])
		i++
	}
	return b.String(), i
}
