package graph

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/quillkb/quill/backend/pkg/common"
)

// splitIntoUnits groups a section's sentences into units of at most
// maxTokens tokens. Sentences are never split; a single oversized
// sentence becomes its own unit.
func (c *BuilderClient) splitIntoUnits(text string) []common.Unit {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var units []common.Unit
	chunkStart := -1
	chunkEnd := -1
	lastTokens := 0

	flush := func() {
		if chunkStart < 0 || chunkEnd <= chunkStart {
			return
		}
		joined := strings.TrimSpace(strings.Join(sentences[chunkStart:chunkEnd], " "))
		if joined == "" {
			chunkStart, chunkEnd = -1, -1
			return
		}
		tokens := lastTokens
		if tokens == 0 {
			tokens = len(c.encoder.Encode(joined, nil, nil))
		}
		units = append(units, common.Unit{
			Index:  len(units),
			Text:   joined,
			Tokens: tokens,
		})
		chunkStart, chunkEnd = -1, -1
		lastTokens = 0
	}

	for i := range sentences {
		if chunkStart < 0 {
			chunkStart = i
			chunkEnd = i + 1
			lastTokens = len(c.encoder.Encode(sentences[i], nil, nil))
			continue
		}

		candidate := strings.Join(sentences[chunkStart:i+1], " ")
		tokens := len(c.encoder.Encode(candidate, nil, nil))
		if tokens <= c.maxUnitTokens {
			chunkEnd = i + 1
			lastTokens = tokens
		} else {
			flush()
			chunkStart = i
			chunkEnd = i + 1
			lastTokens = len(c.encoder.Encode(sentences[i], nil, nil))
		}
	}
	flush()

	return units
}

var tableDelimRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

// splitIntoSentences breaks text into sentences, keeping markdown
// tables together as single blocks so extraction sees whole rows.
func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var sentences []string
	var current strings.Builder

	isTableRow := func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return false
		}
		return strings.Contains(trimmed, "|")
	}

	flushCurrent := func() {
		if current.Len() > 0 {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	appendLineSentences := func(trimmed string) {
		for _, sentence := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)

			switch {
			case strings.HasSuffix(sentence, "."),
				strings.HasSuffix(sentence, "!"),
				strings.HasSuffix(sentence, "?"),
				strings.HasSuffix(sentence, "。"),
				strings.HasSuffix(sentence, "！"),
				strings.HasSuffix(sentence, "？"):
				flushCurrent()
			}
		}
	}

	inTable := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inTable && isTableRow(line) && i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])) {
			flushCurrent()
			inTable = true
			current.WriteString(line)
			continue
		}

		if !inTable && isTableRow(line) {
			flushCurrent()
			sentences = append(sentences, trimmed)
			continue
		}

		if inTable {
			if trimmed == "" || !isTableRow(line) {
				inTable = false
				flushCurrent()
				if trimmed != "" {
					appendLineSentences(trimmed)
				}
			} else {
				current.WriteString("\n")
				current.WriteString(line)
			}
			continue
		}

		if trimmed == "" {
			flushCurrent()
		} else {
			appendLineSentences(trimmed)
		}
	}
	flushCurrent()

	var result []string
	for _, sentence := range sentences {
		if strings.TrimSpace(sentence) != "" {
			result = append(result, sentence)
		}
	}
	return result
}

// splitLineIntoSentences splits one line on sentence terminators,
// keeping numbered listings like "1. Introduction" intact and pulling
// trailing quotes and brackets into the sentence.
func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		if !isSentenceEnd(runes[i]) {
			continue
		}

		if runes[i] == '.' && i > 0 && unicode.IsDigit(runes[i-1]) &&
			i+1 < len(runes) && runes[i+1] == ' ' {
			continue
		}

		j := i + 1
		for j < len(runes) && isSentenceEnd(runes[j]) {
			current.WriteRune(runes[j])
			j++
		}
		for j < len(runes) && isClosingMark(runes[j]) {
			current.WriteRune(runes[j])
			j++
		}

		sentence := strings.TrimSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
		i = j - 1
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isClosingMark(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '』', '」':
		return true
	}
	return false
}
