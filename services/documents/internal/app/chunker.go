package app

import (
	"regexp"
	"strings"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// chunkParagraphs splits extracted text into chunks of at most maxLen
// characters, preferring paragraph boundaries. Paragraphs longer than
// maxLen are split at the nearest preceding space; an unbroken run longer
// than maxLen stays intact rather than being cut mid-word.
func chunkParagraphs(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 1000
	}
	var chunks []string
	var current strings.Builder
	flush := func() {
		part := strings.TrimSpace(current.String())
		if part != "" {
			chunks = append(chunks, part)
		}
		current.Reset()
	}
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > maxLen {
			flush()
		}
		if len(para) <= maxLen {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
			continue
		}
		flush()
		parts := splitLongParagraph(para, maxLen)
		if len(parts) == 0 {
			continue
		}
		chunks = append(chunks, parts[:len(parts)-1]...)
		current.WriteString(parts[len(parts)-1])
	}
	flush()
	return chunks
}

func splitLongParagraph(para string, maxLen int) []string {
	var parts []string
	for len(para) > maxLen {
		cut := strings.LastIndexByte(para[:maxLen+1], ' ')
		if cut <= 0 {
			next := strings.IndexByte(para[maxLen:], ' ')
			if next < 0 {
				break
			}
			cut = maxLen + next
		}
		part := strings.TrimSpace(para[:cut])
		if part != "" {
			parts = append(parts, part)
		}
		para = strings.TrimSpace(para[cut:])
	}
	if para != "" {
		parts = append(parts, para)
	}
	return parts
}
