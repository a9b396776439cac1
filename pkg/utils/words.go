package utils

import (
	"strings"

	"github.com/k3a/html2text"
)

// CountWords counts whitespace separated words, ignoring HTML markup.
func CountWords(content string) int {
	if strings.ContainsRune(content, '<') {
		content = html2text.HTML2Text(content)
	}
	return len(strings.Fields(content))
}
