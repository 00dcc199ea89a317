package generator

import (
	"regexp"
	"strings"
)

var (
	markdownFence = regexp.MustCompile("(?s)```(?:python)?\n(.*?)```")
	pythonTags    = regexp.MustCompile(`(?s)\[PYTHON\]\n?(.*?)\[/PYTHON\]`)
)

// Code-looking line starts for the last-resort line scan.
var codePrefixes = []string{"#", "def ", "class ", "import ", "from ", "return ", "if ", "for ", "while ", "@"}

// ExtractCode pulls source code out of a model response. It tries markdown
// code fences first, then CodeLlama-style [PYTHON] tags, then falls back to
// scanning for code-looking lines, and finally returns the trimmed response
// as-is.
func ExtractCode(response string) string {
	if m := markdownFence.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := pythonTags.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}

	var codeLines []string
	inCode := false
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		if !inCode && looksLikeCode(line) {
			inCode = true
		}
		if inCode {
			codeLines = append(codeLines, line)
		}
	}
	if len(codeLines) > 0 {
		return strings.TrimSpace(strings.Join(codeLines, "\n"))
	}
	return strings.TrimSpace(response)
}

func looksLikeCode(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range codePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
