package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/solvekit/solvent/sandbox"
)

// Kind enumerates the failure taxonomy.
type Kind string

const (
	// KindGenerationFailed marks an attempt whose generator call produced no
	// usable code. No sandbox run was consumed.
	KindGenerationFailed Kind = "GENERATION_FAILED"
	// KindBlocked marks a submission the guardrail rejected before execution.
	KindBlocked Kind = "BLOCKED"
	// KindSyntax is a parse-time failure before any test ran.
	KindSyntax Kind = "SYNTAX"
	// KindName is an undefined-identifier or import failure.
	KindName Kind = "NAME"
	// KindType is a type or argument mismatch failure.
	KindType Kind = "TYPE"
	// KindTimeout means the sandbox force-terminated the run.
	KindTimeout Kind = "TIMEOUT"
	// KindRuntime is an uncaught exception other than the above.
	KindRuntime Kind = "RUNTIME"
	// KindLogic means the tests ran to completion and assertions failed.
	// It is the fallback kind.
	KindLogic Kind = "LOGIC"
)

// ClassifiedError is the structured interpretation of a failing run.
type ClassifiedError struct {
	Kind         Kind     `json:"kind"`
	ErrType      string   `json:"err_type"`
	Message      string   `json:"message"`
	Line         int      `json:"line,omitempty"` // 0 = not parseable
	FailingTests []string `json:"failing_tests,omitempty"`
	Excerpt      string   `json:"excerpt,omitempty"`
	Expected     string   `json:"expected,omitempty"`
	Actual       string   `json:"actual,omitempty"`
	Input        string   `json:"input,omitempty"`
	Fixability   float64  `json:"fixability"`
}

// Signature identifies an error closely enough to detect the generator
// reproducing the same failure on consecutive attempts.
func (e *ClassifiedError) Signature() string {
	return fmt.Sprintf("%s:%s:%d", e.Kind, e.ErrType, e.Line)
}

// Taxonomy table, evaluated in priority order: the first kind whose
// exception names contain the extracted error type wins.
var taxonomy = []struct {
	kind     Kind
	errTypes []string
}{
	{KindSyntax, []string{"SyntaxError", "IndentationError", "TabError"}},
	{KindName, []string{"NameError", "ImportError", "ModuleNotFoundError", "UnboundLocalError"}},
	{KindType, []string{"TypeError", "AttributeError"}},
	{KindRuntime, []string{
		"IndexError", "KeyError", "ValueError", "ZeroDivisionError",
		"RecursionError", "MemoryError", "OverflowError", "StopIteration",
	}},
}

// Observed next-attempt fix rates per kind, carried into repair requests as
// a hint for downstream reporting.
var fixability = map[Kind]float64{
	KindSyntax:  0.85,
	KindName:    0.75,
	KindType:    0.65,
	KindLogic:   0.45,
	KindRuntime: 0.55,
	KindTimeout: 0.20,
	KindBlocked: 0.30,

	KindGenerationFailed: 0.40,
}

const (
	maxMessageLen = 200
	maxExcerptLen = 2000
)

var (
	errTypePatterns = []*regexp.Regexp{
		regexp.MustCompile(`E\s+(\w+(?:Error|Exception)):`),
		regexp.MustCompile(`(?m)^(\w+(?:Error|Exception)):`),
		regexp.MustCompile(`(\w+(?:Error|Exception)): `),
	}
	linePatterns = []*regexp.Regexp{
		regexp.MustCompile(`solution\.py["']?,\s*line\s*(\d+)`),
		regexp.MustCompile(`solution\.py:(\d+)`),
		regexp.MustCompile(`(?i)line\s+(\d+)`),
	}
	failedTestPattern  = regexp.MustCompile(`FAILED\s+\S+::(\w+)`)
	bannerTestPattern  = regexp.MustCompile(`_{3,}\s*(\w+)\s*_{3,}`)
	// Anchored on pytest's rewritten "E   assert <actual> == <expected>"
	// line; the unrewritten source line above it starts with ">".
	assertDiffPattern  = regexp.MustCompile(`(?m)^E\s+assert\s+(.+?)\s*==\s*(.+?)\s*$`)
	assertInputPattern = regexp.MustCompile(`where\s+.+?=\s*\w+\((.+?)\)`)
	assertLinePattern  = regexp.MustCompile(`(?m)E?\s*assert\s+(.+)`)
)

// Classify derives a structured failure record from a failing execution
// result. It is undefined for a passing result. Pure and deterministic:
// identical inputs always yield identical outputs.
func Classify(res *sandbox.ExecutionResult) ClassifiedError {
	combined := res.Stdout + "\n" + res.Stderr

	if res.TimedOut() {
		return ClassifiedError{
			Kind:       KindTimeout,
			ErrType:    "Timeout",
			Message:    "Execution timed out. Check for infinite loops or excessive recursion.",
			Fixability: fixability[KindTimeout],
		}
	}

	errType := extractErrorType(combined)
	kind := kindForType(errType, res)

	ce := ClassifiedError{
		Kind:         kind,
		ErrType:      errType,
		Message:      extractMessage(combined, errType),
		Line:         extractLine(combined),
		FailingTests: extractFailingTests(combined),
		Excerpt:      truncate(strings.TrimSpace(combined), maxExcerptLen),
		Fixability:   fixability[kind],
	}
	if actual, expected, ok := extractExpectedActual(combined); ok {
		ce.Actual = actual
		ce.Expected = expected
	}
	if m := assertInputPattern.FindStringSubmatch(combined); m != nil {
		ce.Input = truncate(strings.TrimSpace(m[1]), 100)
	}
	return ce
}

// NewGenerationFailure builds the synthetic record for an attempt whose
// generator call failed or returned unusable output.
func NewGenerationFailure(reason string) ClassifiedError {
	return ClassifiedError{
		Kind:       KindGenerationFailed,
		ErrType:    "GenerationError",
		Message:    truncate(reason, maxMessageLen),
		Fixability: fixability[KindGenerationFailed],
	}
}

// NewBlocked builds the record for a submission the guardrail rejected.
func NewBlocked(reason string) ClassifiedError {
	return ClassifiedError{
		Kind:       KindBlocked,
		ErrType:    "GuardrailViolation",
		Message:    truncate(reason, maxMessageLen),
		Fixability: fixability[KindBlocked],
	}
}

func kindForType(errType string, res *sandbox.ExecutionResult) Kind {
	for _, entry := range taxonomy {
		for _, name := range entry.errTypes {
			if errType == name {
				return entry.kind
			}
		}
	}
	if res.MemoryExceeded {
		return KindRuntime
	}
	// Any other uncaught exception is a runtime failure.
	if errType != "" && errType != "AssertionError" && errType != "UnknownError" {
		return KindRuntime
	}
	// A process killed by a signal (segfault, OOM kill) with no parseable
	// exception text still crashed; LOGIC is reserved for suites that ran
	// to completion with failing assertions.
	if res.Status == sandbox.StatusCrashed && errType != "AssertionError" {
		return KindRuntime
	}
	return KindLogic
}

func extractErrorType(output string) string {
	for _, p := range errTypePatterns {
		if m := p.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	}
	if strings.Contains(output, "AssertionError") || strings.Contains(strings.ToLower(output), "assert ") {
		return "AssertionError"
	}
	return "UnknownError"
}

func extractLine(output string) int {
	for _, p := range linePatterns {
		if m := p.FindStringSubmatch(output); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}

func extractMessage(output, errType string) string {
	if errType != "" && errType != "UnknownError" {
		p := regexp.MustCompile(regexp.QuoteMeta(errType) + `:\s*(.+)`)
		if m := p.FindStringSubmatch(output); m != nil {
			return truncate(strings.TrimSpace(m[1]), maxMessageLen)
		}
	}
	if errType == "AssertionError" || errType == "UnknownError" {
		if m := assertLinePattern.FindStringSubmatch(output); m != nil {
			return truncate("Assertion failed: "+strings.TrimSpace(m[1]), maxMessageLen)
		}
	}
	return "Unknown error occurred"
}

func extractFailingTests(output string) []string {
	var failing []string
	seen := map[string]bool{}
	for _, m := range failedTestPattern.FindAllStringSubmatch(output, -1) {
		if !seen[m[1]] {
			failing = append(failing, m[1])
			seen[m[1]] = true
		}
	}
	for _, m := range bannerTestPattern.FindAllStringSubmatch(output, -1) {
		if strings.HasPrefix(m[1], "test_") && !seen[m[1]] {
			failing = append(failing, m[1])
			seen[m[1]] = true
		}
	}
	return failing
}

func extractExpectedActual(output string) (actual, expected string, ok bool) {
	m := assertDiffPattern.FindStringSubmatch(output)
	if m == nil {
		return "", "", false
	}
	return truncate(strings.TrimSpace(m[1]), 100), truncate(strings.TrimSpace(m[2]), 100), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
