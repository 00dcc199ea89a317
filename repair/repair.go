package repair

import (
	"fmt"
	"strings"

	"github.com/solvekit/solvent/classify"
	"github.com/solvekit/solvent/task"
)

// Request carries a full repair context to the generator. It is built fresh
// for every retry and superseded, never mutated.
type Request struct {
	Task       *task.Task
	Submission task.Submission
	Error      classify.ClassifiedError
	Prompt     string
}

const stepByStep = "Think step by step: restate what the tests require, explain what the current code does instead, then decide the change. After reasoning, return ONLY the corrected code, no explanation."

// Build assembles a repair request for the given failure. Deterministic:
// the same inputs always produce the same prompt.
func Build(t *task.Task, sub task.Submission, ce classify.ClassifiedError) Request {
	var prompt string
	switch ce.Kind {
	case classify.KindSyntax:
		prompt = syntaxPrompt(sub.Source, ce)
	case classify.KindLogic:
		prompt = logicPrompt(t, sub.Source, ce)
	case classify.KindBlocked:
		prompt = blockedPrompt(t, sub.Source, ce)
	default:
		prompt = genericPrompt(t, sub.Source, ce)
	}
	return Request{
		Task:       t,
		Submission: sub,
		Error:      ce,
		Prompt:     prompt,
	}
}

func syntaxPrompt(code string, ce classify.ClassifiedError) string {
	line := "unknown"
	if ce.Line > 0 {
		line = fmt.Sprintf("%d", ce.Line)
	}
	return fmt.Sprintf(`This code has a syntax error. Fix it.
%s

Error: %s
Line: %s

Check parentheses, colons, and indentation. %s`,
		codeBlock(code), ce.Message, line, stepByStep)
}

func logicPrompt(t *task.Task, code string, ce classify.ClassifiedError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The code below produces WRONG OUTPUT for the task:\n%s\n%s\n", t.Signature, codeBlock(code))

	// Up to five relevant assertions, preferring the ones that failed.
	hints := assertionHints(t, ce.FailingTests)
	if len(hints) > 0 {
		b.WriteString("\nExpected behavior from tests:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "  assert %s\n", h)
		}
	}

	if ce.Expected != "" || ce.Actual != "" || ce.Input != "" {
		b.WriteString("\nWhat went wrong:\n")
		if ce.Input != "" {
			fmt.Fprintf(&b, "  Input: %s\n", ce.Input)
		}
		if ce.Expected != "" {
			fmt.Fprintf(&b, "  Expected: %s\n", ce.Expected)
		}
		if ce.Actual != "" {
			fmt.Fprintf(&b, "  Got: %s\n", ce.Actual)
		}
	}

	if len(ce.FailingTests) > 0 {
		fmt.Fprintf(&b, "\nFailing tests: %s\n", strings.Join(ce.FailingTests, ", "))
	}

	b.WriteString("\n")
	b.WriteString(stepByStep)
	return b.String()
}

func blockedPrompt(t *task.Task, code string, ce classify.ClassifiedError) string {
	return fmt.Sprintf(`The code below was rejected by a safety screen before execution and never ran.
%s

Rejection reason: %s

Solve the task using only pure computation: no OS commands, no eval/exec, no file or network access, and do not define your own tests.

Task:
%s
%s`, codeBlock(code), ce.Message, t.Prompt(), stepByStep)
}

func genericPrompt(t *task.Task, code string, ce classify.ClassifiedError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This code has an error. Fix it.\n%s\n", codeBlock(code))
	fmt.Fprintf(&b, "\nError type: %s\nMessage: %s\n", ce.ErrType, ce.Message)
	if ce.Line > 0 {
		fmt.Fprintf(&b, "Line: %d\n", ce.Line)
	}
	if len(ce.FailingTests) > 0 {
		fmt.Fprintf(&b, "Failing tests: %s\n", strings.Join(ce.FailingTests, ", "))
	}
	fmt.Fprintf(&b, "\nKeep the signature unchanged:\n%s\n\n", t.Signature)
	b.WriteString(stepByStep)
	return b.String()
}

// assertionHints returns up to five assertion expressions, failed ones first.
func assertionHints(t *task.Task, failingTests []string) []string {
	const limit = 5
	failed := map[string]bool{}
	for _, name := range failingTests {
		failed[name] = true
	}

	var hints []string
	for i, a := range t.Assertions {
		if failed["test_"+t.AssertionName(i)] {
			hints = append(hints, a.Expr)
		}
	}
	for _, a := range t.Assertions {
		if len(hints) >= limit {
			break
		}
		if !contains(hints, a.Expr) {
			hints = append(hints, a.Expr)
		}
	}
	if len(hints) > limit {
		hints = hints[:limit]
	}
	return hints
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func codeBlock(code string) string {
	return "```python\n" + strings.TrimRight(code, "\n") + "\n```"
}
