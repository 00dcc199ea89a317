package task

import (
	"fmt"
	"strings"
)

// Assertion is a single expected-behavior check for a task. Expr is a Python
// boolean expression over the task's entry point, e.g. `add(2, 3) == 5`.
type Assertion struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// Task is an immutable problem specification.
type Task struct {
	ID          string      `yaml:"id"`
	EntryPoint  string      `yaml:"entry_point"`
	Signature   string      `yaml:"signature"`
	Description string      `yaml:"description"`
	Assertions  []Assertion `yaml:"assertions"`
}

// Submission is one candidate solution, owned by the attempt that produced it.
type Submission struct {
	Source  string
	Attempt int
}

// Prompt renders the task as the problem statement handed to a generator.
func (t *Task) Prompt() string {
	var b strings.Builder
	b.WriteString(t.Signature)
	b.WriteString("\n")
	if t.Description != "" {
		b.WriteString(`    """`)
		b.WriteString(t.Description)
		b.WriteString(`"""`)
		b.WriteString("\n")
	}
	return b.String()
}

// AssertionName returns the test identifier for the assertion at index i,
// matching the test function names emitted by TestSource.
func (t *Task) AssertionName(i int) string {
	if i < len(t.Assertions) && t.Assertions[i].Name != "" {
		return t.Assertions[i].Name
	}
	return fmt.Sprintf("case_%d", i+1)
}

// TestSource renders the task's assertions as a pytest file that imports the
// submission. Each assertion gets its own test function so failing test names
// map back to assertion identifiers.
func (t *Task) TestSource() string {
	var b strings.Builder
	b.WriteString("# Auto-generated test file\n")
	b.WriteString("from solution import *\n\n")
	for i, a := range t.Assertions {
		fmt.Fprintf(&b, "def test_%s():\n    assert %s\n\n", t.AssertionName(i), a.Expr)
	}
	return b.String()
}

// Validate checks that the task is well formed enough to evaluate.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Signature == "" {
		return fmt.Errorf("task %q: signature is required", t.ID)
	}
	if len(t.Assertions) == 0 {
		return fmt.Errorf("task %q: at least one assertion is required", t.ID)
	}
	for i, a := range t.Assertions {
		if strings.TrimSpace(a.Expr) == "" {
			return fmt.Errorf("task %q: assertion %d has an empty expression", t.ID, i)
		}
	}
	return nil
}
