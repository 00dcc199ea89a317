package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solvekit/solvent/repair"
	"github.com/solvekit/solvent/task"
)

// ErrEmptyGeneration is returned when the backend produced no usable code.
var ErrEmptyGeneration = errors.New("generator returned no usable code")

// Result is one generation outcome with extraction and usage metadata.
type Result struct {
	Code             string
	Raw              string
	Duration         time.Duration
	PromptTokens     int
	CompletionTokens int
}

// Generator produces candidate solutions. Implementations may fail with a
// generation error (timeout, malformed output, upstream unavailability);
// the loop records such failures and keeps going.
type Generator interface {
	Generate(ctx context.Context, t *task.Task) (Result, error)
	Repair(ctx context.Context, req repair.Request) (Result, error)
	Available(ctx context.Context) error
}

const generationTemplate = `Complete the following Python function. Return only the code, no explanations.

%s
Constraints:
- Keep the exact function signature
- No print statements or debug output
- Deterministic output only
- Use efficient algorithms
- Return ONLY the code, nothing else
`

// GenerationPrompt renders the initial prompt for a task.
func GenerationPrompt(t *task.Task) string {
	return fmt.Sprintf(generationTemplate, t.Prompt())
}
