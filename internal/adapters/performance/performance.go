// Package performance is the opaque performance-rating calculator
// boundary. The numeric engine itself lives outside this core.
package performance

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/aisuru/score-server/internal/domain/mods"
	"github.com/aisuru/score-server/pkg/metrics"
)

// Params are the score parameters handed to the calculator.
type Params struct {
	Mods     mods.Mods
	Accuracy float64
	Misses   int
	Combo    int
}

// Result carries the calculator's output.
type Result struct {
	PP    float64 `json:"pp"`
	Stars float64 `json:"stars"`
}

// Calculator computes the performance rating for a beatmap file and score
// parameters.
type Calculator interface {
	Calculate(ctx context.Context, beatmapPath string, params Params) (Result, error)
}

// Func adapts a function to the Calculator interface.
type Func func(ctx context.Context, beatmapPath string, params Params) (Result, error)

// Calculate implements Calculator.
func (f Func) Calculate(ctx context.Context, beatmapPath string, params Params) (Result, error) {
	return f(ctx, beatmapPath, params)
}

// CommandCalculator shells out to an external rating engine that prints a
// JSON result on stdout.
type CommandCalculator struct {
	binary string
}

// NewCommandCalculator creates a calculator invoking the given binary.
func NewCommandCalculator(binary string) *CommandCalculator {
	return &CommandCalculator{binary: binary}
}

// Calculate runs the engine. A failure degrades to a local error; the
// caller is expected to continue without a rating.
func (c *CommandCalculator) Calculate(ctx context.Context, beatmapPath string, params Params) (Result, error) {
	cmd := exec.CommandContext(ctx, c.binary,
		"--map", beatmapPath,
		"--mods", fmt.Sprintf("%d", int32(params.Mods)),
		"--acc", fmt.Sprintf("%f", params.Accuracy),
		"--misses", fmt.Sprintf("%d", params.Misses),
		"--combo", fmt.Sprintf("%d", params.Combo),
	)

	out, err := cmd.Output()
	if err != nil {
		metrics.RecordExternalError("performance")
		return Result{}, fmt.Errorf("performance engine: %w", err)
	}

	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		metrics.RecordExternalError("performance")
		return Result{}, fmt.Errorf("performance engine output: %w", err)
	}
	return result, nil
}
