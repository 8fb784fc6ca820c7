// Package budget holds the token accounting used throughout the
// percentage math: a cheap word-count estimator, target sizing for a
// given percentage, and the completion budget handed to the provider.
package budget

import (
	"math"
	"strings"
)

// Temperature bounds for completion calls. Requests may override the
// default but never exceed the maximum.
const (
	DefaultTemperature = 0.7
	MaxTemperature     = 0.9
)

// Completion budget policy. Expansion needs more room than compression
// or rephrasing; the floor keeps short inputs from starving the model.
const (
	expandMultiplier   = 3
	compressMultiplier = 2
	budgetPadding      = 500
	budgetFloor        = 1000
)

// EstimateTokens returns the estimated token count of a string using a
// whitespace word-count proxy. The estimate must stay consistent
// within one process so that relative percentage math is stable; exact
// tokenizer fidelity is not required.
func EstimateTokens(s string) int {
	return len(strings.Fields(s))
}

// TargetTokens converts a target percentage into an absolute token
// goal for the given original size. The result is never below 1 so a
// plan always asks for visible output.
func TargetTokens(originalTokens, targetPercentage int) int {
	n := int(math.Round(float64(originalTokens) * float64(targetPercentage) / 100.0))
	if n < 1 {
		return 1
	}
	return n
}

// MaxCompletionTokens computes the generation budget for one call.
// slots is the total number of versions across all lengths in the
// plan; every slot needs its own room in the completion.
func MaxCompletionTokens(originalTokens int, expansion bool, slots int) int {
	mult := compressMultiplier
	if expansion {
		mult = expandMultiplier
	}
	if slots < 1 {
		slots = 1
	}
	n := originalTokens*mult*slots + budgetPadding
	if n < budgetFloor {
		return budgetFloor
	}
	return n
}

// ClampTemperature bounds t into [0, MaxTemperature].
func ClampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

// FinalPercentage computes the realized percentage of a produced
// version relative to the original size, rounded to one decimal. The
// value is always derived from our own token counts, never from
// numbers embedded in a model response.
func FinalPercentage(finalTokens, originalTokens int) float64 {
	if originalTokens <= 0 {
		return 0
	}
	pct := float64(finalTokens) / float64(originalTokens) * 100.0
	return math.Round(pct*10) / 10
}
