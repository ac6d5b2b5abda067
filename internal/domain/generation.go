package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxPromptLength = 2048

	MinSteps     = 1
	MaxSteps     = 8
	DefaultSteps = 4

	MinImageCount     = 1
	MaxImageCount     = 4
	DefaultImageCount = 1
)

// GenerationInput is the raw, unvalidated shape of a generate call. Nil
// pointers mean the caller omitted the field.
type GenerationInput struct {
	Prompt    string
	Steps     *int
	NumImages *int
}

// GenerationRequest is a validated request ready for the orchestrator.
type GenerationRequest struct {
	Prompt     string
	Steps      int
	ImageCount int
}

// Validate applies defaults and checks bounds in the order prompt, steps,
// image count. It stops at the first violation.
func (in GenerationInput) Validate() (GenerationRequest, error) {
	prompt := norm.NFC.String(in.Prompt)
	if strings.TrimSpace(prompt) == "" || utf8.RuneCountInString(prompt) > MaxPromptLength {
		return GenerationRequest{}, newValidationError(ErrInvalidPrompt,
			fmt.Sprintf("Prompt is required and must be at most %d characters", MaxPromptLength))
	}

	steps := DefaultSteps
	if in.Steps != nil {
		steps = *in.Steps
	}
	if steps < MinSteps || steps > MaxSteps {
		return GenerationRequest{}, newValidationError(ErrInvalidSteps,
			fmt.Sprintf("Steps must be between %d and %d", MinSteps, MaxSteps))
	}

	count := DefaultImageCount
	if in.NumImages != nil {
		count = *in.NumImages
	}
	if count < MinImageCount || count > MaxImageCount {
		return GenerationRequest{}, newValidationError(ErrInvalidImageCount,
			fmt.Sprintf("Number of images must be between %d and %d", MinImageCount, MaxImageCount))
	}

	return GenerationRequest{Prompt: prompt, Steps: steps, ImageCount: count}, nil
}
