package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smartsoil/smartsoil/internal/models"
)

var fenceReplacer = strings.NewReplacer("```json", "", "```", "")

// StripCodeFences removes markdown code fence markers the model sometimes adds
// despite being told not to.
func StripCodeFences(text string) string {
	return strings.TrimSpace(fenceReplacer.Replace(text))
}

// Extract decodes model text into a validated AnalysisResult. Every error it
// returns matches models.ErrExtractionFailed.
func Extract(text string) (*models.AnalysisResult, error) {
	cleaned := StripCodeFences(text)
	if cleaned == "" {
		return nil, models.ErrEmptyOutput
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrMalformedOutput, err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}
