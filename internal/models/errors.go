package models

import (
	"errors"
)

// ErrExtractionFailed is the parent of every error caused by a model answer
// that could not be turned into an AnalysisResult.
var ErrExtractionFailed = errors.New("analysis extraction failed")

// Extraction errors
var (
	ErrEmptyOutput     = extractionError("model returned no text")
	ErrMalformedOutput = extractionError("model output is not valid JSON")
	ErrInvalidResult   = extractionError("model output does not match the analysis schema")
)

// Input errors
var (
	ErrMissingLocation = errors.New("location is required")
	ErrMissingCrop     = errors.New("crop is required")
)

type extractError struct {
	msg string
}

func extractionError(msg string) error {
	return &extractError{msg: msg}
}

func (e *extractError) Error() string {
	return e.msg
}

func (e *extractError) Is(target error) bool {
	return target == ErrExtractionFailed
}
