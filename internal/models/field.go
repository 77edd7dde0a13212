package models

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldInput is what the user typed into the analysis form.
type FieldInput struct {
	Location string `json:"location" validate:"required"`
	Crop     string `json:"crop" validate:"required"`
	Size     string `json:"size,omitempty"`
	Details  string `json:"details,omitempty"`
}

// Normalize trims surrounding whitespace from every field.
func (f FieldInput) Normalize() FieldInput {
	return FieldInput{
		Location: strings.TrimSpace(f.Location),
		Crop:     strings.TrimSpace(f.Crop),
		Size:     strings.TrimSpace(f.Size),
		Details:  strings.TrimSpace(f.Details),
	}
}

// Check reports the first missing required field.
func (f FieldInput) Check() error {
	err := validate.Struct(f.Normalize())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "Location":
		return ErrMissingLocation
	case "Crop":
		return ErrMissingCrop
	default:
		return err
	}
}
