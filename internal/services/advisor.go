package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/models"
)

// Advisor turns a field description into an analysis.
type Advisor struct {
	generator Generator
	logger    *zap.Logger
}

func NewAdvisor(generator Generator, logger *zap.Logger) *Advisor {
	return &Advisor{generator: generator, logger: logger}
}

// Analyze builds the prompt, calls the model once and extracts the result.
// Errors matching models.ErrExtractionFailed mean the model answered but the
// answer was unusable; anything else is a transport failure.
func (a *Advisor) Analyze(ctx context.Context, in models.FieldInput, lang i18n.Language) (*models.Analysis, error) {
	if err := in.Check(); err != nil {
		return nil, err
	}
	in = in.Normalize()

	gen, err := a.generator.Generate(ctx, BuildPrompt(in, lang))
	if err != nil {
		a.logger.Error("model request failed",
			zap.String("location", in.Location),
			zap.String("crop", in.Crop),
			zap.Error(err),
		)
		return nil, fmt.Errorf("analyze field: %w", err)
	}

	result, err := Extract(gen.Text)
	if err != nil {
		a.logger.Warn("could not extract analysis from model output",
			zap.String("location", in.Location),
			zap.String("crop", in.Crop),
			zap.String("raw", gen.Text),
			zap.Error(err),
		)
		return nil, fmt.Errorf("analyze field: %w", err)
	}

	a.logger.Info("analysis completed",
		zap.String("location", in.Location),
		zap.String("crop", in.Crop),
		zap.String("language", string(lang)),
		zap.Int("sources", len(gen.Sources)),
	)
	return &models.Analysis{Result: result, Sources: gen.Sources}, nil
}
