package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/smartsoil/smartsoil/internal/models"
)

var (
	ErrMissingAPIKey    = errors.New("gemini API key not configured")
	ErrModelUnavailable = errors.New("model temporarily unavailable")
)

// Generation is the raw model answer plus its web citations.
type Generation struct {
	Text    string
	Sources []models.GroundingSource
}

// Generator sends one prompt to a generative model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
}

// GeminiConfig configures GeminiGenerator.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// GeminiGenerator calls Gemini with the Google Search tool enabled.
type GeminiGenerator struct {
	cfg     GeminiConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiGenerator(cfg GeminiConfig, logger *zap.Logger) *GeminiGenerator {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	g := &GeminiGenerator{cfg: cfg, logger: logger}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gemini",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

// Generate runs one GenerateContent call. Missing credentials, transport
// errors and an open breaker are all reported as errors; an empty answer is
// not an error here.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		return nil, fmt.Errorf("generate content: %w", err)
	}

	resp := out.(*genai.GenerateContentResponse)
	return &Generation{
		Text:    resp.Text(),
		Sources: groundingSources(resp),
	}, nil
}

// getClient creates the SDK client on first use so a bad key fails the
// request rather than server startup.
func (g *GeminiGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	if g.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cc := &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

func groundingSources(resp *genai.GenerateContentResponse) []models.GroundingSource {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var sources []models.GroundingSource
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, models.GroundingSource{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}
