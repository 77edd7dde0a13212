package services

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsoil/smartsoil/internal/models"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile("testdata/analysis.json")
	require.NoError(t, err)
	return string(raw)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```  ", `{"a":1}`},
		{"surrounding whitespace", "\n\n  {\"a\":1}\t", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestExtract(t *testing.T) {
	result, err := Extract(loadFixture(t))
	require.NoError(t, err)
	assert.Equal(t, "Tashkent", result.Location)
	assert.Equal(t, 0.75, result.NDVI)
	assert.Equal(t, 45.5, result.SoilMoisture)
	assert.Len(t, result.WeeklySchedule, models.WeeklyScheduleDays)
	assert.Len(t, result.MonthlySchedule, models.MonthlyScheduleWeeks)
}

func TestExtractFencedOutput(t *testing.T) {
	result, err := Extract("```json\n" + loadFixture(t) + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Cotton", result.Crop)
}

func TestExtractFailures(t *testing.T) {
	fixture := loadFixture(t)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(fixture), &doc))
	doc["monthly_schedule"] = doc["monthly_schedule"].([]any)[:3]
	threeWeeks, err := json.Marshal(doc)
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", models.ErrEmptyOutput},
		{"only fences", "```json\n```", models.ErrEmptyOutput},
		{"prose", "I could not find the weather for that place.", models.ErrMalformedOutput},
		{"truncated", fixture[:len(fixture)/2], models.ErrMalformedOutput},
		{"wrong type", strings.Replace(fixture, `"ndvi": 0.75`, `"ndvi": "high"`, 1), models.ErrMalformedOutput},
		{"out of range", strings.Replace(fixture, `"ndvi": 0.75`, `"ndvi": 1.5`, 1), models.ErrInvalidResult},
		{"three weeks", string(threeWeeks), models.ErrInvalidResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Extract(tt.text)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrExtractionFailed)
		})
	}
}
