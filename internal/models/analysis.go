package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Category is the kind of work planned for one day of the weekly schedule.
type Category string

const (
	CategoryWater      Category = "water"
	CategoryFertilizer Category = "fertilizer"
	CategoryCheck      Category = "check"
)

const (
	WeeklyScheduleDays   = 7
	MonthlyScheduleWeeks = 4
)

// AnalysisResult is the structured answer the model is asked to produce:
//
//	{
//	  "location": "string", "crop": "string",
//	  "weather": {"temp": 0, "humidity": 0, "condition": "string", "wind": 0, "forecast_summary": "string"},
//	  "ndvi": 0.0-1.0, "soil_moisture": 0-100,
//	  "historical_ndvi": [{"day": "Mon", "value": 0.5}],
//	  "recommendations": ["string"],
//	  "irrigation_plan": "string", "fertilizer_plan": "string",
//	  "soil_health_score": 0-100,
//	  "weekly_schedule": [{"day": "string", "activity": "string", "type": "water | fertilizer | check"}],
//	  "monthly_schedule": [{"week": "string", "focus": "string", "actions": ["string"], "detailed_instructions": ["string"]}]
//	}
type AnalysisResult struct {
	Location        string        `json:"location" validate:"required"`
	Crop            string        `json:"crop" validate:"required"`
	Weather         Weather       `json:"weather"`
	NDVI            float64       `json:"ndvi" validate:"gte=0,lte=1"`
	SoilMoisture    float64       `json:"soil_moisture" validate:"gte=0,lte=100"`
	HistoricalNDVI  []NDVIPoint   `json:"historical_ndvi" validate:"dive"`
	Recommendations []string      `json:"recommendations"`
	IrrigationPlan  string        `json:"irrigation_plan"`
	FertilizerPlan  string        `json:"fertilizer_plan"`
	SoilHealthScore float64       `json:"soil_health_score" validate:"gte=0,lte=100"`
	WeeklySchedule  []WeeklyEntry `json:"weekly_schedule" validate:"len=7,dive"`
	MonthlySchedule []MonthlyWeek `json:"monthly_schedule" validate:"len=4,dive"`
}

type Weather struct {
	Temp            float64 `json:"temp"`
	Humidity        float64 `json:"humidity" validate:"gte=0,lte=100"`
	Condition       string  `json:"condition"`
	Wind            float64 `json:"wind" validate:"gte=0"`
	ForecastSummary string  `json:"forecast_summary"`
}

// NDVIPoint is one sample of the vegetation index history.
type NDVIPoint struct {
	Day   string  `json:"day" validate:"required"`
	Value float64 `json:"value"`
}

type WeeklyEntry struct {
	Day      string   `json:"day" validate:"required"`
	Activity string   `json:"activity"`
	Type     Category `json:"type" validate:"oneof=water fertilizer check"`
}

type MonthlyWeek struct {
	Week                 string   `json:"week" validate:"required"`
	Focus                string   `json:"focus"`
	Actions              []string `json:"actions"`
	DetailedInstructions []string `json:"detailed_instructions,omitempty"`
}

// GroundingSource is a web citation the model used while searching.
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Host returns the hostname of the source, or the title when the URI does not parse.
func (g GroundingSource) Host() string {
	u, err := url.Parse(g.URI)
	if err != nil || u.Hostname() == "" {
		return g.Title
	}
	return u.Hostname()
}

// Analysis pairs a result with the sources that grounded it.
type Analysis struct {
	Result  *AnalysisResult   `json:"result"`
	Sources []GroundingSource `json:"sources,omitempty"`
}

var validate = validator.New()

// Validate checks the ranges and counts the dashboard relies on.
func (a *AnalysisResult) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResult, formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return strings.Join(msgs, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "len":
		return fmt.Sprintf("%s must have exactly %s entries", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range (%v)", field, e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// NDVI bands. A value exactly on a boundary belongs to the lower band.
const (
	NDVILow      = "Low"
	NDVIModerate = "Moderate"
	NDVIHealthy  = "Healthy"
)

// NDVIBand labels a vegetation index value.
func NDVIBand(v float64) string {
	switch {
	case v > 0.6:
		return NDVIHealthy
	case v > 0.3:
		return NDVIModerate
	default:
		return NDVILow
	}
}
