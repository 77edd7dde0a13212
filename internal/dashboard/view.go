// Package dashboard turns an analysis result into the view model rendered by
// the dashboard templates. Everything here is a pure function of its inputs.
package dashboard

import (
	"fmt"
	"math"
	"strconv"

	"github.com/smartsoil/smartsoil/internal/chart"
	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/models"
)

// Tab is the active schedule view.
type Tab string

const (
	TabWeekly  Tab = "weekly"
	TabMonthly Tab = "monthly"
)

// ParseTab accepts "weekly" or "monthly".
func ParseTab(s string) (Tab, bool) {
	switch Tab(s) {
	case TabWeekly, TabMonthly:
		return Tab(s), true
	}
	return "", false
}

// MaxCollapsedActions is how many action labels a collapsed week shows.
const MaxCollapsedActions = 2

// ScheduleState is the interactive part of the schedule widget.
type ScheduleState struct {
	Tab      Tab
	Expanded *int
}

// View is the complete dashboard.
type View struct {
	T               *i18n.Translation
	Location        string
	Crop            string
	Weather         WeatherCard
	NDVI            NDVICard
	Moisture        MoistureCard
	HealthScore     string
	Trend           chart.Chart
	Recommendations []string
	IrrigationPlan  string
	FertilizerPlan  string
	Schedule        Schedule
}

type WeatherCard struct {
	Temp            string
	Condition       string
	Humidity        string
	Wind            string
	ForecastSummary string
	Source          *SourceLink
}

// SourceLink is the first grounding citation, shown under the weather card.
type SourceLink struct {
	URI  string
	Host string
}

type NDVICard struct {
	Value string
	Band  string
	Width string
}

type MoistureCard struct {
	Percent   string
	DashArray string
}

type Schedule struct {
	Tab     Tab
	Weekly  []WeeklyRow
	Monthly []MonthlyRow
}

type WeeklyRow struct {
	Day      string
	Activity string
	Category string
	Style    CategoryStyle
}

// CategoryStyle is the icon and color family of a weekly activity.
type CategoryStyle struct {
	Icon  string
	Color string
}

type MonthlyRow struct {
	Index    int
	Week     string
	Focus    string
	Visible  []string
	Overflow int
	Expanded bool
	Details  []string
	// FromActions is set when Details fell back to the action labels.
	FromActions bool
}

var categoryStyles = map[models.Category]CategoryStyle{
	models.CategoryWater:      {Icon: "fa-droplet", Color: "blue"},
	models.CategoryFertilizer: {Icon: "fa-flask", Color: "orange"},
	models.CategoryCheck:      {Icon: "fa-eye", Color: "leaf"},
}

var defaultCategoryStyle = CategoryStyle{Icon: "fa-circle-check", Color: "gray"}

// StyleFor returns the icon/color pair of a weekly schedule category.
func StyleFor(c models.Category) CategoryStyle {
	if s, ok := categoryStyles[c]; ok {
		return s
	}
	return defaultCategoryStyle
}

// Build assembles the dashboard view. It returns nil when there is no result.
func Build(result *models.AnalysisResult, sources []models.GroundingSource, t *i18n.Translation, sched ScheduleState) *View {
	if result == nil {
		return nil
	}

	v := &View{
		T:               t,
		Location:        result.Location,
		Crop:            result.Crop,
		Recommendations: result.Recommendations,
		IrrigationPlan:  result.IrrigationPlan,
		FertilizerPlan:  result.FertilizerPlan,
		HealthScore:     formatRounded(result.SoilHealthScore),
	}

	v.Weather = WeatherCard{
		Temp:            formatNumber(result.Weather.Temp),
		Condition:       result.Weather.Condition,
		Humidity:        formatNumber(result.Weather.Humidity),
		Wind:            formatNumber(result.Weather.Wind),
		ForecastSummary: result.Weather.ForecastSummary,
		Source:          firstSource(sources),
	}

	v.NDVI = NDVICard{
		Value: strconv.FormatFloat(result.NDVI, 'f', 2, 64),
		Band:  models.NDVIBand(result.NDVI),
		Width: Percent(result.NDVI),
	}

	moisture := clamp(result.SoilMoisture, 0, 100)
	v.Moisture = MoistureCard{
		Percent:   formatRounded(moisture),
		DashArray: fmt.Sprintf("%s, 100", formatNumber(moisture)),
	}

	samples := make([]chart.Sample, len(result.HistoricalNDVI))
	for i, p := range result.HistoricalNDVI {
		samples[i] = chart.Sample{Label: p.Day, Value: p.Value}
	}
	v.Trend = chart.Plot(samples, chart.DefaultDimensions)

	v.Schedule = buildSchedule(result, sched)
	return v
}

func buildSchedule(result *models.AnalysisResult, sched ScheduleState) Schedule {
	s := Schedule{Tab: sched.Tab}
	if s.Tab == "" {
		s.Tab = TabWeekly
	}

	s.Weekly = make([]WeeklyRow, len(result.WeeklySchedule))
	for i, e := range result.WeeklySchedule {
		s.Weekly[i] = WeeklyRow{
			Day:      e.Day,
			Activity: e.Activity,
			Category: string(e.Type),
			Style:    StyleFor(e.Type),
		}
	}

	s.Monthly = make([]MonthlyRow, len(result.MonthlySchedule))
	for i, w := range result.MonthlySchedule {
		row := MonthlyRow{
			Index:    i,
			Week:     w.Week,
			Focus:    w.Focus,
			Expanded: sched.Expanded != nil && *sched.Expanded == i,
		}
		row.Visible = w.Actions
		if len(w.Actions) > MaxCollapsedActions {
			row.Visible = w.Actions[:MaxCollapsedActions]
			if !row.Expanded {
				row.Overflow = len(w.Actions) - MaxCollapsedActions
			}
		}
		if row.Expanded {
			row.Details = w.DetailedInstructions
			if len(row.Details) == 0 {
				row.Details = w.Actions
				row.FromActions = true
			}
		}
		s.Monthly[i] = row
	}
	return s
}

// Percent renders a [0,1] fraction as a CSS percentage, e.g. 0.75 -> "75%".
func Percent(v float64) string {
	v = clamp(v, 0, 1)
	return formatNumber(math.Round(v*1000)/10) + "%"
}

func firstSource(sources []models.GroundingSource) *SourceLink {
	for _, s := range sources {
		if s.URI == "" {
			continue
		}
		return &SourceLink{URI: s.URI, Host: s.Host()}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRounded(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}
