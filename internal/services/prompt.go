package services

import (
	"fmt"
	"strings"

	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/models"
)

// BuildPrompt creates the agronomist instruction for one field. The model is
// asked to search the weather first and answer with plain JSON; response MIME
// types cannot be combined with the search tool.
func BuildPrompt(in models.FieldInput, lang i18n.Language) string {
	in = in.Normalize()
	language := lang.Name()

	var b strings.Builder
	b.WriteString("You are an expert agronomist AI for the SmartSoil application.\n\n")
	fmt.Fprintf(&b, "TASK 1: Search for the CURRENT weather forecast for the next 7 days in %q.\n\n", in.Location)
	fmt.Fprintf(&b, "TASK 2: Based on the REAL weather data found and the crop type %q, generate a detailed agricultural analysis JSON.\n\n", in.Crop)
	if in.Size != "" {
		fmt.Fprintf(&b, "Field size: %q.\n", in.Size)
	}
	fmt.Fprintf(&b, "Additional context provided by user: %q. Use this information to tailor recommendations if relevant.\n\n", in.Details)
	b.WriteString("Output strictly valid JSON string only. Do not wrap in markdown code blocks.\n\n")
	b.WriteString("JSON Schema:\n")
	fmt.Fprintf(&b, promptSchema, in.Location, in.Crop)
	fmt.Fprintf(&b, "\nOutput Language: %s.\n", language)
	fmt.Fprintf(&b, "All text values inside the JSON (including summaries, plans, recommendations, descriptions, and schedule details) MUST be in %s.\n\n", language)
	fmt.Fprintf(&b, "Ensure \"weekly_schedule\" has %d days.\n", models.WeeklyScheduleDays)
	fmt.Fprintf(&b, "Ensure \"monthly_schedule\" has EXACTLY %d distinct weeks.\n", models.MonthlyScheduleWeeks)
	b.WriteString("IMPORTANT: In \"monthly_schedule\", \"detailed_instructions\" must contain at least 3-4 distinct, actionable sentences explaining exactly WHAT to do and WHY for that week.\n")
	return b.String()
}

const promptSchema = `{
  "location": %q,
  "crop": %q,
  "weather": {
    "temp": number (current temp),
    "humidity": number,
    "condition": string (e.g. "Sunny", "Cloudy"),
    "wind": number,
    "forecast_summary": string (summary of the search result)
  },
  "ndvi": number (float 0.1-0.9),
  "soil_moisture": number (int 0-100),
  "historical_ndvi": [{ "day": string (e.g. 'Mon'), "value": number }],
  "recommendations": [string, string, string],
  "irrigation_plan": string (detailed text based on real weather),
  "fertilizer_plan": string (detailed text),
  "soil_health_score": number (0-100),
  "weekly_schedule": [
    { "day": string (e.g. "Monday, Oct 24"), "activity": string, "type": "water" | "fertilizer" | "check" }
  ],
  "monthly_schedule": [
    {
      "week": string (e.g. "Week 1: Oct 24-30"),
      "focus": string,
      "actions": [string, string],
      "detailed_instructions": [string, string, string]
    }
  ]
}
`
