package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Language is a supported display language code.
type Language string

const (
	Uzbek   Language = "uz"
	Russian Language = "ru"
	English Language = "en"
)

// DefaultLanguage is used when a session has not picked one yet.
const DefaultLanguage = Uzbek

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Languages returns the supported languages in switcher order.
func Languages() []Language {
	return []Language{Uzbek, Russian, English}
}

// Parse validates a language code such as "en" or "RU".
func Parse(code string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(code)))
	switch lang {
	case Uzbek, Russian, English:
		return lang, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
}

// Name is the English name of the language. The model is told to answer in it.
func (l Language) Name() string {
	switch l {
	case Uzbek:
		return "Uzbek"
	case Russian:
		return "Russian"
	case English:
		return "English"
	default:
		return ""
	}
}

// Code is the upper-case label shown in the language switcher.
func (l Language) Code() string {
	return strings.ToUpper(string(l))
}

// Translation holds every display string for one language.
type Translation struct {
	Title               string `yaml:"title"`
	Subtitle            string `yaml:"subtitle"`
	StartBtn            string `yaml:"start_btn"`
	LocationLabel       string `yaml:"location_label"`
	LocationPlaceholder string `yaml:"location_placeholder"`
	CropLabel           string `yaml:"crop_label"`
	CropPlaceholder     string `yaml:"crop_placeholder"`
	DetailsLabel        string `yaml:"details_label"`
	DetailsPlaceholder  string `yaml:"details_placeholder"`
	SizeLabel           string `yaml:"size_label"`
	AnalyzeBtn          string `yaml:"analyze_btn"`
	Analyzing           string `yaml:"analyzing"`
	DashboardTitle      string `yaml:"dashboard_title"`
	Weather             string `yaml:"weather"`
	NDVI                string `yaml:"ndvi"`
	NDVIScale           string `yaml:"ndvi_scale"`
	NDVITrend           string `yaml:"ndvi_trend"`
	Moisture            string `yaml:"moisture"`
	SoilHealth          string `yaml:"soil_health"`
	SoilHealthNote      string `yaml:"soil_health_note"`
	Recommendations     string `yaml:"recommendations"`
	Irrigation          string `yaml:"irrigation"`
	Fertilizer          string `yaml:"fertilizer"`
	HistoryChart        string `yaml:"history_chart"`
	ScheduleTitle       string `yaml:"schedule_title"`
	WeeklyPlan          string `yaml:"weekly_plan"`
	MonthlyPlan         string `yaml:"monthly_plan"`
	DetailedPlan        string `yaml:"detailed_plan"`
	MoreActions         string `yaml:"more_actions"`
	Source              string `yaml:"source"`
	ErrorTransport      string `yaml:"error_transport"`
	ErrorExtraction     string `yaml:"error_extraction"`

	Features   FeaturesSection   `yaml:"features"`
	About      AboutSection      `yaml:"about"`
	HowItWorks HowItWorksSection `yaml:"how_it_works"`
	Team       TeamSection       `yaml:"team"`
}

type FeaturesSection struct {
	Title string    `yaml:"title"`
	Items []Feature `yaml:"items"`
}

type Feature struct {
	Icon  string `yaml:"icon"`
	Title string `yaml:"title"`
	Desc  string `yaml:"desc"`
}

type AboutSection struct {
	Title         string `yaml:"title"`
	ProblemTitle  string `yaml:"problem_title"`
	ProblemText   string `yaml:"problem_text"`
	SolutionTitle string `yaml:"solution_title"`
	SolutionText  string `yaml:"solution_text"`
}

type HowItWorksSection struct {
	Title string `yaml:"title"`
	Steps []Step `yaml:"steps"`
}

type Step struct {
	Num   string `yaml:"num"`
	Title string `yaml:"title"`
	Desc  string `yaml:"desc"`
}

type TeamSection struct {
	Title   string   `yaml:"title"`
	Members []Member `yaml:"members"`
}

type Member struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
	Link string `yaml:"link"`
}

// Catalog maps each supported language to its translation table.
type Catalog struct {
	tables map[Language]*Translation
}

// Load reads <code>.yaml for every supported language from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{tables: make(map[Language]*Translation)}
	for _, lang := range Languages() {
		name := "locales/" + string(lang) + ".yaml"
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", lang, err)
		}
		var t Translation
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", lang, err)
		}
		c.tables[lang] = &t
	}
	return c, nil
}

// Lookup returns the table for lang, or the default language's table.
func (c *Catalog) Lookup(lang Language) *Translation {
	if t, ok := c.tables[lang]; ok {
		return t
	}
	return c.tables[DefaultLanguage]
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog built from the embedded locale files.
// The files ship with the binary, so a parse failure is a programming error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(localeFS)
		if err != nil {
			panic(fmt.Sprintf("failed to load embedded locales: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
