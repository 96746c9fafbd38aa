package weather

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionSunny  Condition = "sunny"
	ConditionCloudy Condition = "cloudy"
	ConditionRainy  Condition = "rainy"
	ConditionSnowy  Condition = "snowy"
	ConditionClear  Condition = "clear"
	ConditionNight  Condition = "night"
)

// MoonPhase is one of the eight principal lunar phases.
type MoonPhase string

const (
	MoonNew            MoonPhase = "new"
	MoonWaxingCrescent MoonPhase = "waxing_crescent"
	MoonFirstQuarter   MoonPhase = "first_quarter"
	MoonWaxingGibbous  MoonPhase = "waxing_gibbous"
	MoonFull           MoonPhase = "full"
	MoonWaningGibbous  MoonPhase = "waning_gibbous"
	MoonLastQuarter    MoonPhase = "last_quarter"
	MoonWaningCrescent MoonPhase = "waning_crescent"
)

// MoonPhaseIcons maps each phase to its glyph. At night the glyph replaces
// the day icon for otherwise clear or sunny conditions.
var MoonPhaseIcons = map[MoonPhase]string{
	MoonNew:            "🌑",
	MoonWaxingCrescent: "🌒",
	MoonFirstQuarter:   "🌓",
	MoonWaxingGibbous:  "🌔",
	MoonFull:           "🌕",
	MoonWaningGibbous:  "🌖",
	MoonLastQuarter:    "🌗",
	MoonWaningCrescent: "🌘",
}

// Record is the normalized weather view every provider resolves into.
// Immutable once produced. Humidity and WindSpeed are pass-through fields
// and stay empty when the upstream omits them.
type Record struct {
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	TemperatureC string    `json:"temperatureC"`
	Condition    Condition `json:"condition"`
	Icon         string    `json:"icon"`
	Humidity     string    `json:"humidity,omitempty"`
	WindSpeed    string    `json:"windSpeedKmh,omitempty"`
	MoonPhase    MoonPhase `json:"moonPhase,omitempty"`
}
