package weather

// Canned city records used as the terminal fallback when every provider and
// cache layer has failed. Selection is deterministic on the calendar day so
// repeated calls within a day agree.
var cannedRecords = []struct {
	location    string
	description string
	temperature string
	condition   Condition
	icon        string
}{
	{"北京市", "晴天", "22", ConditionSunny, "☀️"},
	{"上海市", "多云", "18", ConditionCloudy, "☁️"},
	{"广州市", "小雨", "25", ConditionRainy, "🌧️"},
	{"成都市", "阴天", "16", ConditionCloudy, "⛅"},
}

// MockRecord builds the terminal-fallback record. It never fails.
func MockRecord(clock Clock) Record {
	base := cannedRecords[clock.time().YearDay()%len(cannedRecords)]
	phase := clock.MoonPhase()

	rec := Record{
		Location:     base.location,
		Description:  base.description,
		TemperatureC: base.temperature,
		Condition:    base.condition,
		Icon:         base.icon,
		MoonPhase:    phase,
	}

	if clock.Night() {
		rec.Description = "夜晚 - " + base.description
		rec.Condition = ConditionNight
		if base.condition == ConditionSunny || base.condition == ConditionClear {
			rec.Icon = MoonPhaseIcons[phase]
		}
	}
	return rec
}
