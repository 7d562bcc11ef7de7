package rules

import (
	"encoding/json"
	"fmt"
	"os"
)

// The rules file predates interval lists: old entries carry single
// wave_min/wave_max and period_min/period_max pairs. Load folds those into
// one-element interval lists so the matcher only ever sees lists.

type rulesFile struct {
	Rules []ruleJSON `json:"rules"`
}

type rangeJSON struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type ruleJSON struct {
	ChatID  int64  `json:"chat_id"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`

	Spot struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Timezone  string  `json:"timezone"`
	} `json:"spot"`

	WaveRanges   []rangeJSON `json:"wave_ranges"`
	PeriodRanges []rangeJSON `json:"period_ranges"`
	Energy       rangeJSON   `json:"energy"`
	WindRanges   []rangeJSON `json:"wind_ranges"`

	// Legacy single-pair fields.
	WaveMin   *float64 `json:"wave_min"`
	WaveMax   *float64 `json:"wave_max"`
	PeriodMin *float64 `json:"period_min"`
	PeriodMax *float64 `json:"period_max"`

	TidePort            string `json:"tide_port"`
	TidePreference      string `json:"tide_preference"`
	MinConsecutiveHours int    `json:"min_consecutive_hours"`
}

// Load reads and validates the rules file.
func Load(path string) ([]AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file rulesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	out := make([]AlertRule, 0, len(file.Rules))
	for i, rj := range file.Rules {
		rule, err := rj.toRule()
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

func (rj ruleJSON) toRule() (AlertRule, error) {
	if rj.ID == "" {
		return AlertRule{}, fmt.Errorf("rule missing id")
	}
	if rj.Spot.ID == "" {
		return AlertRule{}, fmt.Errorf("rule %s: missing spot id", rj.ID)
	}

	rule := AlertRule{
		ChatID:  rj.ChatID,
		ID:      rj.ID,
		Name:    rj.Name,
		Enabled: rj.Enabled == nil || *rj.Enabled,
		Spot: Spot{
			ID:        rj.Spot.ID,
			Name:      rj.Spot.Name,
			Latitude:  rj.Spot.Latitude,
			Longitude: rj.Spot.Longitude,
			Timezone:  rj.Spot.Timezone,
		},
		Energy:              Range{Min: rj.Energy.Min, Max: rj.Energy.Max},
		TidePort:            rj.TidePort,
		TidePreference:      TidePreference(rj.TidePreference),
		MinConsecutiveHours: rj.MinConsecutiveHours,
	}
	if rule.TidePreference == "" {
		rule.TidePreference = TideAny
	}

	rule.WaveRanges = foldLegacy(rj.WaveRanges, rj.WaveMin, rj.WaveMax)
	rule.PeriodRanges = foldLegacy(rj.PeriodRanges, rj.PeriodMin, rj.PeriodMax)
	for _, rg := range rj.WindRanges {
		rule.WindRanges = append(rule.WindRanges, WindRange{Min: rg.Min, Max: rg.Max})
	}
	return rule, nil
}

// foldLegacy prefers interval lists; a legacy pair only applies when the
// list is absent.
func foldLegacy(ranges []rangeJSON, legacyMin, legacyMax *float64) []Range {
	if len(ranges) > 0 {
		out := make([]Range, 0, len(ranges))
		for _, rg := range ranges {
			out = append(out, Range{Min: rg.Min, Max: rg.Max})
		}
		return out
	}
	if legacyMin != nil && legacyMax != nil {
		return []Range{{Min: *legacyMin, Max: *legacyMax}}
	}
	return nil
}
