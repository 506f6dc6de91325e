// Package gdd accumulates growing degree days from caller supplied daily
// temperatures and maps the running total onto phenological stages.
package gdd

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

// UpperCutoff caps the daily maximum temperature (°C) before averaging.
const UpperCutoff = 30.0

// stageAlertDays is how many forecast days ahead a stage change is announced.
const stageAlertDays = 3

// Stage is a phenological milestone reached at a cumulative GDD.
type Stage struct {
	Name        string  `json:"name"`
	GDD         float64 `json:"gdd"`
	Description string  `json:"description"`
}

// DailyTemperature is one day of observed or forecast extremes.
type DailyTemperature struct {
	Date string  `json:"date"`
	TMax float64 `json:"tmax"`
	TMin float64 `json:"tmin"`
}

// DailyGDD is the contribution of a single day and the running total after it.
type DailyGDD struct {
	Date       string  `json:"date"`
	TMax       float64 `json:"tmax"`
	TMin       float64 `json:"tmin"`
	GDD        float64 `json:"gdd"`
	Cumulative float64 `json:"cumulative"`
}

// StageProgress is a stage together with the GDD still missing to reach it.
type StageProgress struct {
	Stage
	Remaining float64 `json:"remaining"`
}

// Alert announces an upcoming stage inside the forecast window.
type Alert struct {
	Kind      string  `json:"kind"`
	Level     string  `json:"level"`
	Stage     string  `json:"stage"`
	Message   string  `json:"message"`
	DaysLeft  int     `json:"days_left"`
	Remaining float64 `json:"remaining"`
}

// Accumulation summarizes degree days since planting.
type Accumulation struct {
	Crop            string         `json:"crop"`
	BaseTemperature float64        `json:"base_temperature"`
	Days            int            `json:"days"`
	Total           float64        `json:"total"`
	Daily           []DailyGDD     `json:"daily"`
	Forecast        []DailyGDD     `json:"forecast"`
	CurrentStage    *Stage         `json:"current_stage"`
	NextStage       *StageProgress `json:"next_stage"`
	Alerts          []Alert        `json:"alerts"`
	DaysToHarvest   *int           `json:"days_to_harvest"`
}

var baseTemperatures = map[string]float64{
	"milho":   10,
	"soja":    7,
	"trigo":   5,
	"algodao": 12,
	"cana":    18,
	"arroz":   10,
	"cafe":    8,
	"laranja": 12,
}

var stages = map[string][]Stage{
	"milho": {
		{Name: "Emergence", GDD: 100, Description: "seedlings emerging"},
		{Name: "V3", GDD: 200, Description: "early vegetative"},
		{Name: "V6", GDD: 350, Description: "vegetative growth"},
		{Name: "R1 flowering", GDD: 800, Description: "flowering, critical for irrigation"},
		{Name: "R3 grain fill", GDD: 1100, Description: "grain filling"},
		{Name: "R6 maturity", GDD: 1400, Description: "physiological maturity, ready to harvest"},
	},
	"soja": {
		{Name: "VE emergence", GDD: 70, Description: "seedlings emerging"},
		{Name: "V3", GDD: 150, Description: "vegetative"},
		{Name: "V6", GDD: 300, Description: "vegetative growth"},
		{Name: "R1 flowering", GDD: 600, Description: "first open flower"},
		{Name: "R3 pod", GDD: 900, Description: "pods with visible seeds"},
		{Name: "R7 maturity", GDD: 1200, Description: "yellow seeds"},
	},
	"trigo": {
		{Name: "Emergence", GDD: 80, Description: "seedlings emerging"},
		{Name: "Tillering", GDD: 250, Description: "tillering starts"},
		{Name: "Booting", GDD: 400, Description: "stem elongation"},
		{Name: "Flowering", GDD: 550, Description: "flowering, frost sensitive"},
		{Name: "Grain fill", GDD: 800, Description: "grain formation"},
		{Name: "Maturity", GDD: 1100, Description: "ready to harvest"},
	},
	"algodao": {
		{Name: "Emergence", GDD: 50, Description: "seedlings emerging"},
		{Name: "White flower", GDD: 400, Description: "first open flower"},
		{Name: "Colored flower", GDD: 600, Description: "active flowering"},
		{Name: "Open boll", GDD: 1100, Description: "bolls opening"},
		{Name: "Harvest", GDD: 1400, Description: "ready to harvest"},
	},
	"cana": {
		{Name: "Emergence", GDD: 150, Description: "sprouting"},
		{Name: "Tillers visible", GDD: 500, Description: "tiller formation"},
		{Name: "Grand growth", GDD: 1000, Description: "rapid growth"},
		{Name: "Lodging", GDD: 1500, Description: "lodging starts"},
		{Name: "Maturity", GDD: 2000, Description: "sugar accumulated"},
	},
	"arroz": {
		{Name: "Emergence", GDD: 60, Description: "seedlings emerging"},
		{Name: "Tillering", GDD: 200, Description: "tillering starts"},
		{Name: "Flowering", GDD: 450, Description: "flowering"},
		{Name: "Milk", GDD: 700, Description: "milky grain"},
		{Name: "Maturity", GDD: 1000, Description: "ready to harvest"},
	},
	"cafe": {
		{Name: "Floral budding", GDD: 100, Description: "floral buds breaking"},
		{Name: "Main flowering", GDD: 400, Description: "intense flowering"},
		{Name: "Green fruit", GDD: 800, Description: "fruit development"},
		{Name: "Ripening", GDD: 1200, Description: "color change"},
		{Name: "Harvest", GDD: 1500, Description: "ripe cherry"},
	},
	"laranja": {
		{Name: "Sprouting", GDD: 150, Description: "new flush"},
		{Name: "Flowering", GDD: 400, Description: "flowering"},
		{Name: "Fruit set", GDD: 600, Description: "physiological drop"},
		{Name: "Fruit growth", GDD: 1000, Description: "fruit sizing"},
		{Name: "Maturity", GDD: 1400, Description: "ripe fruit"},
	},
}

// BaseTemperature returns the developmental threshold of crop.
func BaseTemperature(crop string) (float64, bool) {
	t, ok := baseTemperatures[normalize(crop)]
	return t, ok
}

// Stages returns a copy of the stage table of crop.
func Stages(crop string) []Stage {
	return append([]Stage(nil), stages[normalize(crop)]...)
}

// Crops lists every crop with a base temperature.
func Crops() []string {
	out := make([]string, 0, len(baseTemperatures))
	for crop := range baseTemperatures {
		out = append(out, crop)
	}
	sort.Strings(out)
	return out
}

// Daily computes one day of GDD with the maximum capped at UpperCutoff and the
// minimum floored at tbase, rounded to one decimal.
func Daily(tmax, tmin, tbase float64) float64 {
	hi := math.Min(tmax, UpperCutoff)
	lo := math.Max(tmin, tbase)
	v := math.Max(0, (hi+lo)/2-tbase)
	return round1(v)
}

// Accumulate sums observed days, projects the forecast on top and resolves the
// current and next stage.
func Accumulate(crop string, observed, forecast []DailyTemperature) (Accumulation, error) {
	crop = normalize(crop)
	tbase, ok := baseTemperatures[crop]
	if !ok {
		return Accumulation{}, apperrors.Wrap(apperrors.CodeInvalidInput, "unsupported crop", fmt.Errorf("no base temperature for %q", crop))
	}
	for i, d := range append(append([]DailyTemperature(nil), observed...), forecast...) {
		if math.IsNaN(d.TMax) || math.IsNaN(d.TMin) || math.IsInf(d.TMax, 0) || math.IsInf(d.TMin, 0) {
			return Accumulation{}, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid temperature", fmt.Errorf("day %d has a non-finite temperature", i))
		}
	}

	acc := Accumulation{
		Crop:            crop,
		BaseTemperature: tbase,
		Days:            len(observed),
		Daily:           make([]DailyGDD, 0, len(observed)),
		Forecast:        make([]DailyGDD, 0, len(forecast)),
		Alerts:          []Alert{},
	}
	total := 0.0
	for _, d := range observed {
		g := Daily(d.TMax, d.TMin, tbase)
		total += g
		acc.Daily = append(acc.Daily, DailyGDD{Date: d.Date, TMax: d.TMax, TMin: d.TMin, GDD: g, Cumulative: round1(total)})
	}
	projected := total
	for _, d := range forecast {
		g := Daily(d.TMax, d.TMin, tbase)
		projected += g
		acc.Forecast = append(acc.Forecast, DailyGDD{Date: d.Date, TMax: d.TMax, TMin: d.TMin, GDD: g, Cumulative: round1(projected)})
	}
	acc.Total = round1(total)

	table := stages[crop]
	for i := range table {
		if total < table[i].GDD {
			break
		}
		current := table[i]
		acc.CurrentStage = &current
		acc.NextStage = nil
		if i < len(table)-1 {
			acc.NextStage = &StageProgress{Stage: table[i+1]}
		}
	}
	if acc.CurrentStage == nil && len(table) > 0 {
		acc.NextStage = &StageProgress{Stage: table[0]}
	}
	if acc.NextStage != nil {
		acc.NextStage.Remaining = round1(acc.NextStage.GDD - total)
		for i, day := range acc.Forecast {
			if day.Cumulative < acc.NextStage.GDD {
				continue
			}
			if i < stageAlertDays {
				acc.Alerts = append(acc.Alerts, Alert{
					Kind:      "stage_soon",
					Level:     "info",
					Stage:     acc.NextStage.Name,
					Message:   fmt.Sprintf("%s expected in about %d days", acc.NextStage.Name, i+1),
					DaysLeft:  i + 1,
					Remaining: acc.NextStage.Remaining,
				})
			}
			break
		}
	}

	if len(table) > 0 && len(observed) > 0 && total > 0 {
		remaining := table[len(table)-1].GDD - total
		perDay := total / float64(len(observed))
		days := int(math.Ceil(remaining / perDay))
		if days > 0 {
			acc.DaysToHarvest = &days
		}
	}
	return acc, nil
}

func normalize(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
