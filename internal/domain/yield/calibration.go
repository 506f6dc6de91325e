package yield

import (
	"sort"
	"strings"
)

// DefaultCrop is the crop whose table serves crops without one.
const DefaultCrop = "milho"

// Band maps an inclusive NDVI interval to an expected yield range.
type Band struct {
	Min       float64 `json:"ndvi_min"`
	Max       float64 `json:"ndvi_max"`
	YieldLow  float64 `json:"yield_min"`
	YieldHigh float64 `json:"yield_max"`
	Label     string  `json:"label"`
}

func (b Band) contains(ndvi float64) bool {
	return b.Min <= ndvi && ndvi <= b.Max
}

// CalibrationTable is the static NDVI lookup of a single crop. Bands are scanned in
// order and the first containing band wins, so shared edges go to the earlier band.
type CalibrationTable struct {
	Crop  string
	Bands []Band
}

// Calibration holds every crop table plus the default used for unknown crops.
type Calibration struct {
	tables      map[string]CalibrationTable
	defaultCrop string
}

// NewCalibration builds the fallback lookup. An empty or unknown defaultCrop falls
// back to DefaultCrop.
func NewCalibration(defaultCrop string) *Calibration {
	tables := builtinTables()
	crop := NormalizeCrop(defaultCrop)
	if _, ok := tables[crop]; !ok {
		crop = DefaultCrop
	}
	return &Calibration{tables: tables, defaultCrop: crop}
}

// DefaultCrop returns the crop whose table stands in for unknown crops.
func (c *Calibration) DefaultCrop() string {
	return c.defaultCrop
}

// Table returns the table for crop, or the default table when crop has none.
// The boolean reports whether the crop had its own table.
func (c *Calibration) Table(crop string) (CalibrationTable, bool) {
	if table, ok := c.tables[NormalizeCrop(crop)]; ok {
		return table, true
	}
	return c.tables[c.defaultCrop], false
}

// Crops lists the crops that have a table, sorted by name.
func (c *Calibration) Crops() []string {
	out := make([]string, 0, len(c.tables))
	for crop := range c.tables {
		out = append(out, crop)
	}
	sort.Strings(out)
	return out
}

// Estimate produces a calibration result for ndvi. Misses yield a method=error result.
func (c *Calibration) Estimate(crop string, features FeatureVector) EstimationResult {
	crop = NormalizeCrop(crop)
	table, own := c.Table(crop)
	result := EstimationResult{
		Crop:     crop,
		Features: features,
	}
	band, ok := table.lookup(features.NDVIMean)
	if !ok {
		miss := &OutOfRangeError{Crop: table.Crop, Value: features.NDVIMean, Bands: table.Bands}
		result.Method = MethodError
		result.Error = &ResultError{
			Code:         CodeOutOfRange,
			Message:      miss.Error(),
			Value:        features.NDVIMean,
			CheckedBands: append([]Band(nil), table.Bands...),
		}
		return result
	}

	estimate := (band.YieldLow + band.YieldHigh) / 2
	result.Method = MethodCalibration
	result.Estimate = &estimate
	result.Interval = &Interval{Low: band.YieldLow, High: band.YieldHigh, Level: LevelEstimated}
	result.Band = &BandMatch{TableCrop: table.Crop, Label: band.Label, Min: band.Min, Max: band.Max}
	result.Note = "calibration table estimate; train a model for better accuracy"
	if !own {
		result.Note = "no calibration table for " + crop + ", used " + table.Crop + "; train a model for better accuracy"
	}
	return result
}

func (t CalibrationTable) lookup(ndvi float64) (Band, bool) {
	for _, band := range t.Bands {
		if band.contains(ndvi) {
			return band, true
		}
	}
	return Band{}, false
}

// NormalizeCrop makes crop identifiers case-insensitive.
func NormalizeCrop(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

func builtinTables() map[string]CalibrationTable {
	bands := func(top, good, mid, low [2]float64) []Band {
		return []Band{
			{Min: 0.8, Max: 1.0, YieldLow: top[0], YieldHigh: top[1], Label: "excellent"},
			{Min: 0.6, Max: 0.8, YieldLow: good[0], YieldHigh: good[1], Label: "good"},
			{Min: 0.4, Max: 0.6, YieldLow: mid[0], YieldHigh: mid[1], Label: "average"},
			{Min: 0.0, Max: 0.4, YieldLow: low[0], YieldHigh: low[1], Label: "low"},
		}
	}
	tables := map[string]CalibrationTable{
		"milho":   {Bands: bands([2]float64{12, 14}, [2]float64{8, 12}, [2]float64{5, 8}, [2]float64{0, 5})},
		"soja":    {Bands: bands([2]float64{4.0, 5.0}, [2]float64{2.5, 4.0}, [2]float64{1.5, 2.5}, [2]float64{0, 1.5})},
		"trigo":   {Bands: bands([2]float64{6, 8}, [2]float64{4, 6}, [2]float64{2, 4}, [2]float64{0, 2})},
		"algodao": {Bands: bands([2]float64{4.5, 6.0}, [2]float64{3.0, 4.5}, [2]float64{1.5, 3.0}, [2]float64{0, 1.5})},
	}
	for crop, table := range tables {
		table.Crop = crop
		tables[crop] = table
	}
	return tables
}
