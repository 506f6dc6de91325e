package yield

import (
	"fmt"
	"math"
	"regexp"
)

func validateFeatures(prefix string, f FeatureVector) error {
	for j, v := range f.values() {
		field := prefix + featureNames[j]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidInput(field, "must be a finite number")
		}
	}
	// NDVI is deliberately left unbounded: values outside [0,1] surface as a
	// calibration miss rather than an input error.
	if f.GDDTotal < 0 {
		return invalidInput(prefix+"gdd_total", "cannot be negative")
	}
	if f.PrecipTotal < 0 {
		return invalidInput(prefix+"precip_total", "cannot be negative")
	}
	return nil
}

func validateSamples(samples []LabeledSample) error {
	for i, s := range samples {
		prefix := fmt.Sprintf("samples[%d].", i)
		if err := validateFeatures(prefix, s.FeatureVector); err != nil {
			return err
		}
		if math.IsNaN(s.Yield) || math.IsInf(s.Yield, 0) {
			return invalidInput(prefix+"produtividade", "must be a finite number")
		}
		if s.Yield < 0 {
			return invalidInput(prefix+"produtividade", "cannot be negative")
		}
	}
	return nil
}

const maxCropLength = 64

var cropPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

func validateCrop(crop string) (string, error) {
	normalized := NormalizeCrop(crop)
	if normalized == "" {
		return "", invalidInput("crop", "cannot be empty")
	}
	if len(normalized) > maxCropLength || !cropPattern.MatchString(normalized) {
		return "", invalidInput("crop", "may only contain letters, digits, '-' and '_'")
	}
	return normalized, nil
}
