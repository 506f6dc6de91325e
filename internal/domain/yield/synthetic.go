package yield

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// GenerateSamples returns n reproducible samples whose yield grows with every
// feature plus N(0, 0.5) noise. Intended for fixtures and demos only.
func GenerateSamples(n int, seed uint64) []LabeledSample {
	if n <= 0 {
		return nil
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	ndvi := distuv.Uniform{Min: 0.4, Max: 0.95, Src: src}
	gddTotal := distuv.Uniform{Min: 1200, Max: 2200, Src: src}
	precip := distuv.Uniform{Min: 300, Max: 700, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 0.5, Src: src}

	out := make([]LabeledSample, 0, n)
	for i := 0; i < n; i++ {
		f := FeatureVector{
			NDVIMean:    roundTo(ndvi.Rand(), 3),
			GDDTotal:    roundTo(gddTotal.Rand(), 1),
			PrecipTotal: roundTo(precip.Rand(), 1),
		}
		y := 5 + f.NDVIMean*8 +
			(f.GDDTotal-1200)/1000*2 +
			(f.PrecipTotal-400)/300*1.5 +
			noise.Rand()
		out = append(out, LabeledSample{FeatureVector: f, Yield: roundTo(math.Max(0, y), 2)})
	}
	return out
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
