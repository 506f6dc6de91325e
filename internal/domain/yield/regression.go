package yield

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	numFeatures = 3

	// MinTrainingSamples is the smallest batch a fit accepts.
	MinTrainingSamples = 5
	// HoldoutMinSamples is the batch size from which a test split is held out.
	// Smaller batches are scored on the training data itself, so their metrics
	// are optimistic.
	HoldoutMinSamples = 10

	// ConfidenceZ widens the RMSE into the reported 95% interval. This is a normal
	// approximation around the residual error, not a prediction interval.
	ConfidenceZ = 1.96

	rankTolerance = 1e-10
)

var featureNames = [numFeatures]string{"ndvi_mean", "gdd_total", "precip_total"}

// splitSamples holds out ceil(n/5) samples with a seeded shuffle once n reaches
// HoldoutMinSamples. Below that train and test are the same slice.
func splitSamples(samples []LabeledSample, seed uint64) (train, test []LabeledSample) {
	n := len(samples)
	if n < HoldoutMinSamples {
		return samples, samples
	}
	nTest := (n + 4) / 5
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	test = make([]LabeledSample, 0, nTest)
	train = make([]LabeledSample, 0, n-nTest)
	for i, idx := range perm {
		if i < nTest {
			test = append(test, samples[idx])
			continue
		}
		train = append(train, samples[idx])
	}
	return train, test
}

// fitStandardization uses population statistics; constant features get scale 1
// so they standardize to zero instead of dividing by zero.
func fitStandardization(samples []LabeledSample) Standardization {
	var std Standardization
	column := make([]float64, len(samples))
	for j := 0; j < numFeatures; j++ {
		for i, s := range samples {
			column[i] = s.values()[j]
		}
		mean, sd := stat.PopMeanStdDev(column, nil)
		std.Mean[j] = mean
		std.Scale[j] = sd
		if sd == 0 || math.IsNaN(sd) {
			std.Scale[j] = 1
		}
	}
	return std
}

func (s Standardization) apply(f FeatureVector) [numFeatures]float64 {
	raw := f.values()
	var out [numFeatures]float64
	for j := range raw {
		out[j] = (raw[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// solveOLS fits y = b0 + Σ bj·zj as a minimum-norm least squares problem, so
// collinear or constant columns get zero weight instead of failing the fit.
func solveOLS(rows [][numFeatures]float64, y []float64) (Coefficients, error) {
	n := len(rows)
	if n == 0 || n != len(y) {
		return Coefficients{}, errors.New("design matrix and target length mismatch")
	}
	design := mat.NewDense(n, numFeatures+1, nil)
	for i, row := range rows {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	target := mat.NewVecDense(n, append([]float64(nil), y...))

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return Coefficients{}, errors.New("svd factorization failed")
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return Coefficients{}, errors.New("design matrix has rank zero")
	}
	var beta mat.VecDense
	svd.SolveVecTo(&beta, target, rank)

	coef := Coefficients{
		Intercept: beta.AtVec(0),
		NDVI:      beta.AtVec(1),
		GDD:       beta.AtVec(2),
		Precip:    beta.AtVec(3),
	}
	for _, v := range []float64{coef.Intercept, coef.NDVI, coef.GDD, coef.Precip} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Coefficients{}, errors.New("regression produced non-finite coefficients")
		}
	}
	return coef, nil
}

func predictStandardized(coef Coefficients, z [numFeatures]float64) float64 {
	out := coef.Intercept
	for j, w := range coef.weights() {
		out += w * z[j]
	}
	return out
}

// scoreModel computes R² and RMSE in yield units on the given split.
func scoreModel(coef Coefficients, std Standardization, samples []LabeledSample) (r2, rmse float64) {
	predicted := make([]float64, len(samples))
	actual := make([]float64, len(samples))
	for i, s := range samples {
		predicted[i] = predictStandardized(coef, std.apply(s.FeatureVector))
		actual[i] = s.Yield
	}
	rmse = floats.Distance(predicted, actual, 2) / math.Sqrt(float64(len(samples)))

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		if rmse == 0 {
			return 1, rmse
		}
		return 0, rmse
	}
	return stat.RSquaredFrom(predicted, actual, nil), rmse
}
