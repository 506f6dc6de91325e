package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/agrofocus/yield-service/internal/bootstrap"
	"github.com/agrofocus/yield-service/internal/domain/yield"
	"github.com/agrofocus/yield-service/internal/infra/config"
	"github.com/agrofocus/yield-service/internal/infra/dataset"
	"github.com/agrofocus/yield-service/pkg/logger"
)

// exampleFeatures is the field used by the example command.
var exampleFeatures = yield.FeatureVector{NDVIMean: 0.75, GDDTotal: 1800, PrecipTotal: 450}

// withService loads config, opens the configured model store and runs fn.
func withService(fn func(yield.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewStderr()
	store := bootstrap.NewModelStore(cfg, log)
	defer store.Close()
	return fn(yield.NewService(bootstrap.NewYieldConfig(cfg), store, log))
}

func newTrainCmd() *cobra.Command {
	var crop, file string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit and persist a model from a JSON or XLSX sample file",
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := dataset.LoadSamples(file)
			if err != nil {
				return err
			}
			return withService(func(svc yield.Service) error {
				res, err := svc.Train(cmd.Context(), yield.TrainRequest{Crop: crop, Samples: samples})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&crop, "crop", yield.DefaultCrop, "Crop identifier")
	cmd.Flags().StringVar(&file, "file", "", "Samples file (.json or .xlsx)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPredictCmd() *cobra.Command {
	var crop string
	var features yield.FeatureVector

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Estimate yield with the stored model or the calibration table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc yield.Service) error {
				res, err := svc.Estimate(cmd.Context(), yield.EstimateRequest{Crop: crop, Features: features})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&crop, "crop", yield.DefaultCrop, "Crop identifier")
	cmd.Flags().Float64Var(&features.NDVIMean, "ndvi", 0.5, "Mean NDVI of the season")
	cmd.Flags().Float64Var(&features.GDDTotal, "gdd", 1500, "Accumulated growing degree days")
	cmd.Flags().Float64Var(&features.PrecipTotal, "precip", 400, "Accumulated precipitation (mm)")
	return cmd
}

func newExampleCmd() *cobra.Command {
	var crop string
	var samples int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Generate synthetic samples, train on them and run a sample prediction",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := yield.GenerateSamples(samples, seed)
			return withService(func(svc yield.Service) error {
				res, err := svc.Train(cmd.Context(), yield.TrainRequest{Crop: crop, Samples: data})
				if err != nil {
					return err
				}
				prediction, err := svc.Estimate(cmd.Context(), yield.EstimateRequest{Crop: crop, Features: exampleFeatures})
				if err != nil {
					return err
				}
				preview := data
				if len(preview) > 5 {
					preview = preview[:5]
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"generated":  map[string]any{"samples": preview, "total": len(data)},
					"training":   res,
					"prediction": prediction,
				})
			})
		},
	}
	cmd.Flags().StringVar(&crop, "crop", yield.DefaultCrop, "Crop identifier")
	cmd.Flags().IntVar(&samples, "samples", 50, "Number of synthetic samples")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed for reproducible samples")
	return cmd
}

func newTrendCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Classify a [{year, yield}] history file",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := dataset.LoadHistory(file)
			if err != nil {
				return err
			}
			return withService(func(svc yield.Service) error {
				res, err := svc.Trend(cmd.Context(), yield.TrendRequest{History: history})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "History JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCompareCmd() *cobra.Command {
	var current, baseline float64

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare an estimate with a historical baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc yield.Service) error {
				res, err := svc.Compare(cmd.Context(), yield.CompareRequest{Current: current, Baseline: baseline})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().Float64Var(&current, "current", 0, "Current estimate (t/ha)")
	cmd.Flags().Float64Var(&baseline, "baseline", 0, "Historical mean (t/ha)")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("baseline")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
