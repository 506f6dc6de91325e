package yield

// Config holds runtime knobs for the yield domain.
type Config struct {
	DefaultCrop       string
	SplitSeed         uint64
	TrendThresholdPct float64
	WarningDropPct    float64
	CriticalDropPct   float64
}

const (
	defaultSplitSeed         = 42
	defaultTrendThresholdPct = 5
	defaultWarningDropPct    = 10
	defaultCriticalDropPct   = 20
)

func (c Config) withDefaults() Config {
	if c.DefaultCrop == "" {
		c.DefaultCrop = DefaultCrop
	}
	if c.SplitSeed == 0 {
		c.SplitSeed = defaultSplitSeed
	}
	if c.TrendThresholdPct <= 0 {
		c.TrendThresholdPct = defaultTrendThresholdPct
	}
	if c.WarningDropPct <= 0 {
		c.WarningDropPct = defaultWarningDropPct
	}
	if c.CriticalDropPct <= 0 {
		c.CriticalDropPct = defaultCriticalDropPct
	}
	return c
}

func (c Config) alertThresholds() AlertThresholds {
	return AlertThresholds{WarningDropPct: c.WarningDropPct, CriticalDropPct: c.CriticalDropPct}
}
