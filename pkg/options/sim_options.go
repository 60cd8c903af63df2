package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SimOptions)(nil)

// statuses accepted by --sim.initial-status. Kept here as plain strings so
// this package does not depend on the deck model.
var initialStatuses = map[string]struct{}{
	"IDLE":        {},
	"HEALTHY":     {},
	"UNHEALTHY":   {},
	"MAINTENANCE": {},
}

// SimOptions configures the simulated panel.
type SimOptions struct {
	// Pace scales every narrative delay. 1 is the panel's native rhythm, 0 runs instantly.
	Pace float64 `json:"pace" mapstructure:"pace"`

	// JitterPeriod is the interval between vitals perturbations.
	JitterPeriod time.Duration `json:"jitter-period" mapstructure:"jitter-period"`

	// Seed feeds the jitter random source. 0 seeds from the wall clock.
	Seed int64 `json:"seed" mapstructure:"seed"`

	// InitialStatus is the status the panel boots in.
	InitialStatus string `json:"initial-status" mapstructure:"initial-status"`

	// Chaos and DryRun are the boot values of the two panel toggles.
	// They are re-applied when the config file changes.
	Chaos  bool `json:"chaos" mapstructure:"chaos"`
	DryRun bool `json:"dry-run" mapstructure:"dry-run"`

	// EventBuffer is the per-subscriber buffer of the state event feed.
	EventBuffer int `json:"event-buffer" mapstructure:"event-buffer"`
}

// NewSimOptions returns the panel defaults.
func NewSimOptions() *SimOptions {
	return &SimOptions{
		Pace:          1,
		JitterPeriod:  2 * time.Second,
		InitialStatus: "HEALTHY",
		EventBuffer:   256,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *SimOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.Pace < 0 {
		errors = append(errors, fmt.Errorf("sim pace must not be negative, got %v", o.Pace))
	}
	if o.JitterPeriod <= 0 {
		errors = append(errors, fmt.Errorf("sim jitter period must be positive, got %s", o.JitterPeriod))
	}
	if _, ok := initialStatuses[o.InitialStatus]; !ok {
		errors = append(errors, fmt.Errorf("sim initial status %q is not a resting status", o.InitialStatus))
	}
	if o.EventBuffer < 1 {
		errors = append(errors, fmt.Errorf("sim event buffer must be at least 1, got %d", o.EventBuffer))
	}

	return errors
}

// AddFlags adds flags for SimOptions to the specified FlagSet.
func (o *SimOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Float64Var(&o.Pace, "sim.pace", o.Pace, "Multiplier applied to every simulated step delay (0 = instant).")
	fs.DurationVar(&o.JitterPeriod, "sim.jitter-period", o.JitterPeriod, "Interval between cpu/memory jitter ticks.")
	fs.Int64Var(&o.Seed, "sim.seed", o.Seed, "Seed for the jitter random source (0 = time based).")
	fs.StringVar(&o.InitialStatus, "sim.initial-status", o.InitialStatus, "Status the panel boots in (IDLE, HEALTHY, UNHEALTHY, MAINTENANCE).")
	fs.BoolVar(&o.Chaos, "sim.chaos", o.Chaos, "Start with chaos mode enabled.")
	fs.BoolVar(&o.DryRun, "sim.dry-run", o.DryRun, "Start with dry run enabled.")
	fs.IntVar(&o.EventBuffer, "sim.event-buffer", o.EventBuffer, "Buffered events per stream subscriber before events are dropped.")
}
