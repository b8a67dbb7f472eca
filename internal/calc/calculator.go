package calc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/uvdose/uvdose/internal/catalog"
	"github.com/uvdose/uvdose/internal/lamps"
	"github.com/uvdose/uvdose/internal/native"
	"github.com/uvdose/uvdose/pkg/types"
)

// Operation names passed to the Recorder.
const (
	OpRED          = "red"
	OpPressureDrop = "pressure_drop"
)

// Defaults applied when a request leaves a scalar out.
const (
	DefaultUVT215 = -1.0
	DefaultD1Log  = 18.0
)

// Recorder observes every outcome the Calculator returns.
type Recorder interface {
	RecordOutcome(op string, o types.Outcome)
}

// Options tunes a Calculator. Every field is used as given; start from
// DefaultOptions to get the package defaults.
type Options struct {
	DefaultDrive      float64
	DefaultEfficiency float64
	DefaultUVT215     float64
	DefaultD1Log      float64
	// NativeValidation additionally consults the engine's own
	// validate_parameters predicate before computing a dose.
	NativeValidation bool
	Recorder         Recorder
}

// DefaultOptions returns the package defaults: full drive and efficiency,
// uvt215 not supplied, D-1Log 18.
func DefaultOptions() Options {
	return Options{
		DefaultDrive:      lamps.DefaultDrive,
		DefaultEfficiency: lamps.DefaultEfficiency,
		DefaultUVT215:     DefaultUVT215,
		DefaultD1Log:      DefaultD1Log,
	}
}

// Calculator is the query surface over a bound Library and its Catalog.
// It is safe for concurrent use.
type Calculator struct {
	lib     *native.Library
	catalog *catalog.Catalog
	builder *lamps.Builder
	opts    Options
}

// New returns a Calculator. lib and cat must already be loaded. A zero
// DefaultDrive or DefaultEfficiency is honored, not replaced.
func New(lib *native.Library, cat *catalog.Catalog, opts Options) *Calculator {
	b := lamps.NewBuilder(lib, cat)
	b.DefaultDrive = opts.DefaultDrive
	b.DefaultEfficiency = opts.DefaultEfficiency
	return &Calculator{lib: lib, catalog: cat, builder: b, opts: opts}
}

// REDRequest is the input of CalculateRED. Nil UVT215 and D1Log take the
// configured defaults.
type REDRequest struct {
	System     string              `json:"system_type"`
	Flow       float64             `json:"flow"`
	UVT        float64             `json:"uvt"`
	UVT215     *float64            `json:"uvt215,omitempty"`
	D1Log      *float64            `json:"d1_log,omitempty"`
	Power      *types.LampSettings `json:"power_settings,omitempty"`
	Efficiency *types.LampSettings `json:"efficiency_settings,omitempty"`
}

func (r REDRequest) echo() types.Parameters {
	uvt := r.UVT
	return types.Parameters{
		SystemType:         r.System,
		Flow:               r.Flow,
		UVT:                &uvt,
		UVT215:             r.UVT215,
		D1Log:              r.D1Log,
		PowerSettings:      r.Power,
		EfficiencySettings: r.Efficiency,
	}
}

// CalculateRED validates req, builds the lamp arrays and runs the system's
// RED function. It never panics and never returns an error: every failure
// is an error Outcome.
func (c *Calculator) CalculateRED(req REDRequest) (out types.Outcome) {
	params := req.echo()
	defer c.record(OpRED, &out)
	defer recoverFault(&out, params, req.System)

	plan, err := c.builder.Build(lamps.Request{
		System:     req.System,
		Flow:       req.Flow,
		UVT:        req.UVT,
		Power:      req.Power,
		Efficiency: req.Efficiency,
	})
	if err != nil {
		return types.Fail(failureFor(req.System, err), params)
	}

	uvt215 := c.opts.DefaultUVT215
	if req.UVT215 != nil {
		uvt215 = *req.UVT215
	}
	d1Log := c.opts.DefaultD1Log
	if req.D1Log != nil {
		d1Log = *req.D1Log
	}

	if c.opts.NativeValidation && !c.lib.ValidateParameters(req.System, req.Flow, req.UVT, uvt215, d1Log) {
		return types.Fail(types.Failure{
			Kind:    types.KindValidation,
			Message: "Parameters rejected by calculation engine",
		}, params)
	}

	red := c.lib.REDFunction(req.System)
	if red == nil {
		return types.Fail(types.Failure{
			Kind:    types.KindSystem,
			Message: "Could not get RED calculation function for system " + req.System,
		}, params)
	}

	dose := red(req.Flow, req.UVT, uvt215, plan.Power, plan.Efficiency, d1Log, plan.LampCount)
	// The engine signals invalid inputs with a non-positive dose.
	if !(dose > 0) || math.IsInf(dose, 0) {
		return types.Fail(types.Failure{
			Kind:    types.KindCalculation,
			Message: "Calculation resulted in invalid RED value",
		}, params)
	}

	var uvt215Echo interface{} = types.NotSupplied
	if uvt215 > 0 {
		uvt215Echo = uvt215
	}
	uvt := req.UVT
	return types.Succeed(lamps.Round1(dose), "", &types.Details{
		SystemType:     req.System,
		NumberOfLamps:  plan.LampCount,
		LampPowerWatts: lamps.Round1(plan.LampPower),
		Parameters: types.InputEcho{
			Flow:   req.Flow,
			UVT:    &uvt,
			UVT215: uvt215Echo,
			D1Log:  &d1Log,
		},
		LampSettings: &types.LampSettingsOut{
			Power:      round1All(plan.Power),
			Efficiency: round1All(plan.Efficiency),
		},
	})
}

// CalculatePressureDrop returns the hydraulic head loss of system at flow,
// rounded to two decimals, in cmH2O.
func (c *Calculator) CalculatePressureDrop(system string, flow float64) (out types.Outcome) {
	params := types.Parameters{SystemType: system, Flow: flow}
	defer c.record(OpPressureDrop, &out)
	defer recoverFault(&out, params, system)

	if !c.lib.Supports(system) {
		return types.Fail(failureFor(system, lamps.ErrUnknownSystem), params)
	}
	if _, ok := c.catalog.RangesFor(system); !ok {
		return types.Fail(failureFor(system, lamps.ErrNoSpecification), params)
	}
	if !(flow > 0) {
		return types.Fail(types.Failure{
			Kind:    types.KindValidation,
			Message: "Flow rate must be greater than zero",
		}, params)
	}

	dp := c.lib.PressureDrop(system, flow)
	if !(dp > 0) || math.IsInf(dp, 0) {
		return types.Fail(types.Failure{
			Kind:    types.KindCalculation,
			Message: "Calculation resulted in invalid pressure drop value",
		}, params)
	}
	return types.Succeed(math.Round(dp*100)/100, types.PressureDropUnit, &types.Details{
		SystemType: system,
		Parameters: types.InputEcho{Flow: flow},
	})
}

// SupportedSystemsGrouped returns the engine's systems by product series.
func (c *Calculator) SupportedSystemsGrouped() map[string][]string {
	return catalog.GroupSystems(c.lib.Systems())
}

// LampCount returns the number of lamps of system.
func (c *Calculator) LampCount(system string) (types.LampInfo, error) {
	if !c.lib.Supports(system) {
		return types.LampInfo{}, fmt.Errorf("%w: %s", lamps.ErrUnknownSystem, system)
	}
	n := c.lib.LampCount(system)
	if n == 0 {
		return types.LampInfo{}, fmt.Errorf("%w: %s", lamps.ErrLampCountUnavailable, system)
	}
	return types.LampInfo{SystemType: system, Lamps: n}, nil
}

// ParameterRanges returns the operating limits of system from the catalog.
func (c *Calculator) ParameterRanges(system string) (types.ParameterRanges, bool) {
	return c.catalog.RangesFor(system)
}

func (c *Calculator) record(op string, out *types.Outcome) {
	if c.opts.Recorder != nil {
		c.opts.Recorder.RecordOutcome(op, *out)
	}
}

// failureFor maps a validation error to the caller-facing failure.
func failureFor(system string, err error) types.Failure {
	var (
		rangeErr *lamps.RangeError
		indexErr *lamps.LampIndexError
	)
	switch {
	case errors.Is(err, lamps.ErrUnknownSystem):
		return types.Failure{Kind: types.KindSystem, Message: fmt.Sprintf("System type '%s' not found", system)}
	case errors.Is(err, lamps.ErrNoSpecification):
		return types.Failure{Kind: types.KindSystem, Message: "Could not get valid parameter ranges for system " + system}
	case errors.Is(err, lamps.ErrLampCountUnavailable):
		return types.Failure{Kind: types.KindSystem, Message: "Could not get lamp count for system " + system}
	case errors.As(err, &rangeErr):
		return types.Failure{Kind: types.KindValidation, Errors: rangeErr.Violations}
	case errors.As(err, &indexErr):
		return types.Failure{Kind: types.KindValidation, Message: indexErr.Error()}
	}
	return types.Failure{Kind: types.KindSystem, Message: "Calculation error: " + err.Error()}
}

func recoverFault(out *types.Outcome, params types.Parameters, system string) {
	r := recover()
	if r == nil {
		return
	}
	slog.Error("calc: fault during calculation", "system", system, "panic", r)
	*out = types.Fail(types.Failure{
		Kind:    types.KindSystem,
		Message: fmt.Sprintf("Calculation error: %v", r),
	}, params)
}

func round1All(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = lamps.Round1(x)
	}
	return out
}
