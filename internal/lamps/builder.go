package lamps

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/uvdose/uvdose/pkg/types"
)

// Default per-lamp settings in percent.
const (
	DefaultDrive      = 100.0
	DefaultEfficiency = 100.0
)

// Engine is the part of the native library the builder needs.
type Engine interface {
	Supports(system string) bool
	LampCount(system string) uint32
	LampPower(system string) float64
}

// RangeSource supplies operating limits per system.
type RangeSource interface {
	RangesFor(system string) (types.ParameterRanges, bool)
}

// Request is one set of inputs to validate.
type Request struct {
	System     string
	Flow       float64
	UVT        float64
	Power      *types.LampSettings
	Efficiency *types.LampSettings
}

// Plan is a validated request ready for the RED function. Power and
// Efficiency have exactly LampCount elements.
type Plan struct {
	System     string
	LampCount  uint32
	LampPower  float64
	Power      []float64
	Efficiency []float64
}

// Builder validates requests and expands lamp settings into arrays.
type Builder struct {
	engine Engine
	ranges RangeSource

	DefaultDrive      float64
	DefaultEfficiency float64
}

// NewBuilder returns a Builder with the package defaults.
func NewBuilder(engine Engine, ranges RangeSource) *Builder {
	return &Builder{
		engine:            engine,
		ranges:            ranges,
		DefaultDrive:      DefaultDrive,
		DefaultEfficiency: DefaultEfficiency,
	}
}

// Build runs the checks in order: system known to the engine, limits in the
// catalog, flow and uvt within limits, lamp count available, lamp overrides
// addressing real lamps. Nothing is returned unless every check passes.
func (b *Builder) Build(req Request) (*Plan, error) {
	if !b.engine.Supports(req.System) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, req.System)
	}
	ranges, ok := b.ranges.RangesFor(req.System)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSpecification, req.System)
	}
	if err := CheckRanges(ranges, req.Flow, req.UVT); err != nil {
		return nil, err
	}

	n := b.engine.LampCount(req.System)
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLampCountUnavailable, req.System)
	}

	// Validate both overrides before building either array.
	powerIdx, err := lampIndexes("power", req.Power, n)
	if err != nil {
		return nil, err
	}
	effIdx, err := lampIndexes("efficiency", req.Efficiency, n)
	if err != nil {
		return nil, err
	}

	return &Plan{
		System:     req.System,
		LampCount:  n,
		LampPower:  b.engine.LampPower(req.System),
		Power:      expand(n, b.DefaultDrive, req.Power, powerIdx),
		Efficiency: expand(n, b.DefaultEfficiency, req.Efficiency, effIdx),
	}, nil
}

// CheckRanges reports every out-of-range field at once. NaN is out of range.
func CheckRanges(r types.ParameterRanges, flow, uvt float64) error {
	v := make(map[string]types.FieldViolation)
	if !r.Flow.Contains(flow) {
		v["flow"] = violation(flow, r.Flow)
	}
	if !r.UVT.Contains(uvt) {
		v["uvt"] = violation(uvt, r.UVT)
	}
	if len(v) > 0 {
		return &RangeError{Violations: v}
	}
	return nil
}

func violation(value float64, r types.Range) types.FieldViolation {
	return types.FieldViolation{Value: Round1(value), Min: r.Min, Max: r.Max, Unit: r.Unit}
}

// Round1 rounds v to one decimal place, halves away from zero.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }

type override struct {
	offset int
	value  float64
}

// lampIndexes converts the 1-based specific_lamps keys of s to 0-based
// offsets, in sorted key order so the first reported error is stable.
func lampIndexes(setting string, s *types.LampSettings, n uint32) ([]override, error) {
	if s.IsZero() || len(s.SpecificLamps) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(s.SpecificLamps))
	for k := range s.SpecificLamps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]override, 0, len(keys))
	for _, k := range keys {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || idx < 1 || idx > int(n) {
			return nil, &LampIndexError{Setting: setting, Index: k, LampCount: n}
		}
		out = append(out, override{offset: idx - 1, value: s.SpecificLamps[k]})
	}
	return out, nil
}

func expand(n uint32, def float64, s *types.LampSettings, specific []override) []float64 {
	if !s.IsZero() && s.AllLamps != nil {
		def = *s.AllLamps
	}
	arr := make([]float64, n)
	for i := range arr {
		arr[i] = def
	}
	for _, o := range specific {
		arr[o.offset] = o.value
	}
	return arr
}
