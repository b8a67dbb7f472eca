package native

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Function names reported to the call observer.
const (
	FnInitConfig         = "init_config"
	FnListSystems        = "list_systems"
	FnLampCount          = "lamp_count"
	FnLampPower          = "lamp_power"
	FnREDFunctionFor     = "red_function_for"
	FnRED                = "red"
	FnValidateParameters = "validate_parameters"
	FnPressureDrop       = "pressure_drop"
)

// REDFunc computes the Reduction Equivalent Dose for one system. power and
// efficiency must both have exactly nLamps elements.
type REDFunc func(flow, uvt, uvt215 float64, power, efficiency []float64, d1Log float64, nLamps uint32) float64

// Functions is the typed function table of the calculation engine.
// Every field must be set.
type Functions struct {
	// InitConfig is the initializer Bind already ran before building the
	// table. The Library never calls it again; it is kept so a Functions
	// value always describes the whole engine ABI.
	InitConfig         func(specPath string) bool
	SupportedSystems   func() []string
	LampCount          func(system string) uint32
	LampPower          func(system string) float64
	REDFunction        func(system string) REDFunc // nil when the system has none
	ValidateParameters func(system string, flow, uvt, uvt215, d1Log float64) bool
	PressureDrop       func(system string, flow float64) float64
}

func (f Functions) missing() string {
	switch {
	case f.InitConfig == nil:
		return symInitConfig
	case f.SupportedSystems == nil:
		return symSupportedSystems
	case f.LampCount == nil:
		return symLampCount
	case f.LampPower == nil:
		return symLampPower
	case f.REDFunction == nil:
		return symREDFunction
	case f.ValidateParameters == nil:
		return symValidateParameters
	case f.PressureDrop == nil:
		return symPressureDrop
	}
	return ""
}

// Option configures a Library.
type Option func(*Library)

// WithSerializedCalls controls whether native calls are serialized behind a
// single mutex. The default is true.
func WithSerializedCalls(on bool) Option {
	return func(l *Library) { l.serialize = on }
}

// WithCallObserver registers fn to receive the duration of every native call.
func WithCallObserver(fn func(function string, elapsed time.Duration)) Option {
	return func(l *Library) { l.observe = fn }
}

// Library is a fully bound calculation engine plus the index of the systems
// it supports. It is immutable after construction apart from the per-system
// RED function cache, and safe for concurrent use.
type Library struct {
	module  Module // nil when built from Go closures
	fns     Functions
	systems []string
	index   map[string]struct{}

	serialize bool
	mu        sync.Mutex
	observe   func(string, time.Duration)

	redMu sync.Mutex
	red   map[string]REDFunc
}

// NewLibrary builds a Library from a complete function table. It queries the
// supported systems once; an empty answer is ErrNoSystems.
func NewLibrary(fns Functions, opts ...Option) (*Library, error) {
	if name := fns.missing(); name != "" {
		return nil, &SymbolError{Name: name}
	}
	l := &Library{
		fns:       fns,
		index:     make(map[string]struct{}),
		serialize: true,
		red:       make(map[string]REDFunc),
	}
	for _, o := range opts {
		o(l)
	}

	var reported []string
	l.call(FnListSystems, func() { reported = fns.SupportedSystems() })
	for _, s := range reported {
		if _, dup := l.index[s]; dup || s == "" {
			continue
		}
		l.index[s] = struct{}{}
		l.systems = append(l.systems, s)
	}
	if len(l.systems) == 0 {
		return nil, ErrNoSystems
	}

	slog.Info("native: library bound", "systems", len(l.systems), "serialized", l.serialize)
	return l, nil
}

// Systems returns the supported system identifiers in the order the engine
// reported them. The caller must not modify the slice.
func (l *Library) Systems() []string { return l.systems }

// Supports reports whether the engine knows system.
func (l *Library) Supports(system string) bool {
	_, ok := l.index[system]
	return ok
}

// LampCount returns the number of lamps of system; 0 means unavailable.
func (l *Library) LampCount(system string) (n uint32) {
	l.call(FnLampCount, func() { n = l.fns.LampCount(system) })
	return n
}

// LampPower returns the nominal lamp power of system in watts.
func (l *Library) LampPower(system string) (w float64) {
	l.call(FnLampPower, func() { w = l.fns.LampPower(system) })
	return w
}

// ValidateParameters asks the engine whether it accepts the inputs.
func (l *Library) ValidateParameters(system string, flow, uvt, uvt215, d1Log float64) (ok bool) {
	l.call(FnValidateParameters, func() { ok = l.fns.ValidateParameters(system, flow, uvt, uvt215, d1Log) })
	return ok
}

// PressureDrop returns the hydraulic pressure drop of system at flow.
// A non-positive value means the engine rejected the inputs.
func (l *Library) PressureDrop(system string, flow float64) (dp float64) {
	l.call(FnPressureDrop, func() { dp = l.fns.PressureDrop(system, flow) })
	return dp
}

// REDFunction returns the RED calculation of system, or nil if the engine
// has none. Resolved functions are cached per system.
func (l *Library) REDFunction(system string) REDFunc {
	l.redMu.Lock()
	fn, ok := l.red[system]
	l.redMu.Unlock()
	if ok {
		return fn
	}

	var raw REDFunc
	l.call(FnREDFunctionFor, func() { raw = l.fns.REDFunction(system) })
	if raw == nil {
		return nil
	}
	fn = l.guardRED(raw)

	l.redMu.Lock()
	l.red[system] = fn
	l.redMu.Unlock()
	return fn
}

// guardRED wraps raw with the lamp-array length check and the call lock.
func (l *Library) guardRED(raw REDFunc) REDFunc {
	return func(flow, uvt, uvt215 float64, power, efficiency []float64, d1Log float64, nLamps uint32) (dose float64) {
		if nLamps == 0 || len(power) != int(nLamps) || len(efficiency) != int(nLamps) {
			panic(fmt.Sprintf("native: lamp arrays (power %d, efficiency %d) do not match lamp count %d",
				len(power), len(efficiency), nLamps))
		}
		l.call(FnRED, func() { dose = raw(flow, uvt, uvt215, power, efficiency, d1Log, nLamps) })
		return dose
	}
}

// Close unloads the native module, if any.
func (l *Library) Close() error {
	if l.module == nil {
		return nil
	}
	return l.module.Close()
}

func (l *Library) call(name string, fn func()) {
	if l.serialize {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	start := time.Now()
	fn()
	if l.observe != nil {
		l.observe(name, time.Since(start))
	}
}
