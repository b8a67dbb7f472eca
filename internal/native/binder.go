package native

import (
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"
	"unsafe"
)

// Exported symbols of the vendor library.
const (
	symInitConfig         = "init_system_config"
	symSupportedSystems   = "get_supported_systems"
	symLampCount          = "get_lamp_count"
	symLampPower          = "get_lamp_power"
	symREDFunction        = "getREDFunction"
	symValidateParameters = "validate_parameters"
	symPressureDrop       = "calculate_pressure_drop"
)

// C signatures, as Go func types understood by purego.
type (
	cInitConfig         func(specPath string) bool
	cSupportedSystems   func(count *uintptr) unsafe.Pointer // char**
	cLampCount          func(system string) uint32
	cLampPower          func(system string) float64
	cREDFunctionFor     func(system string) uintptr
	cRED                func(flow, uvt, uvt215 float64, power, efficiency *float64, d1Log float64, nLamps uint32) float64
	cValidateParameters func(system string, flow, uvt, uvt215, d1Log float64) bool
	cPressureDrop       func(system string, flow float64) float64
)

// Bind initialises the engine with the specification document at specPath,
// resolves the remaining exported functions of m and returns the bound
// Library. init_system_config is resolved and called first; if it fails no
// other symbol is touched.
func Bind(m Module, specPath string, opts ...Option) (*Library, error) {
	var initConfig cInitConfig
	if err := bindSymbol(m, &initConfig, symInitConfig); err != nil {
		return nil, err
	}
	if _, err := os.Stat(specPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInit, err)
	}
	if !initConfig(specPath) {
		return nil, fmt.Errorf("%w: %s", ErrConfigInit, specPath)
	}
	slog.Info("native: system configuration initialised", "spec", specPath)

	var (
		supportedSystems   cSupportedSystems
		lampCount          cLampCount
		lampPower          cLampPower
		redFunctionFor     cREDFunctionFor
		validateParameters cValidateParameters
		pressureDrop       cPressureDrop
	)
	for _, s := range []struct {
		fptr any
		name string
	}{
		{&supportedSystems, symSupportedSystems},
		{&lampCount, symLampCount},
		{&lampPower, symLampPower},
		{&redFunctionFor, symREDFunction},
		{&validateParameters, symValidateParameters},
		{&pressureDrop, symPressureDrop},
	} {
		if err := bindSymbol(m, s.fptr, s.name); err != nil {
			return nil, err
		}
	}

	lib, err := NewLibrary(Functions{
		InitConfig: initConfig,
		SupportedSystems: func() []string {
			var n uintptr
			return cStrings(supportedSystems(&n), n)
		},
		LampCount: lampCount,
		LampPower: lampPower,
		REDFunction: func(system string) REDFunc {
			addr := redFunctionFor(system)
			if addr == 0 {
				return nil
			}
			var red cRED
			registerFunc(&red, addr)
			return func(flow, uvt, uvt215 float64, power, efficiency []float64, d1Log float64, nLamps uint32) float64 {
				return red(flow, uvt, uvt215, &power[0], &efficiency[0], d1Log, nLamps)
			}
		},
		ValidateParameters: validateParameters,
		PressureDrop:       pressureDrop,
	}, opts...)
	if err != nil {
		return nil, err
	}
	lib.module = m
	return lib, nil
}

func bindSymbol(m Module, fptr any, name string) error {
	addr, err := m.Symbol(name)
	if err != nil || addr == 0 {
		return &SymbolError{Name: name, Err: err}
	}
	registerFunc(fptr, addr)
	return nil
}

// cStrings copies a C array of n NUL-terminated strings. Null entries and
// entries that are not valid UTF-8 are skipped.
func cStrings(p unsafe.Pointer, n uintptr) []string {
	if p == nil || n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i, s := range unsafe.Slice((**byte)(p), n) {
		if s == nil {
			slog.Warn("native: null system entry", "index", i)
			continue
		}
		str := goString(s)
		if !utf8.ValidString(str) {
			slog.Warn("native: system entry is not valid UTF-8", "index", i)
			continue
		}
		out = append(out, str)
	}
	return out
}

func goString(p *byte) string {
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
