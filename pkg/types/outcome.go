package types

// Outcome status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorKind classifies a failed calculation for the caller.
type ErrorKind string

const (
	// KindValidation means the request parameters were rejected.
	KindValidation ErrorKind = "validation"
	// KindSystem means the system type or the native library could not serve the request.
	KindSystem ErrorKind = "system"
	// KindCalculation means the native engine returned a non-positive (invalid) value.
	KindCalculation ErrorKind = "calculation"
)

// NotSupplied is reported in place of uvt215 when the caller did not provide one.
const NotSupplied = "N/A"

// PressureDropUnit is the unit of every pressure-drop result.
const PressureDropUnit = "[cmH2O]"

// Outcome is the tagged result of a calculation. Exactly one of the success
// fields (Result, Details) or Error is populated; use Succeed and Fail to
// build one.
type Outcome struct {
	Status     string      `json:"status"`
	Result     *float64    `json:"result,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Details    *Details    `json:"details,omitempty"`
	Error      *Failure    `json:"error,omitempty"`
	Parameters *Parameters `json:"parameters,omitempty"`
}

// Succeed returns a success Outcome carrying value and details.
func Succeed(value float64, unit string, details *Details) Outcome {
	return Outcome{
		Status:  StatusSuccess,
		Result:  &value,
		Unit:    unit,
		Details: details,
	}
}

// Fail returns an error Outcome echoing the request parameters.
func Fail(f Failure, params Parameters) Outcome {
	return Outcome{
		Status:     StatusError,
		Error:      &f,
		Parameters: &params,
	}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Value returns the result value, or 0 for a failure.
func (o Outcome) Value() float64 {
	if o.Result == nil {
		return 0
	}
	return *o.Result
}

// Failure describes why a calculation did not produce a value.
type Failure struct {
	Kind    ErrorKind                 `json:"type"`
	Message string                    `json:"message,omitempty"`
	Errors  map[string]FieldViolation `json:"errors,omitempty"`
}

// FieldViolation is one request parameter outside its allowed range.
// Value is rounded to one decimal place for display. A NaN or infinite Value
// is encoded in JSON as the string "NaN", "+Inf" or "-Inf".
type FieldViolation struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Unit  string  `json:"unit"`
}

// Parameters echoes the request so callers can reconstruct context from an
// error outcome alone.
type Parameters struct {
	SystemType         string        `json:"system_type"`
	Flow               float64       `json:"flow"`
	UVT                *float64      `json:"uvt,omitempty"`
	UVT215             *float64      `json:"uvt215,omitempty"`
	D1Log              *float64      `json:"d1_log,omitempty"`
	PowerSettings      *LampSettings `json:"power_settings,omitempty"`
	EfficiencySettings *LampSettings `json:"efficiency_settings,omitempty"`
}

// Details accompanies a successful calculation.
type Details struct {
	SystemType     string           `json:"system_type"`
	NumberOfLamps  uint32           `json:"number_of_lamps,omitempty"`
	LampPowerWatts float64          `json:"lamp_power_watts,omitempty"`
	Parameters     InputEcho        `json:"parameters"`
	LampSettings   *LampSettingsOut `json:"lamp_settings,omitempty"`
}

// InputEcho holds the scalar inputs used for a calculation. UVT215 is either a
// float64 or NotSupplied.
type InputEcho struct {
	Flow   float64     `json:"flow"`
	UVT    *float64    `json:"uvt,omitempty"`
	UVT215 interface{} `json:"uvt215,omitempty"`
	D1Log  *float64    `json:"d1_log,omitempty"`
}

// LampSettingsOut is the resolved per-lamp arrays passed to the engine.
type LampSettingsOut struct {
	Power      []float64 `json:"power"`
	Efficiency []float64 `json:"efficiency"`
}

// LampSettings is a sparse per-lamp override. AllLamps replaces every
// element; SpecificLamps then overrides single lamps keyed by 1-based index.
type LampSettings struct {
	AllLamps      *float64           `json:"all_lamps,omitempty"`
	SpecificLamps map[string]float64 `json:"specific_lamps,omitempty"`
}

// IsZero reports whether the settings carry no override at all.
func (s *LampSettings) IsZero() bool {
	return s == nil || (s.AllLamps == nil && len(s.SpecificLamps) == 0)
}

// LampInfo answers a lamp-count query.
type LampInfo struct {
	SystemType string `json:"system_type"`
	Lamps      uint32 `json:"n_lamps"`
}
