package types

// Range is an inclusive operating limit for one physical parameter.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

// Contains reports whether v lies within [Min, Max]. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ParameterRanges holds the operating limits of one system type.
type ParameterRanges struct {
	Flow Range `json:"flow"`
	UVT  Range `json:"uvt"`
}
