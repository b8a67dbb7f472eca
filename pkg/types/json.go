package types

import (
	"encoding/json"
	"math"
	"strconv"
)

// number is a float64 that survives JSON when it is not finite. NaN and the
// infinities are written as the strings "NaN", "+Inf" and "-Inf"; encoding/json
// refuses them as numbers.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return json.Marshal(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return json.Marshal(v)
}

func (n *number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = number(v)
		return nil
	}
	return json.Unmarshal(b, (*float64)(n))
}

func numbers(vs []float64) []number {
	if vs == nil {
		return nil
	}
	out := make([]number, len(vs))
	for i, v := range vs {
		out[i] = number(v)
	}
	return out
}

func floats(ns []number) []float64 {
	if ns == nil {
		return nil
	}
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = float64(n)
	}
	return out
}

type fieldViolationJSON struct {
	Value number `json:"value"`
	Min   number `json:"min"`
	Max   number `json:"max"`
	Unit  string `json:"unit"`
}

func (f FieldViolation) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldViolationJSON{number(f.Value), number(f.Min), number(f.Max), f.Unit})
}

func (f *FieldViolation) UnmarshalJSON(b []byte) error {
	var w fieldViolationJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*f = FieldViolation{Value: float64(w.Value), Min: float64(w.Min), Max: float64(w.Max), Unit: w.Unit}
	return nil
}

type parametersJSON struct {
	SystemType         string        `json:"system_type"`
	Flow               number        `json:"flow"`
	UVT                *number       `json:"uvt,omitempty"`
	UVT215             *number       `json:"uvt215,omitempty"`
	D1Log              *number       `json:"d1_log,omitempty"`
	PowerSettings      *LampSettings `json:"power_settings,omitempty"`
	EfficiencySettings *LampSettings `json:"efficiency_settings,omitempty"`
}

func (p Parameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(parametersJSON{
		SystemType:         p.SystemType,
		Flow:               number(p.Flow),
		UVT:                (*number)(p.UVT),
		UVT215:             (*number)(p.UVT215),
		D1Log:              (*number)(p.D1Log),
		PowerSettings:      p.PowerSettings,
		EfficiencySettings: p.EfficiencySettings,
	})
}

func (p *Parameters) UnmarshalJSON(b []byte) error {
	var w parametersJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = Parameters{
		SystemType:         w.SystemType,
		Flow:               float64(w.Flow),
		UVT:                (*float64)(w.UVT),
		UVT215:             (*float64)(w.UVT215),
		D1Log:              (*float64)(w.D1Log),
		PowerSettings:      w.PowerSettings,
		EfficiencySettings: w.EfficiencySettings,
	}
	return nil
}

type lampSettingsJSON struct {
	AllLamps      *number           `json:"all_lamps,omitempty"`
	SpecificLamps map[string]number `json:"specific_lamps,omitempty"`
}

func (s LampSettings) MarshalJSON() ([]byte, error) {
	w := lampSettingsJSON{AllLamps: (*number)(s.AllLamps)}
	if s.SpecificLamps != nil {
		w.SpecificLamps = make(map[string]number, len(s.SpecificLamps))
		for k, v := range s.SpecificLamps {
			w.SpecificLamps[k] = number(v)
		}
	}
	return json.Marshal(w)
}

func (s *LampSettings) UnmarshalJSON(b []byte) error {
	var w lampSettingsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = LampSettings{AllLamps: (*float64)(w.AllLamps)}
	if w.SpecificLamps != nil {
		s.SpecificLamps = make(map[string]float64, len(w.SpecificLamps))
		for k, v := range w.SpecificLamps {
			s.SpecificLamps[k] = float64(v)
		}
	}
	return nil
}

type inputEchoJSON struct {
	Flow   number      `json:"flow"`
	UVT    *number     `json:"uvt,omitempty"`
	UVT215 interface{} `json:"uvt215,omitempty"`
	D1Log  *number     `json:"d1_log,omitempty"`
}

func (e InputEcho) MarshalJSON() ([]byte, error) {
	w := inputEchoJSON{Flow: number(e.Flow), UVT: (*number)(e.UVT), UVT215: e.UVT215, D1Log: (*number)(e.D1Log)}
	if v, ok := e.UVT215.(float64); ok {
		w.UVT215 = number(v)
	}
	return json.Marshal(w)
}

func (e *InputEcho) UnmarshalJSON(b []byte) error {
	var w struct {
		inputEchoJSON
		UVT215 json.RawMessage `json:"uvt215,omitempty"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = InputEcho{Flow: float64(w.Flow), UVT: (*float64)(w.UVT), D1Log: (*float64)(w.D1Log)}
	if len(w.UVT215) == 0 {
		return nil
	}
	var n number
	if err := json.Unmarshal(w.UVT215, &n); err == nil {
		e.UVT215 = float64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(w.UVT215, &s); err != nil {
		return err
	}
	e.UVT215 = s
	return nil
}

type lampSettingsOutJSON struct {
	Power      []number `json:"power"`
	Efficiency []number `json:"efficiency"`
}

func (l LampSettingsOut) MarshalJSON() ([]byte, error) {
	return json.Marshal(lampSettingsOutJSON{numbers(l.Power), numbers(l.Efficiency)})
}

func (l *LampSettingsOut) UnmarshalJSON(b []byte) error {
	var w lampSettingsOutJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*l = LampSettingsOut{Power: floats(w.Power), Efficiency: floats(w.Efficiency)}
	return nil
}
