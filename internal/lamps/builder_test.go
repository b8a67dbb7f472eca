package lamps

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvdose/uvdose/pkg/types"
)

type fakeEngine struct {
	systems    map[string]uint32
	countCalls int
}

func (e *fakeEngine) Supports(s string) bool {
	_, ok := e.systems[s]
	return ok
}

func (e *fakeEngine) LampCount(s string) uint32 {
	e.countCalls++
	return e.systems[s]
}

func (e *fakeEngine) LampPower(string) float64 { return 145.49 }

type fakeRanges map[string]types.ParameterRanges

func (f fakeRanges) RangesFor(s string) (types.ParameterRanges, bool) {
	r, ok := f[s]
	return r, ok
}

var rz = types.ParameterRanges{
	Flow: types.Range{Min: 10, Max: 500, Unit: "m3/h"},
	UVT:  types.Range{Min: 70, Max: 99, Unit: "%-1cm"},
}

func newTestBuilder() (*Builder, *fakeEngine) {
	e := &fakeEngine{systems: map[string]uint32{"RZ-104-11": 2, "RZ-NOSPEC": 4, "RZ-DARK": 0}}
	r := fakeRanges{"RZ-104-11": rz, "RZ-DARK": rz}
	return NewBuilder(e, r), e
}

func f(v float64) *float64 { return &v }

func TestBuild_Defaults(t *testing.T) {
	b, _ := newTestBuilder()
	p, err := b.Build(Request{System: "RZ-104-11", Flow: 100, UVT: 85})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), p.LampCount)
	assert.Equal(t, 145.49, p.LampPower)
	assert.Equal(t, []float64{100, 100}, p.Power)
	assert.Equal(t, []float64{100, 100}, p.Efficiency)
}

func TestBuild_AllLampsThenSpecific(t *testing.T) {
	b, _ := newTestBuilder()
	p, err := b.Build(Request{
		System:     "RZ-104-11",
		Flow:       100,
		UVT:        85,
		Power:      &types.LampSettings{AllLamps: f(90), SpecificLamps: map[string]float64{"1": 50}},
		Efficiency: &types.LampSettings{SpecificLamps: map[string]float64{" 2 ": 70}},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 90}, p.Power)
	assert.Equal(t, []float64{100, 70}, p.Efficiency)
}

func TestBuild_ConfiguredDefaults(t *testing.T) {
	b, _ := newTestBuilder()
	b.DefaultDrive, b.DefaultEfficiency = 80, 95
	p, err := b.Build(Request{System: "RZ-104-11", Flow: 100, UVT: 85})
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 80}, p.Power)
	assert.Equal(t, []float64{95, 95}, p.Efficiency)
}

func TestBuild_UnknownSystem(t *testing.T) {
	b, e := newTestBuilder()
	_, err := b.Build(Request{System: "XX-1", Flow: 100, UVT: 85})
	assert.ErrorIs(t, err, ErrUnknownSystem)
	assert.Zero(t, e.countCalls)
}

func TestBuild_NoSpecification(t *testing.T) {
	b, _ := newTestBuilder()
	_, err := b.Build(Request{System: "RZ-NOSPEC", Flow: 100, UVT: 85})
	assert.ErrorIs(t, err, ErrNoSpecification)
}

func TestBuild_ReportsBothViolations(t *testing.T) {
	b, e := newTestBuilder()
	_, err := b.Build(Request{System: "RZ-104-11", Flow: 612.345, UVT: 12.06})

	var rerr *RangeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, map[string]types.FieldViolation{
		"flow": {Value: 612.3, Min: 10, Max: 500, Unit: "m3/h"},
		"uvt":  {Value: 12.1, Min: 70, Max: 99, Unit: "%-1cm"},
	}, rerr.Violations)
	assert.Zero(t, e.countCalls, "lamp count must not be queried after a range failure")
}

func TestCheckRanges_NamesExactlyTheViolatingField(t *testing.T) {
	inside := []float64{10, 10.5, 250, 499.9, 500}
	for _, flow := range inside {
		assert.NoError(t, CheckRanges(rz, flow, 85), "flow %v", flow)
	}
	for _, flow := range []float64{9.99, 500.01, -1, math.NaN(), math.Inf(1)} {
		var rerr *RangeError
		require.ErrorAs(t, CheckRanges(rz, flow, 85), &rerr, "flow %v", flow)
		assert.Len(t, rerr.Violations, 1)
		assert.Contains(t, rerr.Violations, "flow")
	}
	var rerr *RangeError
	require.ErrorAs(t, CheckRanges(rz, 100, 99.5), &rerr)
	assert.Len(t, rerr.Violations, 1)
	assert.Contains(t, rerr.Violations, "uvt")
}

func TestCheckRanges_NonFiniteViolationEncodes(t *testing.T) {
	var rerr *RangeError
	require.ErrorAs(t, CheckRanges(rz, math.NaN(), math.Inf(-1)), &rerr)

	b, err := json.Marshal(rerr.Violations)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"flow": {"value": "NaN", "min": 10, "max": 500, "unit": "m3/h"},
		"uvt":  {"value": "-Inf", "min": 70, "max": 99, "unit": "%-1cm"}
	}`, string(b))
}

func TestBuild_LampCountUnavailable(t *testing.T) {
	b, _ := newTestBuilder()
	_, err := b.Build(Request{System: "RZ-DARK", Flow: 100, UVT: 85})
	assert.ErrorIs(t, err, ErrLampCountUnavailable)
}

func TestBuild_InvalidLampIndex(t *testing.T) {
	for _, key := range []string{"0", "3", "-1", "one", "", "1.5"} {
		t.Run("key="+key, func(t *testing.T) {
			b, _ := newTestBuilder()
			power := &types.LampSettings{AllLamps: f(90), SpecificLamps: map[string]float64{"1": 50, key: 60}}
			p, err := b.Build(Request{System: "RZ-104-11", Flow: 100, UVT: 85, Power: power})

			var lerr *LampIndexError
			require.ErrorAs(t, err, &lerr)
			assert.Nil(t, p)
			assert.Equal(t, "power", lerr.Setting)
			assert.Equal(t, key, lerr.Index)
			assert.Equal(t, uint32(2), lerr.LampCount)
			assert.Equal(t, "Invalid lamp index "+key+". System has 2 lamps", lerr.Error())
			// Request settings are left as supplied.
			assert.Equal(t, map[string]float64{"1": 50, key: 60}, power.SpecificLamps)
			assert.Equal(t, 90.0, *power.AllLamps)
		})
	}
}

func TestBuild_EfficiencyIndexCheckedBeforeAnyArray(t *testing.T) {
	b, _ := newTestBuilder()
	_, err := b.Build(Request{
		System:     "RZ-104-11",
		Flow:       100,
		UVT:        85,
		Power:      &types.LampSettings{SpecificLamps: map[string]float64{"2": 40}},
		Efficiency: &types.LampSettings{SpecificLamps: map[string]float64{"7": 40}},
	})
	var lerr *LampIndexError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "efficiency", lerr.Setting)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 12.3, Round1(12.34))
	assert.Equal(t, 12.4, Round1(12.35000001))
	assert.Equal(t, -3.2, Round1(-3.24))
}
