package api

import (
	"errors"
	"fmt"
	"slices"

	"github.com/uvdose/uvdose/pkg/types"
	"github.com/uvdose/uvdose/server/internal/history"
)

// Accepted values for the front-end calculation request.
var (
	ApplicationTypes = []string{"Full Range", "Municipal", "Dechlorination"}
	PositionTypes    = []string{"Vertical", "Horizontal"}
	LampTypes        = []string{"Regular", "OzoneFree", "VUV"}
	FlowUnits        = []string{"m3/h", "US GPM"}
)

// NotComputed fills response fields the engine does not provide yet.
const NotComputed = "TBD"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status                string `json:"status"`
	CalculatorInitialized bool   `json:"calculator_initialized"`
	Systems               int    `json:"systems"`
	HistoryCount          int    `json:"history_count"`
}

// SupportedSystemsResponse is the payload for GET /api/v1/systems.
type SupportedSystemsResponse struct {
	Systems map[string][]string `json:"systems"`
	Status  string              `json:"status"`
}

// ParameterRangesResponse is the payload for GET /api/v1/systems/{type}/ranges.
type ParameterRangesResponse struct {
	SystemType string                `json:"system_type"`
	Ranges     types.ParameterRanges `json:"ranges"`
	Status     string                `json:"status"`
}

// PressureDropRequest is the body of POST /api/v1/pressure-drop.
type PressureDropRequest struct {
	SystemType string  `json:"system_type"`
	Flow       float64 `json:"flow"`
}

// CalculationRequest is the body of POST /api/v1/calculate as sent by the
// front-end. The system type is Module + "-" + Model.
type CalculationRequest struct {
	Application   string   `json:"Application"`
	Module        string   `json:"Module"`
	Model         string   `json:"Model"`
	Branch        string   `json:"Branch"`
	Position      string   `json:"Position"`
	LampType      string   `json:"Lamp Type"`
	Efficiency    float64  `json:"Efficiency"`
	RelativeDrive float64  `json:"Relative Drive"`
	UVT254        float64  `json:"UVT-1cm@254nm"`
	UVT215        *float64 `json:"UVT-1cm@215nm,omitempty"`
	FlowRate      float64  `json:"Flow Rate"`
	FlowUnits     string   `json:"Flow Units"`
	D1Log         *float64 `json:"D-1Log,omitempty"`
	Pathogen      string   `json:"Pathogen,omitempty"`
}

// SystemType returns the engine identifier the request addresses.
func (r CalculationRequest) SystemType() string { return r.Module + "-" + r.Model }

// Validate checks enums and bounds before anything reaches the engine.
func (r CalculationRequest) Validate() error {
	for _, f := range []struct {
		name, value string
		allowed     []string
	}{
		{"Application", r.Application, ApplicationTypes},
		{"Position", r.Position, PositionTypes},
		{"Lamp Type", r.LampType, LampTypes},
		{"Flow Units", r.FlowUnits, FlowUnits},
	} {
		if !slices.Contains(f.allowed, f.value) {
			return fmt.Errorf("%s must be one of: %v", f.name, f.allowed)
		}
	}
	if r.Module == "" || r.Model == "" {
		return errors.New("Module and Model are required")
	}
	for name, v := range map[string]*float64{
		"Efficiency":     &r.Efficiency,
		"Relative Drive": &r.RelativeDrive,
		"UVT-1cm@254nm":  &r.UVT254,
		"UVT-1cm@215nm":  r.UVT215,
	} {
		if v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("%s must be within [0, 100]", name)
		}
	}
	if !(r.FlowRate > 0) {
		return errors.New("Flow Rate must be greater than 0")
	}
	return nil
}

// CalculationResponse is the success payload of POST /api/v1/calculate.
type CalculationResponse struct {
	RED                float64        `json:"Reduction Equivalent Dose"`
	HeadLoss           interface{}    `json:"Head Loss"` // float64 in cmH2O, or NotComputed
	MaxElectricalPower string         `json:"Maximum Electrical Power"`
	AverageLampPower   string         `json:"Average Lamp Power Consumption"`
	ExpectedLI         string         `json:"Expected LI"`
	Status             string         `json:"status"`
	CalculationDetails *types.Details `json:"calculation_details,omitempty"`
}

// calculationError is the failure payload of POST /api/v1/calculate.
type calculationError struct {
	Error   string         `json:"error"`
	Details *types.Failure `json:"details,omitempty"`
}

// HistoryResponse is the payload for GET /api/v1/history.
type HistoryResponse struct {
	Records     []*history.Record `json:"records"`
	Count       int               `json:"count"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
