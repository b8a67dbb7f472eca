package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/uvdose/uvdose/internal/calc"
	"github.com/uvdose/uvdose/internal/lamps"
	"github.com/uvdose/uvdose/pkg/types"
	"github.com/uvdose/uvdose/server/internal/history"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Calculator is the query surface the handlers need. *calc.Calculator
// implements it.
type Calculator interface {
	CalculateRED(req calc.REDRequest) types.Outcome
	CalculatePressureDrop(system string, flow float64) types.Outcome
	SupportedSystemsGrouped() map[string][]string
	LampCount(system string) (types.LampInfo, error)
	ParameterRanges(system string) (types.ParameterRanges, bool)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	calc    Calculator
	history *history.Store
	mux     *http.ServeMux
}

// New creates a Handler over c and registers all routes. Served outcomes are
// recorded in hist.
func New(c Calculator, hist *history.Store) http.Handler {
	h := &Handler{calc: c, history: hist, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/systems", h.systems)
	h.mux.HandleFunc("/api/v1/systems/", h.system) // subtree: {type}/ranges, {type}/lamps
	h.mux.HandleFunc("/api/v1/calculate", h.calculate)
	h.mux.HandleFunc("/api/v1/red", h.red)
	h.mux.HandleFunc("/api/v1/pressure-drop", h.pressureDrop)
	h.mux.HandleFunc("/api/v1/history", h.listHistory)
	h.mux.HandleFunc("/api/v1/history/", h.getHistory)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	n := 0
	for _, members := range h.calc.SupportedSystemsGrouped() {
		n += len(members)
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:                "healthy",
		CalculatorInitialized: true,
		Systems:               n,
		HistoryCount:          h.history.Count(),
	})
}

// systems returns GET /api/v1/systems: supported systems grouped by series.
func (h *Handler) systems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	groups := h.calc.SupportedSystemsGrouped()
	if len(groups) == 0 {
		jsonErr(w, http.StatusNotFound, "no supported systems found")
		return
	}
	jsonResp(w, http.StatusOK, SupportedSystemsResponse{Systems: groups, Status: types.StatusSuccess})
}

// system serves GET /api/v1/systems/{type}/ranges and /api/v1/systems/{type}/lamps.
func (h *Handler) system(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/systems/")
	if rest == "" {
		h.systems(w, r)
		return
	}
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	system, resource := rest[:i], rest[i+1:]

	switch resource {
	case "ranges":
		ranges, ok := h.calc.ParameterRanges(system)
		if !ok {
			jsonErr(w, http.StatusNotFound, "System type '"+system+"' not found")
			return
		}
		jsonResp(w, http.StatusOK, ParameterRangesResponse{SystemType: system, Ranges: ranges, Status: types.StatusSuccess})
	case "lamps":
		info, err := h.calc.LampCount(system)
		switch {
		case errors.Is(err, lamps.ErrUnknownSystem):
			jsonErr(w, http.StatusNotFound, "System type '"+system+"' not found")
		case err != nil:
			jsonErr(w, http.StatusInternalServerError, "Could not get lamp count for system "+system)
		default:
			jsonResp(w, http.StatusOK, info)
		}
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

// calculate serves POST /api/v1/calculate for the front-end form. Drive and
// efficiency apply to every lamp; Head Loss comes from the pressure-drop
// calculation.
func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req CalculationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// The form sends 0 for fields the user left blank.
	system := req.SystemType()
	uvt215 := req.UVT215
	if uvt215 != nil && *uvt215 <= 0 {
		uvt215 = nil
	}
	d1Log := req.D1Log
	if d1Log != nil && *d1Log == 0 {
		d1Log = nil
	}
	drive, eff := req.RelativeDrive, req.Efficiency
	out := h.calc.CalculateRED(calc.REDRequest{
		System:     system,
		Flow:       req.FlowRate,
		UVT:        req.UVT254,
		UVT215:     uvt215,
		D1Log:      d1Log,
		Power:      &types.LampSettings{AllLamps: &drive},
		Efficiency: &types.LampSettings{AllLamps: &eff},
	})
	h.record(r, calc.OpRED, system, out)

	if !out.OK() {
		msg := out.Error.Message
		if msg == "" {
			msg = "Calculation failed"
		}
		jsonResp(w, http.StatusBadRequest, calculationError{Error: msg, Details: out.Error})
		return
	}

	var headLoss interface{} = NotComputed
	dp := h.calc.CalculatePressureDrop(system, req.FlowRate)
	h.record(r, calc.OpPressureDrop, system, dp)
	if dp.OK() {
		headLoss = dp.Value()
	} else {
		slog.Warn("api: head loss unavailable", "system", system, "reason", dp.Error.Message)
	}

	jsonResp(w, http.StatusOK, CalculationResponse{
		RED:                out.Value(),
		HeadLoss:           headLoss,
		MaxElectricalPower: NotComputed,
		AverageLampPower:   NotComputed,
		ExpectedLI:         NotComputed,
		Status:             types.StatusSuccess,
		CalculationDetails: out.Details,
	})
}

// red serves POST /api/v1/red with the full per-lamp request.
func (h *Handler) red(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req calc.REDRequest
	if !decode(w, r, &req) {
		return
	}
	out := h.calc.CalculateRED(req)
	h.record(r, calc.OpRED, req.System, out)
	jsonResp(w, outcomeStatus(out), out)
}

// pressureDrop serves POST /api/v1/pressure-drop.
func (h *Handler) pressureDrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req PressureDropRequest
	if !decode(w, r, &req) {
		return
	}
	out := h.calc.CalculatePressureDrop(req.SystemType, req.Flow)
	h.record(r, calc.OpPressureDrop, req.SystemType, out)
	jsonResp(w, outcomeStatus(out), out)
}

// listHistory returns GET /api/v1/history?limit=N: recent calculations,
// newest first.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	jsonResp(w, http.StatusOK, BuildHistory(h.history, limit))
}

// getHistory returns GET /api/v1/history/{id}.
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/history/")
	if id == "" {
		h.listHistory(w, r)
		return
	}
	rec, ok := h.history.Get(id)
	if !ok || (h.history.TTL() > 0 && time.Since(rec.CreatedAt) > h.history.TTL()) {
		jsonErr(w, http.StatusNotFound, "record not found")
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

// BuildHistory assembles the history payload; the WebSocket feed sends the
// same document.
func BuildHistory(st *history.Store, limit int) HistoryResponse {
	records := st.List(limit)
	return HistoryResponse{
		Records:     records,
		Count:       len(records),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) record(r *http.Request, op, system string, out types.Outcome) {
	h.history.Add(r.Context(), op, system, out)
}

// outcomeStatus maps a calculation outcome to an HTTP status. The body is
// the outcome either way.
func outcomeStatus(o types.Outcome) int {
	if o.OK() {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// WithCORS allows any origin to call next and answers preflight requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
