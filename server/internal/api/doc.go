// Package api implements the HTTP REST API for uvdose-server.
//
// New(calc, history) returns an http.Handler that serves:
//
//	GET  /api/v1/health                  status, system count, history size
//	GET  /api/v1/systems                 supported systems grouped by series
//	GET  /api/v1/systems/{type}/ranges   operating limits; 404 if unknown
//	GET  /api/v1/systems/{type}/lamps    lamp count; 404 if unknown
//	POST /api/v1/calculate               front-end form: RED plus head loss
//	POST /api/v1/red                     RED with per-lamp overrides
//	POST /api/v1/pressure-drop           pressure drop for a flow
//	GET  /api/v1/history[?limit=N]       recent calculations, newest first
//	GET  /api/v1/history/{id}            single record; 404 if unknown or stale
//
// Every response is JSON. Wrong methods get 405. Calculation failures are
// answered with 400 and the outcome body so the caller sees the failure kind.
package api
