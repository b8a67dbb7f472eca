// Package types defines the Go types shared by the calculation core, the HTTP
// server and the redcalc CLI. These are the canonical in-memory and JSON
// representations of calculation outcomes and system parameter ranges.
package types
