// Package catalog reads the system specification document, the same JSON
// file the native engine is initialised with, and answers operating-limit
// queries for the parameter validator.
package catalog
