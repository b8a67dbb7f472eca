// Package app wires the startup sequence shared by the server and the CLI.
package app
