// Command redcalc runs one query against the native RED library and prints
// the result as JSON.
//
// Usage:
//
//	redcalc systems
//	redcalc lamps RZ-104-11
//	redcalc ranges RZ-104-11
//	redcalc red RZ-104-11 --flow 100 --uvt 95 --power 2=60
//	redcalc pressure-drop RZ-104-11 --flow 100
package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	root := newRootCmd(openEngine, os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
