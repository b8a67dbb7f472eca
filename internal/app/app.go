package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uvdose/uvdose/internal/calc"
	"github.com/uvdose/uvdose/internal/catalog"
	"github.com/uvdose/uvdose/internal/config"
	"github.com/uvdose/uvdose/internal/docsource"
	"github.com/uvdose/uvdose/internal/metrics"
	"github.com/uvdose/uvdose/internal/native"
)

// Engine is everything the startup sequence produced.
type Engine struct {
	Library    *native.Library
	Catalog    *catalog.Catalog
	Calculator *calc.Calculator
	Metrics    *metrics.Metrics // nil when not requested
	SpecPath   string
}

// Close releases the native library.
func (e *Engine) Close() error { return e.Library.Close() }

// Deps replaces startup steps, for tests.
type Deps struct {
	// Resolve maps the configured specification source to a local path.
	Resolve func(context.Context, config.SpecificationConfig) (string, error)
	// Open loads and binds the native library.
	Open func(cfg config.LibraryConfig, specPath string, opts ...native.Option) (*native.Library, error)
}

func (d Deps) withDefaults() Deps {
	if d.Resolve == nil {
		d.Resolve = docsource.Resolve
	}
	if d.Open == nil {
		d.Open = OpenLibrary
	}
	return d
}

// OpenLibrary locates, loads and binds the native library in cfg.Dir.
func OpenLibrary(cfg config.LibraryConfig, specPath string, opts ...native.Option) (*native.Library, error) {
	mod, err := native.NewResolver(cfg.Dir, cfg.MinSizeBytes).Load()
	if err != nil {
		return nil, err
	}
	lib, err := native.Bind(mod, specPath, opts...)
	if err != nil {
		_ = mod.Close()
		return nil, err
	}
	return lib, nil
}

// Start runs the startup sequence: resolve the specification document, load
// and bind the native library, load the catalog and build the Calculator.
// Any error is fatal to the process. m may be nil.
func Start(ctx context.Context, cfg *config.Config, m *metrics.Metrics, deps Deps) (*Engine, error) {
	deps = deps.withDefaults()

	specPath, err := deps.Resolve(ctx, cfg.Specification)
	if err != nil {
		return nil, fmt.Errorf("app: specification: %w", err)
	}

	opts := []native.Option{native.WithSerializedCalls(cfg.Library.SerializeCalls)}
	if m != nil {
		opts = append(opts, native.WithCallObserver(m.ObserveNativeCall))
	}
	lib, err := deps.Open(cfg.Library, specPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: native library: %w", err)
	}

	cat, err := catalog.Load(specPath)
	if err != nil {
		_ = lib.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	for _, id := range lib.Systems() {
		if _, ok := cat.RangesFor(id); !ok {
			slog.Warn("app: system has no operating limits in the catalog", "system", id)
		}
	}

	copts := calc.Options{
		DefaultDrive:      cfg.Calculation.DefaultDrive,
		DefaultEfficiency: cfg.Calculation.DefaultEfficiency,
		DefaultUVT215:     cfg.Calculation.DefaultUVT215,
		DefaultD1Log:      cfg.Calculation.DefaultD1Log,
		NativeValidation:  cfg.Calculation.NativeValidation,
	}
	if m != nil {
		copts.Recorder = m
	}

	slog.Info("app: engine ready", "systems", len(lib.Systems()), "catalogued", cat.Len(), "spec", specPath)
	return &Engine{
		Library:    lib,
		Catalog:    cat,
		Calculator: calc.New(lib, cat, copts),
		Metrics:    m,
		SpecPath:   specPath,
	}, nil
}
