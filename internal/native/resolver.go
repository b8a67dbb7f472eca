package native

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMinSize is the size in bytes at or below which a candidate file is
// treated as a stub or a broken link rather than a real shared library.
const DefaultMinSize = 100

// Module is a loaded native library together with its retained dependency.
type Module interface {
	// Path is the absolute path of the main library.
	Path() string
	// Symbol returns the address of an exported function.
	Symbol(name string) (uintptr, error)
	// Close releases the main library, then the dependency.
	Close() error
}

// Loader opens a library and its runtime dependency. There is one
// implementation per target OS.
type Loader interface {
	Load(libPath, depPath string) (Module, error)
}

// Resolver finds the platform library in Dir and hands it to Loader.
type Resolver struct {
	// Dir is the directory holding the library and its dependency.
	Dir string

	// Names are the candidate file names in preference order.
	Names []string

	// Dependency is the file name of the json-c runtime dependency.
	Dependency string

	// MinSize is the exclusive lower bound on a candidate's size in bytes.
	MinSize int64

	Loader Loader
}

// NewResolver returns a Resolver with the current platform's candidate names
// and loader. A non-positive minSize selects DefaultMinSize.
func NewResolver(dir string, minSize int64) *Resolver {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	return &Resolver{
		Dir:        dir,
		Names:      libraryNames(),
		Dependency: dependencyName(),
		MinSize:    minSize,
		Loader:     platformLoader{},
	}
}

// Locate returns the path of the first candidate that exists and is larger
// than MinSize. Rejected candidates are logged and skipped.
func (r *Resolver) Locate() (string, error) {
	for _, name := range r.Names {
		p := filepath.Join(r.Dir, name)

		// Stat follows symlinks, so a dangling link fails here.
		fi, err := os.Stat(p)
		if err != nil {
			slog.Warn("native: library candidate unavailable", "path", p, "err", err)
			continue
		}
		if fi.IsDir() {
			slog.Warn("native: library candidate is a directory", "path", p)
			continue
		}
		if fi.Size() <= r.MinSize {
			slog.Warn("native: library candidate too small",
				"path", p, "size", fi.Size(), "min_size", r.MinSize)
			continue
		}

		slog.Info("native: found library", "path", p, "size", fi.Size())
		return p, nil
	}
	return "", fmt.Errorf("%w in %s (tried %s)",
		ErrLibraryNotFound, r.Dir, strings.Join(r.Names, ", "))
}

// Load locates the library and opens it together with its dependency from
// the same directory.
func (r *Resolver) Load() (Module, error) {
	p, err := r.Locate()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrLoadFailed, p, err)
	}
	dep := filepath.Join(filepath.Dir(abs), r.Dependency)

	slog.Info("native: loading library", "path", abs, "dependency", dep)
	m, err := r.Loader.Load(abs, dep)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, abs, err)
	}
	return m, nil
}

// enterDir switches the process working directory to dir and returns a func
// that switches it back. Only safe during single-threaded startup.
func enterDir(dir string) (restore func(), err error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("chdir %s: %w", dir, err)
	}
	return func() {
		if err := os.Chdir(prev); err != nil {
			slog.Error("native: restore working directory failed", "dir", prev, "err", err)
		}
	}, nil
}
