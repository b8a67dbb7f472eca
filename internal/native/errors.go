package native

import (
	"errors"
	"fmt"
)

// Startup errors. All of them are fatal: a missing or broken library does not
// heal on retry.
var (
	// ErrLibraryNotFound means no candidate file passed the existence and size checks.
	ErrLibraryNotFound = errors.New("native: no usable library found")

	// ErrLoadFailed means the platform loader rejected the main library.
	ErrLoadFailed = errors.New("native: library load failed")

	// ErrConfigInit means init_system_config reported failure; the library
	// state is undefined and nothing else may be called.
	ErrConfigInit = errors.New("native: system configuration init failed")

	// ErrNoSystems means the library loaded but reported zero supported systems.
	ErrNoSystems = errors.New("native: library reports no supported systems")
)

// SymbolError reports an exported function that could not be resolved.
type SymbolError struct {
	Name string
	Err  error
}

func (e *SymbolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("native: symbol %s missing: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("native: symbol %s missing", e.Name)
}

func (e *SymbolError) Unwrap() error { return e.Err }
