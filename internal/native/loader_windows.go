//go:build windows

package native

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

// registerFunc binds a C function address to a Go func variable.
var registerFunc = purego.RegisterFunc

func libraryNames() []string { return []string{"red_api.dll"} }

func dependencyName() string { return "libjson-c.dll" }

// platformLoader opens DLLs with LOAD_WITH_ALTERED_SEARCH_PATH from inside the
// library directory so red_api.dll resolves libjson-c.dll next to itself.
// The json-c handle must outlive red_api.dll, so a failure to load it is fatal.
type platformLoader struct{}

func (platformLoader) Load(libPath, depPath string) (Module, error) {
	restore, err := enterDir(filepath.Dir(libPath))
	if err != nil {
		return nil, err
	}
	defer restore()

	dep, err := windows.LoadLibraryEx(depPath, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return nil, fmt.Errorf("load dependency %s: %w", depPath, err)
	}

	h, err := windows.LoadLibraryEx(libPath, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		_ = windows.FreeLibrary(dep)
		return nil, err
	}
	return &dllModule{path: libPath, handle: h, dep: dep}, nil
}

type dllModule struct {
	path   string
	handle windows.Handle
	dep    windows.Handle
}

func (m *dllModule) Path() string { return m.path }

func (m *dllModule) Symbol(name string) (uintptr, error) {
	return windows.GetProcAddress(m.handle, name)
}

func (m *dllModule) Close() error {
	var errs []error
	if m.handle != 0 {
		errs = append(errs, windows.FreeLibrary(m.handle))
		m.handle = 0
	}
	if m.dep != 0 {
		errs = append(errs, windows.FreeLibrary(m.dep))
		m.dep = 0
	}
	return errors.Join(errs...)
}
