//go:build darwin || freebsd || linux

package native

import (
	"errors"
	"log/slog"
	"os"
	"runtime"

	"github.com/ebitengine/purego"
)

// registerFunc binds a C function address to a Go func variable.
var registerFunc = purego.RegisterFunc

func libraryNames() []string {
	if runtime.GOOS == "darwin" {
		return []string{"libred_api.dylib", "libred_api.1.dylib", "libred_api.so"}
	}
	return []string{"libred_api.so", "libred_api.so.1", "libred_api.so.1.0"}
}

func dependencyName() string {
	if runtime.GOOS == "darwin" {
		return "libjson-c.dylib"
	}
	return "libjson-c.so"
}

// platformLoader opens libraries with dlopen. The dependency preload is best
// effort: the dynamic linker may still find json-c on its own search path.
type platformLoader struct{}

func (platformLoader) Load(libPath, depPath string) (Module, error) {
	var dep uintptr
	if _, err := os.Stat(depPath); err == nil {
		h, err := purego.Dlopen(depPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			slog.Warn("native: could not preload dependency", "path", depPath, "err", err)
		} else {
			dep = h
			slog.Info("native: dependency preloaded", "path", depPath)
		}
	} else {
		slog.Info("native: dependency not bundled, using linker search path", "path", depPath)
	}

	h, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		if dep != 0 {
			_ = purego.Dlclose(dep)
		}
		return nil, err
	}
	return &dlModule{path: libPath, handle: h, dep: dep}, nil
}

type dlModule struct {
	path   string
	handle uintptr
	dep    uintptr // kept open for the lifetime of handle
}

func (m *dlModule) Path() string { return m.path }

func (m *dlModule) Symbol(name string) (uintptr, error) {
	return purego.Dlsym(m.handle, name)
}

func (m *dlModule) Close() error {
	var errs []error
	if m.handle != 0 {
		errs = append(errs, purego.Dlclose(m.handle))
		m.handle = 0
	}
	if m.dep != 0 {
		errs = append(errs, purego.Dlclose(m.dep))
		m.dep = 0
	}
	return errors.Join(errs...)
}
