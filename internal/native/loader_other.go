//go:build !darwin && !freebsd && !linux && !windows

package native

import (
	"fmt"
	"runtime"
)

var registerFunc = func(any, uintptr) {
	panic("native: calling C functions is not supported on " + runtime.GOOS)
}

func libraryNames() []string { return []string{"libred_api.so"} }

func dependencyName() string { return "libjson-c.so" }

type platformLoader struct{}

func (platformLoader) Load(libPath, _ string) (Module, error) {
	return nil, fmt.Errorf("dynamic loading is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
