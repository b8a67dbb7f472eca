// Package native loads the vendor RED calculation library and binds its
// exported C functions to typed Go callables.
//
// Startup sequence:
//
//	r := native.NewResolver(dir, minSize)
//	mod, err := r.Load()                 // ErrLibraryNotFound | ErrLoadFailed
//	lib, err := native.Bind(mod, specPath) // ErrConfigInit | *SymbolError | ErrNoSystems
//
// Resolver walks the per-OS candidate file names (Linux tries the unversioned
// symlink first, then the versioned names), skipping files at or below the
// minimum plausible size. The platform Loader preloads the json-c dependency
// from the same directory before opening the main library: best effort on
// unix, mandatory with LOAD_WITH_ALTERED_SEARCH_PATH on Windows, where the
// working directory is switched to the library directory for the duration of
// the load.
//
// Bind calls init_system_config before resolving anything else, then resolves
// every remaining symbol; there is no partially bound Library. The returned
// Library is read-only and safe for concurrent use. By default every native
// call is serialized behind one mutex because the vendor does not document
// reentrancy; WithSerializedCalls(false) lifts that.
//
// Functions is the typed function table. Tests and alternative engines can
// build a Library from Go closures with NewLibrary.
package native
