package nativehost

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
)

// Library is a loaded runtime host shim.
type Library struct {
	path    string
	entries EntryPoints
	handle  uintptr
	mu      sync.Mutex
	closed  bool
}

// Open loads the shared library at path and resolves every clr_* entry
// point it exports. Missing required entry points are reported by Table,
// not by Open.
func Open(path string) (*Library, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	handle, err := openLibrary(absPath)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindNotFound, err, fmt.Sprintf("load %s", absPath))
	}

	l := &Library{path: absPath, handle: handle}
	for _, s := range symbols {
		addr, err := lookupSymbol(handle, s.name)
		if err != nil || addr == 0 {
			Logger().Debug("entry point not exported",
				zap.String("library", absPath),
				zap.String("symbol", s.name),
				zap.Bool("required", s.required))
			continue
		}
		*s.addr(&l.entries) = addr
	}

	Logger().Debug("runtime host library loaded",
		zap.String("library", absPath),
		zap.Strings("missing", l.entries.Missing()))
	return l, nil
}

// Path returns the absolute path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// EntryPoints returns the resolved addresses.
func (l *Library) EntryPoints() EntryPoints {
	return l.entries
}

// Table binds the resolved entry points with strings crossing in cs.
func (l *Library) Table(cs interop.CharSet) (*functable.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errors.Closed(errors.PhaseHost, "library "+l.path)
	}
	return Bind(l.entries, cs)
}

// Close unloads the library. Tables bound from it must not be used
// afterwards.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := closeLibrary(l.handle); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindClosed, err, "unload "+l.path)
	}
	return nil
}
