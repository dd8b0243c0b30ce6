// Package pdf extracts per-page text from PDF documents. The primary path
// binds the native PDFium library at runtime via purego; when PDFium cannot
// be bound or fails on a document, a pure-Go structural parser walks the page
// content streams instead.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

var (
	initOnce  sync.Once
	initErr   error
	libHandle uintptr

	// boundFrom records where PDFium was found, for diagnostics.
	boundFrom string
)

// Initialize loads the PDFium shared library. It is idempotent: only the
// first call does work, later callers observe the cached outcome.
func Initialize() error {
	initOnce.Do(func() {
		initErr = loadPDFiumLibrary()
	})
	return initErr
}

// PrimaryAvailable reports whether the native extractor can be used. It
// attempts the (once-only) binding as a side effect.
func PrimaryAvailable() bool {
	return Initialize() == nil
}

// BoundFrom returns the path PDFium was loaded from, or "" if unbound.
func BoundFrom() string {
	if libHandle == 0 {
		return ""
	}
	return boundFrom
}

func loadPDFiumLibrary() error {
	libPath := findPDFiumLibrary()
	if libPath == "" {
		return fmt.Errorf("pdfium library not found (set PDFIUM_PATH to override)")
	}

	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("load pdfium from %s: %w", libPath, err)
	}
	libHandle = handle
	boundFrom = libPath

	registerFunctions()
	fpdfInitLibrary()
	return nil
}

// findPDFiumLibrary probes for a bundled copy near the executable first,
// then the explicit env override, then common system locations.
func findPDFiumLibrary() string {
	for _, path := range candidatePaths() {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func candidatePaths() []string {
	name := libraryName()
	var paths []string

	if env := os.Getenv("PDFIUM_PATH"); env != "" {
		if info, err := os.Stat(env); err == nil && info.IsDir() {
			paths = append(paths, filepath.Join(env, name))
		} else {
			paths = append(paths, env)
		}
	}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(dir, name),
			filepath.Join(dir, "resources", name),
			filepath.Join(dir, "resources", "pdfium", name),
		)
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(cwd, "resources", name),
			filepath.Join(cwd, "resources", "pdfium", name),
		)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".pdfium", name))
	}

	paths = append(paths,
		"/usr/local/lib/"+name,
		"/usr/lib/"+name,
	)
	if runtime.GOOS == "darwin" {
		paths = append(paths, "/opt/homebrew/lib/"+name)
	}
	if runtime.GOOS == "linux" {
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu/"+name,
			"/usr/lib/aarch64-linux-gnu/"+name,
		)
	}
	return paths
}

func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libpdfium.dylib"
	case "windows":
		return "pdfium.dll"
	default:
		return "libpdfium.so"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
