// Package manifest handles bfc.toml build configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/Benricheson101/bfc/backend"
	"github.com/Benricheson101/bfc/compiler"
)

// FileName is the configuration file looked up next to sources.
const FileName = "bfc.toml"

// Manifest represents a bfc.toml configuration.
type Manifest struct {
	Tape    Tape    `toml:"tape"`
	Runtime Runtime `toml:"runtime"`
	Target  Target  `toml:"target"`
	Cache   Cache   `toml:"cache"`

	// Dir is the directory containing the bfc.toml file (set at load time).
	// Empty for the built-in defaults.
	Dir string `toml:"-"`
}

// Tape configures the memory of compiled programs.
type Tape struct {
	Size int64 `toml:"size"`
}

// Runtime names the C functions compiled programs link against.
type Runtime struct {
	Read  string `toml:"read"`
	Write string `toml:"write"`
	Alloc string `toml:"alloc"`
	Free  string `toml:"free"`
}

// Target configures lowering with llc.
type Target struct {
	LLC      string `toml:"llc"`
	Triple   string `toml:"triple"`
	CPU      string `toml:"cpu"`
	Features string `toml:"features"`
	OptLevel *int   `toml:"opt-level"`
	Reloc    string `toml:"reloc"`
}

// Cache configures the build artifact cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no bfc.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Tape.Size == 0 {
		m.Tape.Size = compiler.DefaultTapeSize
	}
	rt := m.CompilerRuntime()
	m.Runtime = Runtime{Read: rt.Read, Write: rt.Write, Alloc: rt.Alloc, Free: rt.Free}
	if m.Target.LLC == "" {
		m.Target.LLC = "llc"
	}
	if m.Target.OptLevel == nil {
		level := 3
		m.Target.OptLevel = &level
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".bfc", "cache.db")
	}
}

// Validate checks values that have no sensible fallback.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Tape.Size <= 0 {
		errs = append(errs, fmt.Errorf("tape.size must be positive, got %d", m.Tape.Size))
	}
	if m.Target.OptLevel != nil && (*m.Target.OptLevel < 0 || *m.Target.OptLevel > 3) {
		errs = append(errs, fmt.Errorf("target.opt-level must be 0..3, got %d", *m.Target.OptLevel))
	}

	// Each symbol is declared once in the generated module.
	seen := make(map[string]string)
	for _, sym := range []struct{ key, name string }{
		{"runtime.read", m.Runtime.Read},
		{"runtime.write", m.Runtime.Write},
		{"runtime.alloc", m.Runtime.Alloc},
		{"runtime.free", m.Runtime.Free},
	} {
		if sym.name == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", sym.key))
			continue
		}
		if other, dup := seen[sym.name]; dup {
			errs = append(errs, fmt.Errorf("%s and %s both name %q", other, sym.key, sym.name))
			continue
		}
		seen[sym.name] = sym.key
	}
	return errors.Join(errs...)
}

// LoadFile parses the configuration at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Load parses the bfc.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// FindAndLoad walks up from startDir to find a bfc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CompilerRuntime returns the runtime symbols with defaults filled in.
func (m *Manifest) CompilerRuntime() compiler.Runtime {
	return compiler.Runtime{
		Read:  m.Runtime.Read,
		Write: m.Runtime.Write,
		Alloc: m.Runtime.Alloc,
		Free:  m.Runtime.Free,
	}.WithDefaults()
}

// CompilerOptions returns the code generation options.
func (m *Manifest) CompilerOptions() compiler.Options {
	return compiler.Options{
		Tape:    compiler.Tape{Size: m.Tape.Size},
		Runtime: m.CompilerRuntime(),
	}
}

// Toolchain returns an uninitialized llc toolchain for the target section.
func (m *Manifest) Toolchain() *backend.Toolchain {
	tc := backend.DefaultToolchain()
	if m.Target.LLC != "" {
		tc.LLC = m.Target.LLC
	}
	if m.Target.OptLevel != nil {
		tc.OptLevel = *m.Target.OptLevel
	}
	tc.Triple = m.Target.Triple
	tc.CPU = m.Target.CPU
	tc.Features = m.Target.Features
	tc.Reloc = m.Target.Reloc
	return tc
}

// CachePath returns the absolute path of the cache database. Relative
// paths are resolved against the manifest directory, or baseDir when the
// manifest came from defaults.
func (m *Manifest) CachePath(baseDir string) string {
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	dir := m.Dir
	if dir == "" {
		dir = baseDir
	}
	return filepath.Join(dir, m.Cache.Path)
}
