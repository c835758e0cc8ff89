package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Benricheson101/bfc/backend"
	"github.com/Benricheson101/bfc/cache"
	"github.com/Benricheson101/bfc/compiler"
	"github.com/Benricheson101/bfc/compiler/hash"
	"github.com/Benricheson101/bfc/manifest"
)

type buildRequest struct {
	input    string
	output   string
	format   backend.Format
	manifest *manifest.Manifest
	useCache bool
}

// outputPath names the output inside dir when out is a directory:
// INPUT's base name with the format's extension.
func outputPath(out, input string, format backend.Format) string {
	info, err := os.Stat(out)
	if err != nil || !info.IsDir() {
		return out
	}
	base := filepath.Base(input)
	return filepath.Join(out, strings.TrimSuffix(base, filepath.Ext(base))+format.Ext())
}

// loadManifest returns the explicit config file, else the nearest bfc.toml
// above input, else the defaults.
func loadManifest(configPath, input string) (*manifest.Manifest, error) {
	if configPath != "" {
		return manifest.LoadFile(configPath)
	}
	m, err := manifest.FindAndLoad(filepath.Dir(input))
	if err != nil {
		return nil, err
	}
	if m == nil {
		log.Debug("no bfc.toml found, using defaults")
		return manifest.Default(), nil
	}
	log.Debugf("using %s", filepath.Join(m.Dir, manifest.FileName))
	return m, nil
}

func build(ctx context.Context, req buildRequest) error {
	src, err := os.ReadFile(req.input)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", req.input, err)
	}

	m := req.manifest
	tc := m.Toolchain()
	if req.format.NeedsToolchain() {
		if err := tc.Init(); err != nil {
			return err
		}
	}

	var (
		store *cache.Cache
		key   string
	)
	if req.useCache {
		store, err = cache.Open(m.CachePath(filepath.Dir(req.input)))
		if err != nil {
			log.Warningf("artifact cache unavailable: %v", err)
		} else {
			defer store.Close()
			key = artifactKey(string(src), req.input, m, tc, req.format)
			hit, err := restore(store, key, req.output)
			if err != nil {
				return err
			}
			if hit {
				return nil
			}
		}
	}

	mod := backend.New(filepath.Base(req.input), m.CompilerRuntime())
	if err := compiler.Compile(string(src), mod, m.CompilerOptions()); err != nil {
		return fmt.Errorf("%s:%w", req.input, err)
	}
	if err := mod.Emit(ctx, tc, req.format, req.output); err != nil {
		return err
	}
	log.Infof("wrote %s (%s)", req.output, req.format)

	if store != nil {
		out, err := os.ReadFile(req.output)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", req.output, err)
		}
		err = store.Put(&cache.Artifact{
			Key:    key,
			Format: req.format.String(),
			Triple: tc.Triple,
			Output: out,
		})
		if err != nil {
			log.Warningf("caching %s: %v", req.output, err)
		}
	}
	return nil
}

// restore writes a cached artifact to path and reports whether there was one.
func restore(store *cache.Cache, key, path string) (bool, error) {
	a, err := store.Get(key)
	if errors.Is(err, cache.ErrNotFound) {
		log.Debugf("cache miss %s", key)
		return false, nil
	}
	if err != nil {
		// Unreadable entry: drop it so the rebuilt artifact replaces it.
		log.Warningf("reading artifact cache: %v", err)
		if err := store.Delete(key); err != nil {
			log.Warningf("%v", err)
		}
		return false, nil
	}
	if err := os.WriteFile(path, a.Output, 0o644); err != nil {
		return false, fmt.Errorf("%w: %v", compiler.ErrEmission, err)
	}
	log.Infof("wrote %s from cache", path)
	return true, nil
}

// artifactKey ignores comments in src; the file name stays in the key
// since it is recorded in the module.
func artifactKey(src, input string, m *manifest.Manifest, tc *backend.Toolchain, format backend.Format) string {
	return cache.Key(hash.HexHash(src), filepath.Base(input), fingerprint(m, tc), format.String())
}

// fingerprint covers every setting that changes the emitted bytes.
func fingerprint(m *manifest.Manifest, tc *backend.Toolchain) string {
	rt := m.CompilerRuntime()
	return strings.Join([]string{
		fmt.Sprintf("tape=%d", m.Tape.Size),
		"runtime=" + strings.Join([]string{rt.Read, rt.Write, rt.Alloc, rt.Free}, ","),
		"triple=" + tc.Triple,
		"cpu=" + tc.CPU,
		"features=" + tc.Features,
		fmt.Sprintf("opt=%d", tc.OptLevel),
		"reloc=" + tc.Reloc,
		"llc=" + tc.LLC,
		"llc-version=" + tc.Version(),
		"version=" + version,
	}, ";")
}
