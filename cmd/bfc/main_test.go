package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Benricheson101/bfc/backend"
	"github.com/Benricheson101/bfc/cache"
	"github.com/Benricheson101/bfc/compiler"
	"github.com/Benricheson101/bfc/manifest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runArgs(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err = run(context.Background(), &out, &errOut, args)
	return out.String(), errOut.String(), err
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %v", err)
	require.Equal(t, code, exitErr.Code)
}

func TestBuildEmitLLVM(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "hello.bf", "++++++++[>++++++++<-]>+.")
	out := filepath.Join(dir, "hello.ll")

	_, _, err := runArgs(t, input, "-emit-llvm", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "define i32 @main()")
	require.Contains(t, string(data), `source_filename = "hello.bf"`)
}

func TestBuildFlagsAfterInput(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "t.bf", "+")
	out := filepath.Join(dir, "t.ll")

	_, _, err := runArgs(t, "-emit-llvm", input, "-target", "aarch64-unknown-linux-gnu", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), `target triple = "aarch64-unknown-linux-gnu"`)
}

func TestBuildUsesManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifest.FileName, "[tape]\nsize = 64\n\n[runtime]\nwrite = \"bf_putc\"\n")
	input := writeFile(t, dir, "m.bf", ".")
	out := filepath.Join(dir, "m.ll")

	_, _, err := runArgs(t, "-emit-llvm", "-o", out, input)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "@calloc(i64 64, i64 1)")
	require.Contains(t, string(data), "@bf_putc(")
}

func TestBuildExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "custom.toml", "[tape]\nsize = 128\n")
	input := writeFile(t, dir, "c.bf", "+")
	out := filepath.Join(dir, "c.ll")

	_, _, err := runArgs(t, "-config", cfg, "-emit-llvm", "-o", out, input)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "@calloc(i64 128, i64 1)")
}

func TestBuildCompileError(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "bad.bf", "+\n+]")

	_, _, err := runArgs(t, "-emit-llvm", "-o", filepath.Join(dir, "bad.ll"), input)
	require.ErrorIs(t, err, compiler.ErrUnmatchedCloseBracket)
	require.True(t, strings.HasPrefix(err.Error(), input+":2:2: "), "error = %q", err)

	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr), "compile errors exit with status 1")
}

func TestBuildUnclosedLoop(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "open.bf", "[+")

	_, _, err := runArgs(t, "-emit-llvm", "-o", filepath.Join(dir, "open.ll"), input)
	require.ErrorIs(t, err, compiler.ErrUnmatchedOpenBracket)
}

func TestBuildMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runArgs(t, "-emit-llvm", "-o", filepath.Join(dir, "x.ll"), filepath.Join(dir, "nope.bf"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildUsageErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "u.bf", "+")

	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"no output", []string{input}},
		{"two inputs", []string{input, input, "-o", "x"}},
		{"both formats", []string{"-S", "-emit-llvm", input, "-o", "x"}},
		{"bad opt", []string{"-O", "7", input, "-o", "x"}},
		{"unknown flag", []string{"-frobnicate", input}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runArgs(t, tt.args...)
			requireExitCode(t, err, 2)
		})
	}
}

func TestHelp(t *testing.T) {
	_, stderr, err := runArgs(t, "-h")
	require.NoError(t, err)
	require.Contains(t, stderr, "bfc check FILE...")
}

func TestJoinOptLevel(t *testing.T) {
	got := joinOptLevel([]string{"-O2", "-O", "1", "-Ox", "-o"})
	require.Equal(t, []string{"-O=2", "-O", "1", "-Ox", "-o"}, got)
}

func TestBuildCacheHit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifest.FileName, "[cache]\nenabled = true\n")
	input := writeFile(t, dir, "c.bf", "+.")
	out := filepath.Join(dir, "c.ll")

	_, _, err := runArgs(t, "-emit-llvm", input, "-o", out)
	require.NoError(t, err)

	m, err := manifest.Load(dir)
	require.NoError(t, err)
	store, err := cache.Open(m.CachePath(dir))
	require.NoError(t, err)

	key := artifactKey("+.", input, m, m.Toolchain(), backend.IR)
	a, err := store.Get(key)
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, string(first), string(a.Output))

	// A second build must come from the cache.
	a.Output = []byte("; cached\n")
	require.NoError(t, store.Put(a))
	require.NoError(t, store.Close())

	_, _, err = runArgs(t, "-emit-llvm", input, "-o", out)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "; cached\n", string(data))

	// Comment-only edits still hit.
	writeFile(t, dir, "c.bf", "bump + then print .\n")
	_, _, err = runArgs(t, "-emit-llvm", input, "-o", out)
	require.NoError(t, err)
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "; cached\n", string(data))

	// -no-cache compiles again.
	_, _, err = runArgs(t, "-emit-llvm", "-no-cache", input, "-o", out)
	require.NoError(t, err)
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, string(first), string(data))
}

func TestBuildOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "prog.b", "+.")
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0o755))

	_, _, err := runArgs(t, "-emit-llvm", input, "-o", outDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "prog"+backend.IR.Ext()))
	require.NoError(t, err)
	require.Contains(t, string(data), "define i32 @main()")
}

func TestBuildReplacesUnreadableCacheEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifest.FileName, "[cache]\nenabled = true\n")
	input := writeFile(t, dir, "r.bf", "+.")
	out := filepath.Join(dir, "r.ll")

	_, _, err := runArgs(t, "-emit-llvm", input, "-o", out)
	require.NoError(t, err)
	want, err := os.ReadFile(out)
	require.NoError(t, err)

	m, err := manifest.Load(dir)
	require.NoError(t, err)
	db, err := sql.Open("sqlite", m.CachePath(dir))
	require.NoError(t, err)
	_, err = db.Exec("UPDATE artifacts SET entry = x'00'")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, os.Remove(out))
	_, _, err = runArgs(t, "-emit-llvm", input, "-o", out)
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, string(want), string(got))

	store, err := cache.Open(m.CachePath(dir))
	require.NoError(t, err)
	defer store.Close()
	a, err := store.Get(artifactKey("+.", input, m, m.Toolchain(), backend.IR))
	require.NoError(t, err)
	require.Equal(t, string(want), string(a.Output))
}

func TestFingerprintCoversLLC(t *testing.T) {
	m := manifest.Default()
	a := m.Toolchain()
	b := m.Toolchain()
	b.LLC = "llc-17"
	require.NotEqual(t, fingerprint(m, a), fingerprint(m, b))
	require.Contains(t, fingerprint(m, b), "llc=llc-17")
}

func TestCachePruneAndClear(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, manifest.FileName, "[cache]\nenabled = true\npath = \"c.db\"\n")
	dbPath := filepath.Join(dir, "c.db")

	stdout, _, err := runArgs(t, "cache", "-config", cfg, "prune")
	require.NoError(t, err)
	require.Equal(t, "no cache at "+dbPath+"\n", stdout)

	store, err := cache.Open(dbPath)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.Put(&cache.Artifact{Key: cache.Key("old"), CreatedAt: now.Add(-72 * time.Hour).Unix()}))
	require.NoError(t, store.Put(&cache.Artifact{Key: cache.Key("new"), CreatedAt: now.Unix()}))
	require.NoError(t, store.Close())

	stdout, _, err = runArgs(t, "cache", "prune", "-older-than", "24h", "-config", cfg)
	require.NoError(t, err)
	require.Equal(t, "removed 1 artifact(s) from "+dbPath+"\n", stdout)

	stdout, _, err = runArgs(t, "cache", "-config", cfg, "clear")
	require.NoError(t, err)
	require.Equal(t, "removed 1 artifact(s) from "+dbPath+"\n", stdout)

	stdout, _, err = runArgs(t, "cache", "-config", cfg, "path")
	require.NoError(t, err)
	require.Equal(t, dbPath+"\n", stdout)
}

func TestCacheUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no action", []string{"cache"}},
		{"unknown action", []string{"cache", "shred"}},
		{"two actions", []string{"cache", "prune", "clear"}},
		{"negative age", []string{"cache", "prune", "-older-than", "-1h"}},
		{"bad duration", []string{"cache", "prune", "-older-than", "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runArgs(t, tt.args...)
			requireExitCode(t, err, 2)
		})
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.bf", "+[->+<]")
	bad := writeFile(t, dir, "bad.bf", "]\n[[")

	stdout, _, err := runArgs(t, "check", good)
	require.NoError(t, err)
	require.Empty(t, stdout)

	stdout, _, err = runArgs(t, "check", good, bad)
	requireExitCode(t, err, 1)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, bad+":1:1: unmatched `]`: no loop is open", lines[0])
	require.True(t, strings.HasPrefix(lines[1], bad+":2:1: "), lines[1])
	require.True(t, strings.HasPrefix(lines[2], bad+":2:2: "), lines[2])
}

func TestCheckUsage(t *testing.T) {
	_, _, err := runArgs(t, "check")
	requireExitCode(t, err, 2)
}

func TestVersion(t *testing.T) {
	stdout, _, err := runArgs(t, "version")
	require.NoError(t, err)
	require.Equal(t, "bfc "+version+"\n", stdout)
}
