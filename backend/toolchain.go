package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/Benricheson101/bfc/compiler"
)

var log = commonlog.GetLogger("bfc.backend")

// Format selects what Emit writes.
type Format int

const (
	Object   Format = iota // relocatable object file
	Assembly               // target assembly text
	IR                     // textual LLVM IR
)

func (f Format) String() string {
	switch f {
	case Object:
		return "obj"
	case Assembly:
		return "asm"
	case IR:
		return "llvm-ir"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext returns the conventional file extension for the format.
func (f Format) Ext() string {
	switch f {
	case Assembly:
		return ".s"
	case IR:
		return ".ll"
	}
	return ".o"
}

// NeedsToolchain reports whether the format is produced by llc.
func (f Format) NeedsToolchain() bool {
	return f != IR
}

// Toolchain configures lowering with llc. Zero values mean the host
// defaults.
type Toolchain struct {
	LLC      string // llc executable name or path
	Triple   string // e.g. x86_64-unknown-linux-gnu
	CPU      string // -mcpu
	Features string // -mattr
	OptLevel int    // 0..3
	Reloc    string // -relocation-model: static, pic, ...

	llcPath string
	version string
}

// DefaultToolchain returns an llc toolchain for the host at -O3.
func DefaultToolchain() *Toolchain {
	return &Toolchain{LLC: "llc", OptLevel: 3}
}

var hostArch = map[string]string{
	"amd64":   "x86_64",
	"arm64":   "aarch64",
	"386":     "i686",
	"riscv64": "riscv64",
	"ppc64le": "powerpc64le",
	"s390x":   "s390x",
}

var hostVendorOS = map[string]string{
	"linux":   "unknown-linux-gnu",
	"darwin":  "apple-darwin",
	"windows": "pc-windows-msvc",
	"freebsd": "unknown-freebsd",
	"netbsd":  "unknown-netbsd",
	"openbsd": "unknown-openbsd",
}

// TripleFor maps a Go GOOS/GOARCH pair to an LLVM target triple.
func TripleFor(goos, goarch string) (string, error) {
	arch, ok := hostArch[goarch]
	if !ok {
		return "", fmt.Errorf("%w: no target machine for architecture %s", compiler.ErrBackendInit, goarch)
	}
	vos, ok := hostVendorOS[goos]
	if !ok {
		return "", fmt.Errorf("%w: no target machine for operating system %s", compiler.ErrBackendInit, goos)
	}
	if goos == "darwin" && goarch == "arm64" {
		arch = "arm64"
	}
	return arch + "-" + vos, nil
}

// HostTriple returns the LLVM target triple of the running host.
func HostTriple() (string, error) {
	return TripleFor(runtime.GOOS, runtime.GOARCH)
}

// NativeCPU tells llc to tune for, and use every feature of, the CPU it
// runs on.
const NativeCPU = "native"

// Init locates llc and fills in the host triple. When compiling for the
// host with no CPU configured, the host CPU is targeted; cross targets stay
// generic. Init must succeed before Emit is asked for an object or
// assembly file.
func (tc *Toolchain) Init() error {
	if tc.OptLevel < 0 || tc.OptLevel > 3 {
		return fmt.Errorf("%w: optimization level %d out of range 0..3", compiler.ErrBackendInit, tc.OptLevel)
	}
	host, hostErr := HostTriple()
	if tc.Triple == "" {
		if hostErr != nil {
			return hostErr
		}
		tc.Triple = host
	}
	if tc.CPU == "" && hostErr == nil && tc.Triple == host {
		tc.CPU = NativeCPU
	}

	name := tc.LLC
	if name == "" {
		name = "llc"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: cannot find %s: %v", compiler.ErrBackendInit, name, err)
	}
	tc.llcPath = path
	tc.version = llcVersion(path)
	log.Debugf("using %s (%s) for %s", path, tc.version, tc.Triple)
	return nil
}

// Version returns the version line reported by llc, or "" before Init.
func (tc *Toolchain) Version() string {
	return tc.version
}

// llcVersion returns the "LLVM version" line of `llc --version`, falling
// back to the first non-empty line.
func llcVersion(path string) string {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		log.Debugf("%s --version: %v", path, err)
		return ""
	}
	first := ""
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "LLVM version") {
			return line
		}
		if first == "" {
			first = line
		}
	}
	return first
}

// Args returns the llc command line that lowers IR read from stdin.
func (tc *Toolchain) Args(format Format, out string) []string {
	args := []string{fmt.Sprintf("-O%d", tc.OptLevel)}
	if tc.Triple != "" {
		args = append(args, "-mtriple="+tc.Triple)
	}
	if tc.CPU != "" {
		args = append(args, "-mcpu="+tc.CPU)
	}
	if tc.Features != "" {
		args = append(args, "-mattr="+tc.Features)
	}
	if tc.Reloc != "" {
		args = append(args, "-relocation-model="+tc.Reloc)
	}
	filetype := "obj"
	if format == Assembly {
		filetype = "asm"
	}
	return append(args, "-filetype="+filetype, "-o", out, "-")
}

// Emit writes the module to path in the given format. Textual IR is
// written directly; object and assembly output are produced by piping the
// IR through llc, which must have been set up with Init.
func (m *Module) Emit(ctx context.Context, tc *Toolchain, format Format, path string) error {
	if tc != nil && tc.Triple != "" {
		m.SetTargetTriple(tc.Triple)
	}
	text := m.IR()

	if !format.NeedsToolchain() {
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return fmt.Errorf("%w: %v", compiler.ErrEmission, err)
		}
		return nil
	}

	if tc == nil || tc.llcPath == "" {
		return fmt.Errorf("%w: toolchain not initialized", compiler.ErrBackendInit)
	}

	args := tc.Args(format, path)
	log.Infof("%s %s", tc.llcPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, tc.llcPath, args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%w: llc: %v", compiler.ErrEmission, err)
		}
		return fmt.Errorf("%w: llc: %v: %s", compiler.ErrEmission, err, msg)
	}
	return nil
}
