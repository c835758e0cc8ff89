// bfc compiles Brainfuck programs to native object files, assembly or
// LLVM IR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/Benricheson101/bfc/backend"
	"github.com/Benricheson101/bfc/compiler"
	"github.com/Benricheson101/bfc/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("bfc")

// ExitError is an error that carries a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		code := 1
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		}
		if err.Error() != "" {
			fmt.Fprintf(os.Stderr, "bfc: %v\n", err)
		}
		stop()
		os.Exit(code)
	}
}

// run dispatches to a subcommand. Errors that are not *ExitError mean exit
// status 1.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "check":
			return runCheck(stdout, stderr, args[1:])
		case "lsp":
			return runLSP(args[1:])
		case "cache":
			return runCache(stdout, stderr, args[1:])
		case "version":
			fmt.Fprintf(stdout, "bfc %s\n", version)
			return nil
		}
	}
	return runBuild(ctx, stderr, args)
}

func runBuild(ctx context.Context, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("bfc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	output := fs.String("o", "", "Output file, or a directory to write INPUT.o/.s/.ll into")
	asm := fs.Bool("S", false, "Emit target assembly instead of an object file")
	emitLLVM := fs.Bool("emit-llvm", false, "Emit textual LLVM IR instead of an object file")
	configPath := fs.String("config", "", "Path to bfc.toml (default: search upward from INPUT)")
	target := fs.String("target", "", "LLVM target triple (default: host)")
	optLevel := fs.Int("O", -1, "Optimization level 0-3 (default: from config, else 3)")
	noCache := fs.Bool("no-cache", false, "Bypass the artifact cache")
	verbose := fs.Bool("v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprint(stderr, `Usage:
  bfc [options] INPUT -o OUTPUT
  bfc check FILE...
  bfc cache [-config FILE] prune [-older-than DUR] | clear | path
  bfc lsp

Compiles a Brainfuck program. By default the output is a native object
file for the host; link it with a C toolchain, e.g. cc prog.o -o prog.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprint(stderr, `
Examples:
  bfc hello.bf -o hello.o              # object file for the host
  bfc -S hello.bf -o hello.s           # assembly
  bfc hello.bf -emit-llvm -o hello.ll  # LLVM IR, no llc needed
  bfc -target aarch64-unknown-linux-gnu -O2 hello.bf -o hello.o
`)
	}

	positional, err := parseInterspersed(fs, joinOptLevel(args))
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}

	switch {
	case len(positional) == 0:
		fs.Usage()
		return &ExitError{Code: 2, Message: "no input file"}
	case len(positional) > 1:
		return &ExitError{Code: 2, Message: fmt.Sprintf("expected one input file, got %d", len(positional))}
	case *output == "":
		return &ExitError{Code: 2, Message: "missing -o OUTPUT"}
	case *asm && *emitLLVM:
		return &ExitError{Code: 2, Message: "-S and -emit-llvm are mutually exclusive"}
	case *optLevel > 3 || *optLevel < -1:
		return &ExitError{Code: 2, Message: fmt.Sprintf("invalid -O%d: must be 0..3", *optLevel)}
	}

	configureLogging(*verbose)

	format := backend.Object
	if *asm {
		format = backend.Assembly
	} else if *emitLLVM {
		format = backend.IR
	}

	input := positional[0]
	out := outputPath(*output, input, format)
	m, err := loadManifest(*configPath, input)
	if err != nil {
		return err
	}
	if *target != "" {
		m.Target.Triple = *target
	}
	if *optLevel >= 0 {
		m.Target.OptLevel = optLevel
	}

	return build(ctx, buildRequest{
		input:    input,
		output:   out,
		format:   format,
		manifest: m,
		useCache: m.Cache.Enabled && !*noCache,
	})
}

func runCheck(stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("bfc check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, "Usage: bfc check FILE...\n\nReports unmatched brackets without compiling.\n")
	}
	files, err := parseInterspersed(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if len(files) == 0 {
		fs.Usage()
		return &ExitError{Code: 2, Message: "no input files"}
	}

	total := 0
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		for _, e := range compiler.Check(string(src)) {
			fmt.Fprintf(stdout, "%s:%v\n", path, e)
			total++
		}
	}
	if total > 0 {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%d error(s)", total)}
	}
	return nil
}

func runLSP(args []string) error {
	if len(args) > 0 {
		return &ExitError{Code: 2, Message: "lsp takes no arguments"}
	}
	// stdout carries the protocol; keep logging on stderr and quiet.
	commonlog.Configure(0, nil)
	return server.NewLSP(version).Run()
}

// parseInterspersed parses flags that may appear before, between or after
// positional arguments and returns the positional arguments in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// joinOptLevel rewrites the compact -O2 spelling to -O=2.
func joinOptLevel(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if len(a) == 3 && strings.HasPrefix(a, "-O") && a[2] >= '0' && a[2] <= '9' {
			a = "-O=" + a[2:]
		}
		out[i] = a
	}
	return out
}

func configureLogging(verbose bool) {
	verbosity := 0
	if verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
}
