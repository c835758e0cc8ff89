package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Benricheson101/bfc/cache"
)

const defaultMaxAge = 30 * 24 * time.Hour

// runCache maintains the artifact cache of the nearest bfc.toml (or the
// -config file).
func runCache(stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("bfc cache", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to bfc.toml (default: search upward from the current directory)")
	olderThan := fs.Duration("older-than", defaultMaxAge, "prune: remove artifacts created longer ago than this")

	fs.Usage = func() {
		fmt.Fprint(stderr, `Usage: bfc cache [options] ACTION

Actions:
  prune   remove artifacts older than -older-than
  clear   remove every artifact
  path    print the cache database location

Options:
`)
		fs.PrintDefaults()
	}

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if len(positional) != 1 {
		fs.Usage()
		return &ExitError{Code: 2, Message: "expected one cache action"}
	}
	action := positional[0]
	switch action {
	case "prune", "clear", "path":
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown cache action %q", action)}
	}
	if *olderThan < 0 {
		return &ExitError{Code: 2, Message: "-older-than must not be negative"}
	}

	m, err := loadManifest(*configPath, ".")
	if err != nil {
		return err
	}
	path := m.CachePath(".")

	if action == "path" {
		fmt.Fprintln(stdout, path)
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stdout, "no cache at %s\n", path)
		return nil
	}

	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	var n int64
	if action == "clear" {
		n, err = store.Clear()
	} else {
		n, err = store.Prune(time.Now().Add(-*olderThan))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "removed %d artifact(s) from %s\n", n, store.Path())
	return nil
}
