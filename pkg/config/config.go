// Package config parses the pipeline's single ini-style configuration file
// (spec section 6): "Memory = <gigabytes>" is parsed into MemoryGB (which
// no stage reads), "Threads = <count>" sizes the extractor worker pool. No
// ini/toml/yaml parsing library appears anywhere in the retrieved example
// corpus, so this is a small hand-rolled line parser — see DESIGN.md.
package config

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
)

// Config holds the pipeline's tunable resource bounds.
type Config struct {
	// MemoryGB is the "Memory" setting in gigabytes. It is parsed and
	// stored only: no pipeline stage reads it, and the external sort's
	// in-memory run size comes from assembly.Options.RunSize instead.
	MemoryGB int

	// Threads sizes the extractor worker pool. Zero or negative values
	// are resolved to runtime.NumCPU() by resolve.
	Threads int
}

// Default returns a Config with Threads resolved to hardware concurrency
// and no memory bound.
func Default() Config {
	return Config{MemoryGB: 0, Threads: runtime.NumCPU()}
}

// Parse reads an ini-style config file of the form:
//
//	Memory = 8
//	Threads = 4
//
// Blank lines and lines starting with ';' or '#' are ignored. Unknown
// keys are ignored (forward compatibility — the file format has no
// version marker).
func Parse(r io.Reader) (Config, error) {
	cfg := Default()

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		// Strip an optional [section] header; this implementation is
		// flat, so sections are accepted but ignored.
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, fmt.Errorf("config line %d: missing '=': %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch strings.ToLower(key) {
		case "memory":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Config{}, fmt.Errorf("config line %d: Memory must be an integer: %w", lineNo, err)
			}
			cfg.MemoryGB = n
		case "threads":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Config{}, fmt.Errorf("config line %d: Threads must be an integer: %w", lineNo, err)
			}
			cfg.Threads = n
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.resolve()
	return cfg, nil
}

// resolve fills in zero-valued fields with their runtime defaults.
func (c *Config) resolve() {
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
}
