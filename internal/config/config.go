// Package config reads the client's key=value configuration file (§6)
// and resolves its default location the way the teacher's config
// package resolves its own.
//
// A hand-rolled scanner is used deliberately rather than a structured
// format library: the file's grammar is two tokens and a comment
// marker, fixed by §6, and not meant to grow — pulling in a YAML/JSON
// library for it would add a dependency with no syntax left to use.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// File holds the recognized configuration keys (§6).
type File struct {
	Kermit        string // legacy Kermit helper path, ignored by the embedded engine
	SendZMODEM    string // local ZMODEM sender binary; XMODEM/YMODEM sends always use sx/sb
	ReceiveZMODEM string // local ZMODEM receiver binary; XMODEM/YMODEM receives always use rx/rb
	Log           bool   // enable the hex+ASCII session transcript
	LogFile       string // transcript path
}

// Dir returns the otelnet configuration directory, respecting
// XDG_CONFIG_HOME on Unix and APPDATA on Windows.
func Dir() string {
	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "otelnet")
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "otelnet.conf")
}

// Load parses path. A missing file is not an error — it returns the
// zero File, since every key is optional.
func Load(path string) (File, error) {
	var f File
	raw, err := os.Open(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer raw.Close()

	scanner := bufio.NewScanner(raw)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return f, fmt.Errorf("config: %s:%d: missing '=' in %q", path, lineNo, line)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "KERMIT":
			f.Kermit = value
		case "SEND_ZMODEM":
			f.SendZMODEM = value
		case "RECEIVE_ZMODEM":
			f.ReceiveZMODEM = value
		case "LOG":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return f, fmt.Errorf("config: %s:%d: LOG must be a boolean, got %q", path, lineNo, value)
			}
			f.Log = b
		case "LOG_FILE":
			f.LogFile = value
		default:
			// Unrecognized keys are ignored, not fatal: a forward-compatible
			// config file from a newer client must still load here.
		}
	}
	if err := scanner.Err(); err != nil {
		return f, fmt.Errorf("config: read %s: %w", path, err)
	}
	return f, nil
}
