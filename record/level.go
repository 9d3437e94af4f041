// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package record

import (
	"fmt"
	"strings"
)

// Level is the severity of a Record. Levels are totally ordered by their
// integer value, Debug being the least severe.
type Level int

const (
	Debug Level = iota
	Info
	Notice
	Warn
	Error
	Critical
)

var levelNames = [...]string{
	Debug:    "debug",
	Info:     "info",
	Notice:   "notice",
	Warn:     "warn",
	Error:    "error",
	Critical: "critical",
}

// UnknownLevelError is returned when parsing a level name fails.
type UnknownLevelError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e UnknownLevelError) Error() string {
	return fmt.Sprintf("unknown log level: %q", e.Name)
}

// ParseLevel parses a level name. Matching is case insensitive and
// accepts the common aliases "warning", "err", "fatal" and "emergency".
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "warning":
		return Warn, nil
	case "err":
		return Error, nil
	case "fatal", "emergency", "critical":
		return Critical, nil
	}
	for lvl, n := range levelNames {
		if n == name {
			return Level(lvl), nil
		}
	}
	return Info, UnknownLevelError{Name: s}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= Debug && l <= Critical
}

// String implements the [fmt.Stringer] interface.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// MarshalText implements the [encoding.TextMarshaler] interface.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid log level: %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (l *Level) UnmarshalText(b []byte) error {
	lvl, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}
