// Package script runs command scripts against serial devices: ordered
// steps of commands, each written to the device and optionally answered.
package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultLineEnding is appended to every command unless the script sets
// line_ending.
const DefaultLineEnding = "\r\n"

// ErrInvalidScript is returned for scripts that cannot be run.
var ErrInvalidScript = errors.New("invalid script")

// Script is a named sequence of steps.
type Script struct {
	Name          string `toml:"name"`
	Description   string `toml:"description"`
	LineEnding    string `toml:"line_ending"`
	StopOnFailure bool   `toml:"stop_on_failure"`
	Steps         []Step `toml:"steps"`
}

// Step groups related commands.
type Step struct {
	Description string    `toml:"description"`
	Commands    []Command `toml:"commands"`
}

// Command is one line sent to the device. With ReadAfter the runner waits
// for a terminated response; Expect, when set, must occur in it.
type Command struct {
	Command    string `toml:"command"`
	Parameters string `toml:"parameters"`
	ReadAfter  bool   `toml:"read_after"`
	Expect     string `toml:"expect"`
}

// Payload returns the bytes written for c.
func (c Command) Payload(lineEnding string) []byte {
	return []byte(c.Command + c.Parameters + lineEnding)
}

// LoadFile decodes and validates a TOML script.
func LoadFile(path string) (*Script, error) {
	var s Script
	meta, err := toml.DecodeFile(path, &s)
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	return finish(&s, meta)
}

// Parse decodes and validates a TOML script held in memory.
func Parse(data string) (*Script, error) {
	var s Script
	meta, err := toml.Decode(data, &s)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return finish(&s, meta)
}

func finish(s *Script, meta toml.MetaData) (*Script, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidScript, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("line_ending") {
		s.LineEnding = DefaultLineEnding
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that every step has commands and every command a name.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScript)
	}
	for i, step := range s.Steps {
		if len(step.Commands) == 0 {
			return fmt.Errorf("%w: step %d has no commands", ErrInvalidScript, i+1)
		}
		for j, c := range step.Commands {
			if c.Command == "" {
				return fmt.Errorf("%w: step %d command %d is empty", ErrInvalidScript, i+1, j+1)
			}
			if c.Expect != "" && !c.ReadAfter {
				return fmt.Errorf("%w: step %d command %q expects a response but does not read", ErrInvalidScript, i+1, c.Command)
			}
		}
	}
	return nil
}

// Len returns the number of commands in s.
func (s *Script) Len() int {
	n := 0
	for _, step := range s.Steps {
		n += len(step.Commands)
	}
	return n
}
