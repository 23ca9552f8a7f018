// Package keymap maps editor key chords to history commands.
package keymap

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Command is what a chord asks the editing session to do.
type Command string

// Commands bound by default.
const (
	CommandUndo Command = "undo"
	CommandRedo Command = "redo"
)

// ErrInvalidChord is returned for chords that cannot be parsed.
var ErrInvalidChord = errors.New("invalid key chord")

// Chord is a single key press with its modifiers. Cmd is the platform
// command key; it is treated like Ctrl so one binding covers both.
type Chord struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Key   string
}

// ParseChord parses strings such as "ctrl+z", "Cmd+Shift+Z" or "meta+y".
func ParseChord(s string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")

	var c Chord

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return Chord{}, fmt.Errorf("%w: %q", ErrInvalidChord, s)
		}

		if i == len(parts)-1 {
			c.Key = part

			break
		}

		switch part {
		case "ctrl", "control", "cmd", "meta", "super":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		default:
			return Chord{}, fmt.Errorf("%w: unknown modifier %q in %q", ErrInvalidChord, part, s)
		}
	}

	return c, nil
}

// String renders the chord in canonical form.
func (c Chord) String() string {
	var parts []string

	if c.Ctrl {
		parts = append(parts, "ctrl")
	}

	if c.Alt {
		parts = append(parts, "alt")
	}

	if c.Shift {
		parts = append(parts, "shift")
	}

	return strings.Join(append(parts, c.Key), "+")
}

// Binding ties a chord to a command.
type Binding struct {
	Key     string
	Command Command
}

// DefaultBindings returns the editor's history bindings.
func DefaultBindings() []Binding {
	return []Binding{
		{Key: "ctrl+z", Command: CommandUndo},
		{Key: "ctrl+y", Command: CommandRedo},
		{Key: "ctrl+shift+z", Command: CommandRedo},
	}
}

// Keymap resolves chords to commands.
type Keymap struct {
	bindings map[Chord]Command
}

// New builds a keymap from bindings. Later bindings for the same chord win.
func New(bindings []Binding) (*Keymap, error) {
	k := &Keymap{bindings: make(map[Chord]Command, len(bindings))}

	for _, b := range bindings {
		c, err := ParseChord(b.Key)
		if err != nil {
			return nil, err
		}

		k.bindings[c] = b.Command
	}

	return k, nil
}

// Default returns a keymap with DefaultBindings.
func Default() *Keymap {
	k, err := New(DefaultBindings())
	if err != nil {
		panic(err)
	}

	return k
}

// Lookup returns the command bound to chord.
func (k *Keymap) Lookup(chord string) (Command, bool) {
	c, err := ParseChord(chord)
	if err != nil {
		return "", false
	}

	cmd, ok := k.bindings[c]

	return cmd, ok
}

// Keys returns the canonical chords bound to cmd, sorted.
func (k *Keymap) Keys(cmd Command) []string {
	var keys []string

	for c, bound := range k.bindings {
		if bound == cmd {
			keys = append(keys, c.String())
		}
	}

	slices.Sort(keys)

	return keys
}
