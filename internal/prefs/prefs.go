// Package prefs handles logdeck display preferences.
// Preferences are stored in ~/.config/logdeck/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Column names accepted in Prefs.Columns, in display order.
const (
	ColumnTime    = "time"
	ColumnLevel   = "level"
	ColumnSource  = "source"
	ColumnThread  = "thread"
	ColumnMessage = "message"
	ColumnMDC     = "mdc"
)

// AllColumns lists every known column in display order.
var AllColumns = []string{ColumnTime, ColumnLevel, ColumnSource, ColumnThread, ColumnMessage, ColumnMDC}

// Prefs holds user display preferences.
type Prefs struct {
	Theme   string   `toml:"theme"`
	Columns []string `toml:"columns"`
}

const (
	defaultPrefsPath = "~/.config/logdeck/prefs.toml"
	defaultTheme     = "Dracula"
)

// Default returns the built-in preferences.
func Default() Prefs {
	return Prefs{
		Theme:   defaultTheme,
		Columns: []string{ColumnTime, ColumnLevel, ColumnSource, ColumnMessage},
	}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path. A missing file yields the
// defaults and no error. An unreadable or malformed file also yields the
// defaults, along with the error so the caller can report it.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Default(), err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("open prefs: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Default(), fmt.Errorf("read prefs: %w", err)
	}

	var p Prefs
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return Default(), fmt.Errorf("parse prefs %s: %w", resolved, err)
	}
	return p.normalize(), nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p.normalize())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// Visible reports whether column is shown.
func (p Prefs) Visible(column string) bool {
	return slices.Contains(p.Columns, column)
}

// Toggle shows column if hidden and hides it if shown. The message column
// always stays visible.
func (p Prefs) Toggle(column string) Prefs {
	if column == ColumnMessage || !slices.Contains(AllColumns, column) {
		return p
	}
	cols := slices.Clone(p.Columns)
	if i := slices.Index(cols, column); i >= 0 {
		cols = slices.Delete(cols, i, i+1)
	} else {
		cols = append(cols, column)
	}
	p.Columns = cols
	return p.normalize()
}

// normalize drops unknown and duplicate columns, orders the rest by
// AllColumns and guarantees the message column.
func (p Prefs) normalize() Prefs {
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	if len(p.Columns) == 0 {
		p.Columns = Default().Columns
		return p
	}
	want := make(map[string]bool, len(p.Columns))
	for _, c := range p.Columns {
		want[strings.ToLower(strings.TrimSpace(c))] = true
	}
	want[ColumnMessage] = true
	cols := make([]string, 0, len(want))
	for _, c := range AllColumns {
		if want[c] {
			cols = append(cols, c)
		}
	}
	p.Columns = cols
	return p
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
