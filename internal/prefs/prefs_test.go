package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
	if got := fmt.Sprint(p.Columns); got != "[time level source message]" {
		t.Fatalf("Columns = %s, want default columns", got)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	prefsDir := filepath.Join(home, ".config", "logdeck")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	prefsFile := filepath.Join(prefsDir, "prefs.toml")
	body := "theme = \"Slate\"\ncolumns = [\"mdc\", \"Level\", \"bogus\", \"level\"]\n"
	if err := os.WriteFile(prefsFile, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != "Slate" {
		t.Fatalf("Theme = %q, want %q", p.Theme, "Slate")
	}
	if got := fmt.Sprint(p.Columns); got != "[level message mdc]" {
		t.Fatalf("Columns = %s, want [level message mdc]", got)
	}
}

func TestSave_CreatesFileAndDirs(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "subdir", "prefs.toml")

	p := Prefs{Theme: "Slate", Columns: []string{ColumnMessage, ColumnThread}}
	if err := Save(prefsFile, p); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(prefsFile)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Theme != "Slate" {
		t.Fatalf("Theme = %q, want %q", loaded.Theme, "Slate")
	}
	if got := fmt.Sprint(loaded.Columns); got != "[thread message]" {
		t.Fatalf("Columns = %s, want [thread message]", got)
	}
}

func TestLoad_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "empty theme", body: "theme = \"\"\n"},
		{name: "invalid toml", body: "not valid toml {{{\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
			if err := os.WriteFile(prefsFile, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			p, err := Load(prefsFile)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), "parse prefs") {
				t.Fatalf("Load error = %v, want parse prefs error", err)
			}
			if p.Theme != defaultTheme {
				t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
			}
		})
	}
}

func TestToggle(t *testing.T) {
	p := Default()

	p = p.Toggle(ColumnThread)
	if !p.Visible(ColumnThread) {
		t.Fatal("thread column not shown after toggle")
	}
	if got := fmt.Sprint(p.Columns); got != "[time level source thread message]" {
		t.Fatalf("Columns = %s, want display order kept", got)
	}

	p = p.Toggle(ColumnTime)
	if p.Visible(ColumnTime) {
		t.Fatal("time column still shown after toggle")
	}

	p = p.Toggle(ColumnMessage)
	if !p.Visible(ColumnMessage) {
		t.Fatal("message column must stay visible")
	}

	before := fmt.Sprint(p.Columns)
	p = p.Toggle("nope")
	if fmt.Sprint(p.Columns) != before {
		t.Fatalf("unknown column changed columns to %v", p.Columns)
	}
}
