package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got.Lines, tt.expected) {
				t.Errorf("Read() = %v, want %v", got.Lines, tt.expected)
			}
			if got.Offset != int64(content.Len()) {
				t.Errorf("Read() offset = %d, want %d", got.Offset, content.Len())
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.Lines) != 0 || got.Offset != 0 {
		t.Fatalf("Read() = %+v, want empty tail", got)
	}
}

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(s); err != nil {
		t.Fatal(err)
	}
}

func TestCursor_ReadNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tail, err := Read(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	cur := &Cursor{Path: path, Offset: tail.Offset}

	steps := []struct {
		name   string
		write  string
		expect []string
	}{
		{"nothing new", "", nil},
		{"one line", "first\n", []string{"first"}},
		{"partial held back", "sec", nil},
		{"partial completed", "ond\r\nthird\n", []string{"second", "third"}},
	}
	for _, s := range steps {
		if s.write != "" {
			appendTo(t, path, s.write)
		}
		got, err := cur.ReadNew()
		if err != nil {
			t.Fatalf("%s: ReadNew() error = %v", s.name, err)
		}
		if !reflect.DeepEqual(got, s.expect) {
			t.Fatalf("%s: ReadNew() = %q, want %q", s.name, got, s.expect)
		}
	}
}

func TestCursor_Truncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("aaaaaaaaaa\nbbbbbbbbbb\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cur := &Cursor{Path: path}
	if _, err := cur.ReadNew(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("new\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := cur.ReadNew()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"new"}) {
		t.Fatalf("ReadNew() after truncation = %q, want [new]", got)
	}
}
