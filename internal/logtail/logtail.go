package logtail

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxLineBytes = 1024 * 1024

// Tail is the end of a file as of one read.
type Tail struct {
	Lines  []string
	Offset int64 // bytes consumed; a Cursor continues from here
}

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields an empty
// Tail and no error.
func Read(path string, maxLines int) (Tail, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Tail{}, nil
		}
		return Tail{}, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	var all []string
	var ring []string
	if maxLines > 0 {
		ring = make([]string, maxLines)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	count := 0
	idx := 0
	for scanner.Scan() {
		if ring == nil {
			all = append(all, scanner.Text())
			continue
		}
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return Tail{}, fmt.Errorf("read log: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return Tail{}, fmt.Errorf("read log offset: %w", err)
	}

	if ring == nil {
		return Tail{Lines: all, Offset: offset}, nil
	}
	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return Tail{Lines: lines, Offset: offset}, nil
}

// Cursor tracks an incremental read position in one file.
type Cursor struct {
	Path    string
	Offset  int64
	partial []byte
}

// ReadNew returns the complete lines appended since the cursor's offset and
// advances it. A trailing line without a newline is held back until it is
// completed. If the file shrank it is treated as truncated and read from the
// start.
func (c *Cursor) ReadNew() ([]string, error) {
	file, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}
	if info.Size() < c.Offset {
		c.Offset = 0
		c.partial = nil
	}
	if _, err := file.Seek(c.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek log: %w", err)
	}

	chunk, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	c.Offset += int64(len(chunk))

	data := append(c.partial, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(data[:i], []byte{'\r'})))
		data = data[i+1:]
	}
	if len(data) > maxLineBytes {
		lines = append(lines, string(data))
		data = nil
	}
	c.partial = bytes.Clone(data)
	return lines, nil
}
