package jsonl

import (
	"bufio"
	"bytes"
	"io"
	"os"
)

// ReadTail reads every complete line in path starting at byte offset, for
// incremental reimport (spec.md §4.3). It returns the non-empty lines found,
// without their line terminators, and the number of bytes actually consumed
// (which may be less than what remains in the file if the final line lacks a
// trailing newline — that partial line is left for the next invocation to
// pick up).
//
// Each returned line is a slice of its own (bufio.Reader.ReadBytes allocates
// a fresh one per call), so callers may keep them.
func ReadTail(path string, offset int64) (lines [][]byte, consumed int64, err error) {
	f, err := os.Open(path) // #nosec G304 -- path is the store's own log file
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, 0, err
		}
	}

	reader := bufio.NewReader(f)
	for {
		raw, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Anything in raw is a final line with no newline yet: not consumed.
			return lines, consumed, nil
		}
		if err != nil {
			return lines, consumed, err
		}
		consumed += int64(len(raw))
		line := bytes.TrimRight(raw, "\r\n")
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
}

// ReadAll reads every line in path from the beginning, for full reimport.
func ReadAll(path string) ([][]byte, int64, error) {
	return ReadTail(path, 0)
}
