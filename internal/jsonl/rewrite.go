package jsonl

import (
	"os"
	"path/filepath"
)

// Rewrite writes keep — already-filtered, already-terminated raw lines, in
// order — to a temp file beside path and atomically renames it over path,
// implementing the "rewrites the log to a temp file... atomically renames"
// step of spec.md §4.6's clean command. Each element of keep must already
// end in '\n'.
func Rewrite(path string, keep [][]byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-rewrite-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	for _, line := range keep {
		if _, err := tmp.Write(line); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// AppendBatch serializes and appends each record in recs, in order, to path
// through AppendLine, so each record gets its own open and fsync — used by
// migrate (spec.md §4.6) to emit issues, then deps, then comments as one
// batch under the caller's lock. It returns the watermark after the last
// successful append.
func AppendBatch(path string, recs []any) (Watermark, error) {
	var wm Watermark
	for _, rec := range recs {
		var err error
		wm, err = AppendLine(path, rec)
		if err != nil {
			return wm, err
		}
	}
	return wm, nil
}
