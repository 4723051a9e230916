package jsonl

import "os"

// Watermark is the (offset, inode, mtime) triple spec.md §3/§4.3 uses to
// decide whether the log needs a full or incremental reimport.
type Watermark struct {
	Offset int64
	Inode  uint64
	MtimeNs int64
}

// Stat reads the current identity triple of the log file at path. A missing
// file reports a zero Watermark and no error; callers treat that the same as
// an empty log (the store creates the file on init, so this only matters for
// defensive callers).
func Stat(path string) (Watermark, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Watermark{}, nil
	}
	if err != nil {
		return Watermark{}, err
	}
	inode := fileInode(fi)
	return Watermark{Offset: fi.Size(), Inode: inode, MtimeNs: fi.ModTime().UnixNano()}, nil
}
