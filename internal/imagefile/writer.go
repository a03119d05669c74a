// Package imagefile writes generated images to disk as image_<timestamp>_<index>.png.
package imagefile

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the yyyyMMddHHmmss stamp embedded in file names.
const TimestampLayout = "20060102150405"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer creates batches of image files in Dir.
type Writer struct {
	Dir string
	// Now returns the batch timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewWriter returns a Writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Now: time.Now}
}

// NewBatch captures one timestamp shared by every file written through the batch.
func (w *Writer) NewBatch() *Batch {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return &Batch{
		dir:       w.Dir,
		timestamp: now().Format(TimestampLayout),
	}
}

// Batch numbers files 0, 1, 2... under one timestamp. Not safe for concurrent use.
type Batch struct {
	dir       string
	timestamp string
	next      int
}

// Write stores data as the next file of the batch and returns its path.
// The index advances only when the file was written.
func (b *Batch) Write(data []byte) (string, error) {
	if err := os.MkdirAll(b.dir, dirPerm); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", b.dir, err)
	}

	path := filepath.Join(b.dir, FileName(b.timestamp, b.next))
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	b.next++
	return path, nil
}

// WriteBase64 decodes a standard base64 payload and writes it as the next file.
func (b *Batch) WriteBase64(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding base64 image: %w", err)
	}
	return b.Write(data)
}

// FileName formats image_<timestamp>_<index>.png.
func FileName(timestamp string, index int) string {
	return fmt.Sprintf("image_%s_%d.png", timestamp, index)
}
