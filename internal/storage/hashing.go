package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// HashingWriter forwards every byte to an underlying sink while feeding a
// SHA-256 digest and a running byte counter. The digest and counter cover
// only bytes the sink accepted, so on a short write they reflect what
// actually reached storage.
type HashingWriter struct {
	sink    io.Writer
	digest  hash.Hash
	written int64
}

// NewHashingWriter wraps sink.
func NewHashingWriter(sink io.Writer) *HashingWriter {
	return &HashingWriter{
		sink:   sink,
		digest: sha256.New(),
	}
}

func (w *HashingWriter) Write(p []byte) (int, error) {
	n, err := w.sink.Write(p)
	if n > 0 {
		// hash.Hash.Write never returns an error
		w.digest.Write(p[:n])
		w.written += int64(n)
	}
	return n, err
}

// Sum returns the hex-encoded SHA-256 of all bytes written so far.
func (w *HashingWriter) Sum() string {
	return hex.EncodeToString(w.digest.Sum(nil))
}

// BytesWritten returns how many bytes reached the sink.
func (w *HashingWriter) BytesWritten() int64 {
	return w.written
}
