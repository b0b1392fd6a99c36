// Package verify establishes whether a local file matches its manifest
// identity: a cheap size check first, then a streaming MD5 digest.
package verify

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultChunkSize is the read buffer used when none is configured.
const DefaultChunkSize = 8192

// Error wraps an I/O failure hit while verifying a file. A missing file is
// never an Error; only unrelated I/O problems surface through it.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("verification of %s failed: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Verifier checks local files against their expected size and digest.
type Verifier struct {
	chunkSize int
}

func New(chunkSize int) *Verifier {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Verifier{chunkSize: chunkSize}
}

// Verified reports whether the file at path matches the expected digest and
// size. An absent file or a size mismatch short-circuits to false without
// reading content. The digest comparison is case-insensitive.
func (v *Verifier) Verified(path, expectedMD5 string, expectedSize int64) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &Error{Path: path, Err: err}
	}

	if info.Size() != expectedSize {
		return false, nil
	}

	actual, err := v.digest(path)
	if err != nil {
		return false, &Error{Path: path, Err: err}
	}

	return strings.EqualFold(actual, expectedMD5), nil
}

// digest streams the file through MD5 in fixed-size chunks.
func (v *Verifier) digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, v.chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
