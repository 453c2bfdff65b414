package internal

import (
	"io"
	"os"
	"regexp"
)

const (
	SnapshotHashLength = 32

	printableMin = byte(0x20)
	printableMax = byte(0x7e)
)

var (
	hashToken = regexp.MustCompile(`[0-9a-fA-F]{32}`)
	hashExact = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
)

// IsSnapshotHash reports whether s is exactly 32 hex characters.
func IsSnapshotHash(s string) bool {
	return hashExact.MatchString(s)
}

// ExtractReader returns the first 32-character hex token found inside a
// printable-ASCII run of r. A run is only examined when a non-printable
// byte terminates it; a run still open at end of stream is never examined.
// Read failures yield ("", false), the same as a stream with no token.
func ExtractReader(r io.Reader) (string, bool) {
	run := make([]byte, 0, 4096)
	buf := make([]byte, 32*1024)

	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b >= printableMin && b <= printableMax {
				run = append(run, b)
				continue
			}
			if len(run) >= SnapshotHashLength {
				if tok := hashToken.Find(run); tok != nil {
					return string(tok), true
				}
			}
			run = run[:0]
		}
		if err != nil {
			return "", false
		}
	}
}

// ExtractFile scans the file at path. A missing or unreadable file yields
// ("", false).
func ExtractFile(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	return ExtractReader(f)
}
