package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/privd/privd/internal/apperr"
)

// writeTemp writes data to "<name>~", streaming it through a hashing
// writer, and returns the hex-encoded sha256 digest (§4.6 step 1).
func (l *Layer) writeTemp(name string, data []byte) (string, error) {
	path := l.path(name + tempSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeCannotCreateFile, name, err)
	}

	h := sha256.New()
	if _, err := io.MultiWriter(f, h).Write(data); err != nil {
		f.Close()
		return "", apperr.Wrap(apperr.CodeCannotCreateFile, name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", apperr.Wrap(apperr.CodeCannotCreateFile, name, err)
	}
	if err := f.Close(); err != nil {
		return "", apperr.Wrap(apperr.CodeCannotCreateFile, name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// readChecksums parses "checksum<suffix>" into name -> digest. A missing
// checksum file (fresh database) is not an error: it returns a nil map.
func (l *Layer) readChecksums(suffix string) (map[string]string, error) {
	data, err := os.ReadFile(l.path(checksumFileName + suffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.CodeFileNotFound, checksumFileName, err)
	}
	out := make(map[string]string)
	for i, line := range splitLines(string(data)) {
		parts := strings.SplitN(line, ";", 3)
		if len(parts) != 3 {
			return nil, apperr.New(apperr.CodeDatabaseCorrupted, fmt.Sprintf("%s:%d: malformed checksum line: %q", checksumFileName, i+1, line))
		}
		out[parts[0]] = parts[2]
	}
	return out, nil
}

// verifyChecksums recomputes the digest of every file named in checksums
// (each suffixed by suffix) and compares it against the recorded value.
func (l *Layer) verifyChecksums(checksums map[string]string, suffix string) error {
	for name, want := range checksums {
		got, err := digestFile(l.path(name + suffix))
		if err != nil {
			return apperr.Wrap(apperr.CodeDatabaseCorrupted, name, err)
		}
		if got != want {
			return apperr.New(apperr.CodeDatabaseCorrupted, "checksum mismatch: "+name)
		}
	}
	return nil
}
