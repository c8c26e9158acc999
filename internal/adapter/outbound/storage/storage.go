// Package storage implements the on-disk persistence layer of §4.6: a
// directory holding a bucket index, one policy file per bucket, a
// checksum manifest, and a crash-recovery guard sentinel. Saves follow a
// write-temp, fsync, guard, rename, fsync, unguard sequence so a crash at
// any point leaves the directory in one of exactly two recoverable
// states.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

const (
	indexFileName     = "buckets"
	checksumFileName  = "checksum"
	guardFileName     = "guard"
	lockFileName      = ".lock"
	tempSuffix        = "~"
	checksumAlgorithm = "sha256"
)

func bucketFileName(id string) string { return "_" + id }

// Layer owns one database directory for the lifetime of the daemon
// process, holding the advisory exclusive lock that keeps a second
// instance from starting against the same directory (§5).
type Layer struct {
	dir      string
	logger   *slog.Logger
	lockFile *os.File
}

// Open prepares dir for use, creating it if necessary and acquiring the
// directory's advisory lock. A second Open of the same directory from
// another process fails fast with CodeFileLockAcquire.
func Open(dir string, logger *slog.Logger) (*Layer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, apperr.Wrap(apperr.CodeCannotCreateFile, dir, err)
	}
	l := &Layer{dir: dir, logger: logger}
	if err := l.acquireLock(); err != nil {
		return nil, err
	}
	return l, nil
}

// Close releases the directory lock.
func (l *Layer) Close() error {
	return l.releaseLock()
}

func (l *Layer) path(name string) string {
	return filepath.Join(l.dir, name)
}

// Save persists store to disk using the crash-safe protocol of §4.6. It
// refuses to write a store with dangling BUCKET links (§3 invariant).
func (l *Layer) Save(store *policy.Store) error {
	if dangling := store.DanglingLinks(); len(dangling) > 0 {
		return apperr.New(apperr.CodeDatabaseCorrupted, "refusing to save dangling bucket links: "+strings.Join(dangling, ", "))
	}

	ids := store.BucketIDs()
	type writtenFile struct {
		name   string
		digest string
	}
	written := make([]writtenFile, 0, len(ids)+1)

	indexLines := make([]string, 0, len(ids))
	for _, id := range ids {
		b, _ := store.Bucket(id)
		indexLines = append(indexLines, encodeIndexLine(id, b.Default()))
	}
	digest, err := l.writeTemp(indexFileName, joinLines(indexLines))
	if err != nil {
		return err
	}
	written = append(written, writtenFile{indexFileName, digest})

	for _, id := range ids {
		b, _ := store.Bucket(id)
		lines := make([]string, 0, b.Len())
		for _, p := range b.Snapshot() {
			lines = append(lines, encodePolicyLine(p))
		}
		name := bucketFileName(id)
		digest, err := l.writeTemp(name, joinLines(lines))
		if err != nil {
			return err
		}
		written = append(written, writtenFile{name, digest})
	}

	// 2. Write a new checksum~ summarising every ~ file.
	checksumLines := make([]string, 0, len(written))
	for _, w := range written {
		checksumLines = append(checksumLines, fmt.Sprintf("%s;%s;%s", w.name, checksumAlgorithm, w.digest))
	}
	if _, err := l.writeTemp(checksumFileName, joinLines(checksumLines)); err != nil {
		return err
	}

	// 3. fsync the directory.
	if err := l.fsyncDir(); err != nil {
		return err
	}

	// 4. Create the guard file.
	guardPath := l.path(guardFileName)
	if err := os.WriteFile(guardPath, nil, 0600); err != nil {
		return apperr.Wrap(apperr.CodeCannotCreateFile, guardFileName, err)
	}

	// 5. Atomically rename <name>~ -> <name> for every file, checksum
	// included.
	allNames := make([]string, 0, len(written)+1)
	for _, w := range written {
		allNames = append(allNames, w.name)
	}
	allNames = append(allNames, checksumFileName)
	for _, name := range allNames {
		if err := os.Rename(l.path(name+tempSuffix), l.path(name)); err != nil {
			return apperr.Wrap(apperr.CodeCannotCreateFile, name, err)
		}
	}

	// 6. fsync the directory.
	if err := l.fsyncDir(); err != nil {
		return err
	}

	// 7. Remove the guard.
	if err := os.Remove(guardPath); err != nil {
		return apperr.Wrap(apperr.CodeOperationFailed, guardFileName, err)
	}

	return l.pruneUnreferenced(ids)
}

// Load reconstructs a Store from disk. If the directory holds no database
// yet, it returns a fresh store containing only the root bucket.
func (l *Layer) Load() (*policy.Store, error) {
	usedGuard := false
	if _, err := os.Stat(l.path(guardFileName)); err == nil {
		usedGuard = true
	}
	suffix := ""
	if usedGuard {
		suffix = tempSuffix
	}

	checksums, err := l.readChecksums(suffix)
	if err != nil {
		return nil, err
	}
	if err := l.verifyChecksums(checksums, suffix); err != nil {
		return nil, err
	}

	indexData, err := os.ReadFile(l.path(indexFileName + suffix))
	if err != nil {
		if os.IsNotExist(err) {
			return policy.NewStore(), nil
		}
		return nil, apperr.Wrap(apperr.CodeFileNotFound, indexFileName, err)
	}

	buckets := make(map[string]*policy.Bucket)
	for i, line := range splitLines(string(indexData)) {
		id, def, err := decodeIndexLine(line)
		if err != nil {
			return nil, apperr.New(apperr.CodeDatabaseCorrupted, fmt.Sprintf("%s:%d: %v", indexFileName, i+1, err))
		}
		b, err := policy.NewBucket(id, def)
		if err != nil {
			return nil, apperr.New(apperr.CodeDatabaseCorrupted, fmt.Sprintf("%s:%d: %v", indexFileName, i+1, err))
		}
		buckets[id] = b
	}

	for id, b := range buckets {
		name := bucketFileName(id)
		data, err := os.ReadFile(l.path(name + suffix))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, apperr.Wrap(apperr.CodeFileNotFound, name, err)
		}
		for i, line := range splitLines(string(data)) {
			p, err := decodePolicyLine(line)
			if err != nil {
				return nil, apperr.New(apperr.CodeDatabaseCorrupted, fmt.Sprintf("%s:%d: %v", name, i+1, err))
			}
			b.Insert(p)
		}
	}

	store := policy.NewStoreFromBuckets(buckets)

	if usedGuard {
		// A crash happened between guard creation and guard removal
		// (§4.6). The loaded state is the one the interrupted save was
		// writing, read from the "~" copies; re-running Save reconstructs identical
		// bytes (Save's output is a pure function of store content) and
		// finishes by removing the guard.
		if err := l.Save(store); err != nil {
			return nil, err
		}
	} else if err := l.pruneUnreferenced(store.BucketIDs()); err != nil {
		return nil, err
	}

	return store, nil
}

func (l *Layer) pruneUnreferenced(ids []string) error {
	keep := map[string]bool{indexFileName: true, checksumFileName: true, lockFileName: true}
	for _, id := range ids {
		keep[bucketFileName(id)] = true
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return apperr.Wrap(apperr.CodeOperationFailed, l.dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if keep[name] || name == guardFileName || strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, name)); err != nil {
			return apperr.Wrap(apperr.CodeOperationFailed, name, err)
		}
	}
	return nil
}

func (l *Layer) fsyncDir() error {
	d, err := os.Open(l.dir)
	if err != nil {
		return apperr.Wrap(apperr.CodeOperationFailed, l.dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return apperr.Wrap(apperr.CodeOperationFailed, l.dir, err)
	}
	return nil
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
