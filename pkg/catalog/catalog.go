package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Entry is one managed file: its path and the hex digest of its content.
type Entry struct {
	Path string
	Hash string
}

// Catalog is the server's authoritative path→hash mapping. Iteration order
// is insertion order, so transfer order is well-defined and stable. A
// catalog is built once per server run and shared read-only by every
// session; it must not be mutated after the server starts accepting.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Add appends an entry, replacing the hash in place if the path is already
// present so a path never appears twice.
func (c *Catalog) Add(path, hash string) {
	if i, ok := c.index[path]; ok {
		c.entries[i].Hash = hash
		return
	}
	c.index[path] = len(c.entries)
	c.entries = append(c.entries, Entry{Path: path, Hash: hash})
}

// Hash returns the content hash for a path.
func (c *Catalog) Hash(path string) (string, bool) {
	i, ok := c.index[path]
	if !ok {
		return "", false
	}
	return c.entries[i].Hash, true
}

// Len returns the number of managed files.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns the entries in insertion order. The returned slice is
// shared; callers must not modify it.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Scan walks the managed directories and builds a catalog of every regular
// file, hashed with SHA-256. Entries are inserted in sorted walk order per
// directory, so two scans of the same tree produce identical catalogs.
// Unreadable files are skipped; their errors are collected and returned
// alongside the (still usable) catalog.
func Scan(dirs []string) (*Catalog, error) {
	c := New()
	var scanErrors []error

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				scanErrors = append(scanErrors, fmt.Errorf("cannot read %s: %w", path, err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			hash, err := hashFile(path)
			if err != nil {
				scanErrors = append(scanErrors, fmt.Errorf("cannot hash %s: %w", path, err))
				return nil
			}
			c.Add(filepath.ToSlash(path), hash)
			return nil
		})
		if err != nil {
			scanErrors = append(scanErrors, fmt.Errorf("error walking %s: %w", dir, err))
		}
	}

	// WalkDir visits entries in lexical order, but make the cross-checkable
	// guarantee explicit: entries within a run are already deterministic.
	sortStable(c)

	if len(scanErrors) > 0 {
		return c, fmt.Errorf("scan completed with %d error(s): %w", len(scanErrors), errors.Join(scanErrors...))
	}
	return c, nil
}

func sortStable(c *Catalog) {
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].Path < c.entries[j].Path
	})
	for i, e := range c.entries {
		c.index[e.Path] = i
	}
}

func hashFile(path string) (string, error) {
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
