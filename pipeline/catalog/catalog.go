/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package catalog lists the text files of a working copy that a change
// request may consider, and reads the ones that were selected.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/chainguard-dev/clog"
)

const (
	// MaxFileBytes is the per-file size ceiling. Larger files are left out.
	MaxFileBytes = 1 << 20

	// sniffBytes is how much of a file is inspected to decide whether it is text.
	sniffBytes = 8000
)

var (
	// binaryPatterns match paths whose extension marks them as binary.
	binaryPatterns = []string{
		"**/*.{png,jpg,jpeg,gif,bmp,ico,webp,tiff,psd}",
		"**/*.{zip,tar,gz,tgz,bz2,xz,7z,rar,jar,war,whl}",
		"**/*.{exe,dll,so,dylib,bin,dat,o,a,class,pyc,wasm}",
		"**/*.{pdf,doc,docx,xls,xlsx,ppt,pptx}",
		"**/*.{mp3,mp4,mov,avi,wav,ogg,flac}",
		"**/*.{woff,woff2,ttf,otf,eot}",
	}

	// skipDirPatterns match directories that are never walked.
	skipDirPatterns = []string{
		".git",
		"**/.git",
		"**/node_modules",
		"**/__pycache__",
	}

	// docPatterns match documentation file names that sort first when they
	// sit at the repository root.
	docPatterns = []string{
		"readme*",
		"contributing*",
		"changelog*",
		"architecture*",
		"overview*",
	}
)

// CatalogEntry describes one file of the working copy.
type CatalogEntry struct {
	Path           string
	SizeBytes      int64
	IsLikelyBinary bool
}

// Catalog is the ordered set of candidate files.
type Catalog struct {
	Entries []CatalogEntry
}

// Paths returns the entry paths in catalog order.
func (c *Catalog) Paths() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e.Path)
	}
	return out
}

// Contains reports whether p is in the catalog.
func (c *Catalog) Contains(p string) bool {
	return c.Index(p) >= 0
}

// Index returns the position of p in the catalog, or -1.
func (c *Catalog) Index(p string) int {
	if c == nil {
		return -1
	}
	for i, e := range c.Entries {
		if e.Path == p {
			return i
		}
	}
	return -1
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Entries)
}

// Build walks root and returns every text file no larger than MaxFileBytes.
// Paths are slash-separated and relative to root. Entries follow lexical walk
// order except that root-level documentation files come first.
func Build(ctx context.Context, root string) (*Catalog, error) {
	log := clog.FromContext(ctx)
	cat := &Catalog{}
	var skippedBinary, skippedLarge int

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if matchAny(skipDirPatterns, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > MaxFileBytes {
			skippedLarge++
			log.Debug("Skipping oversized file", "path", rel, "size", info.Size())
			return nil
		}

		binary := matchAny(binaryPatterns, strings.ToLower(rel))
		if !binary {
			if binary, err = sniffBinary(p); err != nil {
				return fmt.Errorf("sniffing %s: %w", rel, err)
			}
		}
		if binary {
			skippedBinary++
			return nil
		}

		cat.Entries = append(cat.Entries, CatalogEntry{
			Path:      rel,
			SizeBytes: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking working copy: %w", err)
	}

	// Stable, so ties keep walk order.
	slices.SortStableFunc(cat.Entries, func(a, b CatalogEntry) int {
		da, db := isRootDoc(a.Path), isRootDoc(b.Path)
		switch {
		case da && !db:
			return -1
		case db && !da:
			return 1
		default:
			return 0
		}
	})

	log.Info("Catalog built", "files", len(cat.Entries), "skipped_binary", skippedBinary, "skipped_large", skippedLarge)
	return cat, nil
}

func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

func isRootDoc(p string) bool {
	if strings.Contains(p, "/") {
		return false
	}
	return matchAny(docPatterns, strings.ToLower(p))
}

// sniffBinary reports whether the head of the file looks binary: a NUL byte
// or bytes that are not valid UTF-8.
func sniffBinary(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	head := buf[:n]
	if bytes.IndexByte(head, 0) >= 0 {
		return true, nil
	}
	// A multi-byte rune may straddle the cut.
	if n == sniffBytes {
		if i := lastRuneStart(head); i < len(head) && !utf8.FullRune(head[i:]) {
			head = head[:i]
		}
	}
	return !utf8.Valid(head), nil
}

func lastRuneStart(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			return i
		}
	}
	return len(b)
}

// FileSnapshot is the content of one selected file.
type FileSnapshot struct {
	Path    string
	Content string
}

// Read loads the given catalog paths from root; reads cannot leave root.
// Files that grew past MaxFileBytes or are no longer valid text are left out
// with a warning.
func Read(ctx context.Context, root string, paths []string) ([]FileSnapshot, error) {
	log := clog.FromContext(ctx)

	r, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("opening working copy: %w", err)
	}
	defer r.Close()

	out := make([]FileSnapshot, 0, len(paths))
	for _, p := range paths {
		clean := path.Clean(p)
		if !filepath.IsLocal(filepath.FromSlash(clean)) {
			return nil, fmt.Errorf("path %q escapes the working copy", p)
		}
		b, err := r.ReadFile(filepath.FromSlash(clean))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if len(b) > MaxFileBytes || !utf8.Valid(b) {
			log.Warn("Excluding file from snapshot", "path", p, "size", len(b))
			continue
		}
		out = append(out, FileSnapshot{Path: p, Content: string(b)})
	}
	return out, nil
}
