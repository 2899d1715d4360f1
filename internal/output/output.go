// Package output decides where optimized files land and guarantees that
// writes never leave a half-written file observable at the final path.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"squish/pkg/imgutil"
)

// DefaultRootName is the output folder created beside each input when no
// explicit output root is configured.
const DefaultRootName = "optimized"

// Mapper resolves the destination path for one input file.
//
// Non-overwrite mode mirrors each input's relative path under Root, never
// touching the input; an empty Root places each copy in an "optimized"
// folder next to its input. Overwrite mode targets the input path itself; a
// format conversion changes the extension, which makes the target a sibling
// file and leaves the original in place.
type Mapper struct {
	Overwrite bool
	Root      string
}

// Dest returns the destination path for an input. relPath is the input's
// path relative to the batch root (the bare filename for flat submissions);
// target is the output format.
func (m Mapper) Dest(inputPath, relPath string, target imgutil.Format) string {
	if m.Overwrite {
		return replaceExt(inputPath, target.Ext())
	}
	if m.Root == "" {
		beside := filepath.Join(filepath.Dir(inputPath), DefaultRootName, filepath.Base(inputPath))
		return replaceExt(beside, target.Ext())
	}
	return replaceExt(filepath.Join(m.Root, relPath), target.Ext())
}

func replaceExt(path, ext string) string {
	if ext == "" {
		return path
	}
	old := filepath.Ext(path)
	return strings.TrimSuffix(path, old) + ext
}

// CollisionResolver tracks destination paths claimed by input tasks and
// resolves duplicates by appending " - dupN" suffixes before the extension.
// The first claimant keeps the bare name. All methods are goroutine-safe.
type CollisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string
	counters map[string]int
}

func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Resolve returns the final destination for input, disambiguating when the
// requested path is already claimed by a different input occurrence.
// taskKey must be unique per task (duplicate submissions of the same input
// path are distinct tasks and get distinct outputs).
func (cr *CollisionResolver) Resolve(taskKey, requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	owner, exists := cr.owners[requested]
	if !exists || owner == taskKey {
		cr.owners[requested] = taskKey
		return requested
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := cr.counters[requested]
	if counter == 0 {
		counter = 1
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s - dup%d%s", stem, counter, ext))
		cOwner, cExists := cr.owners[candidate]
		if !cExists || cOwner == taskKey {
			cr.counters[requested] = counter + 1
			cr.owners[candidate] = taskKey
			return candidate
		}
		counter++
	}
}

// ReplaceFile atomically moves tmpPath over destPath. On platforms where
// rename cannot replace an existing file it falls back to remove-then-rename.
func ReplaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
