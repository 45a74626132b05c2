// Package cache keeps downloaded scenes on disk so repeated runs for the same
// area and day skip the Process API.
package cache

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Key identifies one scene: an area on a UTC day over a bounding box.
type Key struct {
	Area  string
	Date  time.Time
	Bound orb.Bound
}

func (k Key) day() string {
	return k.Date.UTC().Format("2006-01-02")
}

// Name is the file stem of the scene, "<day>_<sha1 of area and bounds>".
func (k Key) Name() string {
	h := sha1.New()
	fmt.Fprintf(h, "%s_%s_%v_%v", k.Area, k.day(), k.Bound.Min, k.Bound.Max)
	return k.day() + "_" + hex.EncodeToString(h.Sum(nil))
}

type SceneCache interface {
	Get(key Key) ([]byte, bool)
	Set(key Key, data []byte) error
}

// FileCache stores each scene as a raw .tif with a .sha256 sidecar. A scene
// whose bytes no longer match the sidecar is a miss.
type FileCache struct {
	dir string
}

func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

func (fc *FileCache) paths(key Key) (string, string) {
	base := filepath.Join(fc.dir, key.Name())
	return base + ".tif", base + ".sha256"
}

func (fc *FileCache) Get(key Key) ([]byte, bool) {
	scenePath, sumPath := fc.paths(key)

	data, err := os.ReadFile(scenePath)
	if err != nil {
		return nil, false
	}
	sum, err := os.ReadFile(sumPath)
	if err != nil {
		return nil, false
	}
	if strings.TrimSpace(string(sum)) != checksum(data) {
		return nil, false
	}
	return data, true
}

// Set writes the scene before its sidecar, so a crash in between leaves a miss.
func (fc *FileCache) Set(key Key, data []byte) error {
	if err := os.MkdirAll(fc.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	scenePath, sumPath := fc.paths(key)
	if err := writeFile(scenePath, data); err != nil {
		return err
	}
	return writeFile(sumPath, []byte(checksum(data)+"\n"))
}

func writeFile(path string, data []byte) error {
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
