package utils

import "sync"

var gdalMu sync.Mutex

// WithGDAL runs fn while holding the process-wide GDAL lock. Dataset and band
// handles must not be used from two goroutines at once.
func WithGDAL(fn func() error) error {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	return fn()
}
