package coverage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
)

// Accumulator collects coverage across conversions for the lifetime of the
// process. It is safe for concurrent use.
type Accumulator struct {
	mu  sync.RWMutex
	cov CoverageMap
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{cov: CoverageMap{}}
}

// Add merges m into the accumulated coverage.
func (a *Accumulator) Add(m CoverageMap) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cov.Merge(m)
}

// Snapshot returns a copy of the accumulated coverage.
func (a *Accumulator) Snapshot() CoverageMap {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cov.Clone()
}

// Summary summarises the accumulated coverage.
func (a *Accumulator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cov.Summary()
}

// Reset drops everything accumulated so far.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cov = CoverageMap{}
}

// WriteFile writes the accumulated coverage to path, see WriteCoverageFile.
func (a *Accumulator) WriteFile(path string) error {
	return WriteCoverageFile(path, a.Snapshot())
}

// WriteCoverage writes m as JSON with sorted keys.
func WriteCoverage(w io.Writer, m CoverageMap) error {
	data, err := sonic.ConfigStd.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode coverage: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteCoverageFile writes m to path, creating parent directories. Paths
// ending in .gz are gzip compressed.
func WriteCoverageFile(path string, m CoverageMap) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return WriteCoverage(f, m)
	}
	zw := gzip.NewWriter(f)
	if err := WriteCoverage(zw, m); err != nil {
		return err
	}
	return zw.Close()
}
