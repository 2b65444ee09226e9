package coverage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
)

// Report is the coverage Chrome collected for one script: its URL, full text
// and the ranges that executed.
type Report struct {
	URL    string  `json:"url"`
	Text   string  `json:"text"`
	Ranges []Range `json:"ranges"`
}

// ErrReportTooLarge is returned when gzipped reports inflate past
// MaxInflatedBytes.
var ErrReportTooLarge = errors.New("coverage reports too large")

// MaxInflatedBytes caps the decompressed size of gzipped reports.
var MaxInflatedBytes int64 = 2 << 30

// DecodeReports parses a JSON array of reports. Gzipped input is detected
// and decompressed.
func DecodeReports(data []byte) ([]Report, error) {
	if mimetype.Detect(data).Is("application/gzip") {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(io.LimitReader(zr, MaxInflatedBytes+1)); err != nil {
			return nil, fmt.Errorf("read gzip: %w", err)
		}
		if int64(len(data)) > MaxInflatedBytes {
			return nil, fmt.Errorf("%w: more than %d bytes inflated", ErrReportTooLarge, MaxInflatedBytes)
		}
	}

	var reports []Report
	if err := sonic.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("decode coverage reports: %w", err)
	}
	return reports, nil
}

// LoadReports reads reports from a file, or from every .json and .json.gz
// file below a directory. Directory entries are read in path order so the
// result is deterministic.
func LoadReports(path string) ([]Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loadReportFile(path)
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !(strings.HasSuffix(p, ".json") || strings.HasSuffix(p, ".json.gz")) {
			return nil
		}
		mu.Lock()
		files = append(files, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)

	var reports []Report
	for _, f := range files {
		rs, err := loadReportFile(f)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rs...)
	}
	return reports, nil
}

func loadReportFile(path string) ([]Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	reports, err := DecodeReports(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reports, nil
}
