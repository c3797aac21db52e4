package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// removeEntry is replaced in tests to simulate undeletable entries.
var removeEntry = os.Remove

// ClearFailure is an entry ClearDir could not remove.
type ClearFailure struct {
	Path string
	Err  error
}

// ClearReport is the outcome of ClearDir.
type ClearReport struct {
	Removed  []string
	Failures []ClearFailure
}

// OK reports whether every entry was removed.
func (r ClearReport) OK() bool { return len(r.Failures) == 0 }

// ClearDir removes everything below dir, keeping dir itself. Entries are
// removed deepest first. Failures are collected in the report and do not
// stop the walk.
func ClearDir(dir string) ClearReport {
	var (
		report ClearReport
		paths  []string
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			report.Failures = append(report.Failures, ClearFailure{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != dir {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		report.Failures = append(report.Failures, ClearFailure{Path: dir, Err: err})
	}

	slices.Reverse(paths)
	failed := make(map[string]bool)
	for _, p := range paths {
		if failed[p] {
			continue
		}
		if err := removeEntry(p); err != nil {
			report.Failures = append(report.Failures, ClearFailure{Path: p, Err: err})
			for parent := filepath.Dir(p); parent != dir && parent != "."; parent = filepath.Dir(parent) {
				failed[parent] = true
			}
			continue
		}
		report.Removed = append(report.Removed, p)
	}
	return report
}
