package dataset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/voxnot/voxnot/pkg/shard"
)

// ErrDatasetLoad is matched by every composition failure.
var ErrDatasetLoad = errors.New("dataset: load failed")

// ErrIndex is returned by View.At for an index outside [0, Len()).
var ErrIndex = errors.New("dataset: index out of range")

// LoadError reports the shard that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dataset: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDatasetLoad) hold for any *LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrDatasetLoad }

// View is a read-only concatenation of shards addressed by one index.
type View struct {
	paths []string
	files []*shard.File
	ends  []int // ends[i] is the global index one past the last record of shard i
}

// Compose loads every shard in paths, in order, into one view. Any load
// failure aborts the composition.
func Compose(paths []string) (*View, error) {
	v := &View{
		paths: append([]string(nil), paths...),
		files: make([]*shard.File, len(paths)),
		ends:  make([]int, len(paths)),
	}
	total := 0
	for i, p := range paths {
		f, err := shard.ReadFile(p)
		if err != nil {
			return nil, &LoadError{Path: p, Err: err}
		}
		v.files[i] = f
		total += len(f.Records)
		v.ends[i] = total
	}
	return v, nil
}

// Len returns the total record count.
func (v *View) Len() int {
	if len(v.ends) == 0 {
		return 0
	}
	return v.ends[len(v.ends)-1]
}

// Locate maps global index i to a shard index and the offset within it.
func (v *View) Locate(i int) (shardIdx, offset int, ok bool) {
	if i < 0 || i >= v.Len() {
		return 0, 0, false
	}
	s := sort.SearchInts(v.ends, i+1)
	start := 0
	if s > 0 {
		start = v.ends[s-1]
	}
	return s, i - start, true
}

// At returns record i.
func (v *View) At(i int) (shard.Record, error) {
	s, off, ok := v.Locate(i)
	if !ok {
		return shard.Record{}, fmt.Errorf("%w: %d of %d", ErrIndex, i, v.Len())
	}
	return v.files[s].Records[off], nil
}

// Shards returns the shard paths in composition order.
func (v *View) Shards() []string {
	return append([]string(nil), v.paths...)
}
