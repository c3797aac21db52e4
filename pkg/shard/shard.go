// Package shard defines the on-disk format of prepared dataset shards.
//
// A shard file holds a sequence of feature records extracted from raw audio.
// The file starts with a 4-byte magic ("VXS1") followed by a msgpack-encoded
// [File]. Shard files carry the [Ext] extension so they can be told apart
// from other files in the same directory.
//
// A prepared directory also holds a [Manifest] under [ManifestName]. The
// manifest is written last, after every shard it lists is in place, so a
// directory with shards but no manifest is an incomplete build.
package shard

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Ext is the reserved extension of shard files.
	Ext = ".vxs"

	// ManifestName is the file name of the directory manifest.
	ManifestName = "manifest.msgpack"

	// Version is the current format version.
	Version = 1
)

var magic = [4]byte{'V', 'X', 'S', '1'}

// ErrCorrupt is returned when a shard or manifest cannot be decoded.
var ErrCorrupt = errors.New("shard: corrupt file")

// Record is one prepared example.
type Record struct {
	// Source is the base name of the raw audio file the record came from.
	Source string `msgpack:"source"`

	// Frames is the [T][numMels] feature matrix.
	Frames [][]float32 `msgpack:"frames"`

	// Audio is the optional retained converted audio (mono, normalized).
	Audio []float32 `msgpack:"audio,omitempty"`

	// SampleRate is the rate of Audio and of the extraction front-end.
	SampleRate int `msgpack:"sample_rate"`
}

// File is the decoded content of a shard file.
type File struct {
	Version int      `msgpack:"version"`
	Records []Record `msgpack:"records"`
}

// IsShard reports whether name carries the shard extension.
func IsShard(name string) bool {
	return filepath.Ext(name) == Ext
}

// Encode writes records as a shard to w.
func Encode(w io.Writer, records []Record) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(&File{Version: Version, Records: records})
}

// Decode reads a shard from r. Decoding failures wrap [ErrCorrupt].
func Decode(r io.Reader) (*File, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	if head != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, head[:])
	}
	var f File
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if f.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, f.Version)
	}
	return &f, nil
}

// WriteFile writes records to path atomically: the data goes to a temp file
// in the same directory which is then renamed into place.
func WriteFile(path string, records []Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return fmt.Errorf("shard: encode %s: %w", path, err)
	}
	return writeFileAtomic(path, buf.Bytes())
}

// ReadFile reads and decodes the shard at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sf, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sf, nil
}

// ManifestEntry describes one shard listed in a manifest.
type ManifestEntry struct {
	Name    string `msgpack:"name"`
	Records int    `msgpack:"records"`
}

// Manifest describes a complete prepared directory.
type Manifest struct {
	Version   int             `msgpack:"version"`
	Source    string          `msgpack:"source"`
	CreatedAt time.Time       `msgpack:"created_at"`
	Shards    []ManifestEntry `msgpack:"shards"`
}

// Records returns the total record count over all listed shards.
func (m *Manifest) Records() int {
	n := 0
	for _, s := range m.Shards {
		n += s.Records
	}
	return n
}

// WriteManifest writes m into dir atomically.
func WriteManifest(dir string, m *Manifest) error {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("shard: encode manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, ManifestName), data)
}

// ReadManifest reads the manifest in dir. A missing manifest returns an
// error wrapping os.ErrNotExist.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrCorrupt, err)
	}
	return &m, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return fmt.Errorf("shard: create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("shard: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("shard: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("shard: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("shard: rename %s: %w", path, err)
	}
	committed = true
	return nil
}
