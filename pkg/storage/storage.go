// Package storage publishes trained checkpoints to an output location.
//
// An output location is either a local directory or an S3-compatible
// bucket URL ("s3://bucket/prefix"). [Open] picks the backend; both
// implement [FileStore]. Names are forward-slash separated and relative
// to the store root.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileStore stores named blobs.
type FileStore interface {
	// Put stores size bytes from r under name, replacing any previous
	// content. Readers never observe a partially written blob.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Get opens name for reading. A missing name returns an error
	// wrapping os.ErrNotExist.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether name is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Location returns a human-readable address of name.
	Location(name string) string
}

// Options configure Open for S3 locations. They are ignored for local
// directories.
type Options struct {
	S3 S3Options

	// Client, if set, serves S3 locations instead of a client built from S3.
	Client S3Client
}

// Open returns the store for location: an S3Store for "s3://bucket/prefix",
// a Local store for anything else.
func Open(location string, opts Options) (FileStore, error) {
	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("storage: %q: missing bucket", location)
		}
		if opts.Client != nil {
			return NewS3(opts.Client, bucket, strings.Trim(prefix, "/")), nil
		}
		client, err := NewS3Client(opts.S3)
		if err != nil {
			return nil, err
		}
		return NewS3(client, bucket, strings.Trim(prefix, "/")), nil
	}
	return NewLocal(location)
}

// IsRemote reports whether location names an S3 object or prefix.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// Split splits a remote location into the location of its parent and the
// object name, so that Open(dir) followed by Get(name) reads it.
func Split(location string) (dir, name string) {
	rest := strings.TrimPrefix(location, "s3://")
	dir, name = path.Split(strings.TrimSuffix(rest, "/"))
	return "s3://" + strings.TrimSuffix(dir, "/"), name
}

// FetchFile copies name from store into the local file dst. dst is
// written next to its final path and renamed into place.
func FetchFile(ctx context.Context, store FileStore, name, dst string) error {
	r, err := store.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("storage: fetch %s: %w", store.Location(name), err)
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".fetch-"+filepath.Base(dst)+"-")
	if err != nil {
		return fmt.Errorf("storage: fetch: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("storage: fetch %s: %w", store.Location(name), err)
	}
	return os.Rename(tmpName, dst)
}

// PublishFile copies the file at src into store under name and returns
// the location it was published to.
func PublishFile(ctx context.Context, store FileStore, src, name string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("storage: publish: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("storage: publish: %w", err)
	}
	if err := store.Put(ctx, name, f, info.Size()); err != nil {
		return "", fmt.Errorf("storage: publish %s: %w", name, err)
	}
	return store.Location(name), nil
}
