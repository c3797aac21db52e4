// Package kv is a small key-value store with hierarchical keys, used to
// persist training run records.
//
// Keys are string segments joined with '/' on disk, so listing a prefix
// such as Key{"runs"} visits every key below it. Two implementations are
// provided: Badger (on disk, BadgerDB v4) and Memory (tests).
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Separator joins key segments in the encoded form.
const Separator = "/"

// Key is a hierarchical path. Segments must not contain Separator.
type Key []string

// String returns the encoded key.
func (k Key) String() string { return strings.Join(k, Separator) }

func (k Key) bytes() []byte { return []byte(k.String()) }

// prefix returns the encoded form every key strictly below k starts with.
// The empty key matches everything.
func (k Key) prefix() []byte {
	if len(k) == 0 {
		return nil
	}
	return []byte(k.String() + Separator)
}

func parseKey(b []byte) Key { return strings.Split(string(b), Separator) }

// Entry is a key-value pair returned by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store.
type Store interface {
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	// List yields the entries below prefix in key order.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]
	Close() error
}
