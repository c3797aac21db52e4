// Package runlog records training runs in a kv store.
//
// Each run is stored as a msgpack-encoded [Run] under Key{"runs", id}.
// A run is created in StatusRunning by [Ledger.Start] and moved to
// StatusSucceeded or StatusFailed by [Ledger.Finish].
package runlog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/voxnot/voxnot/pkg/kv"
)

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("runlog: run not found")

// Status is the state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one training run.
type Run struct {
	ID         string    `msgpack:"id" json:"id" yaml:"id"`
	Name       string    `msgpack:"name" json:"name" yaml:"name"`
	Model      string    `msgpack:"model" json:"model" yaml:"model"`
	Status     Status    `msgpack:"status" json:"status" yaml:"status"`
	SourceDir  string    `msgpack:"source_dir" json:"source_dir" yaml:"source_dir"`
	TargetDir  string    `msgpack:"target_dir" json:"target_dir" yaml:"target_dir"`
	OutputDir  string    `msgpack:"output_dir" json:"output_dir" yaml:"output_dir"`
	Checkpoint string    `msgpack:"checkpoint,omitempty" json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`
	Error      string    `msgpack:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time `msgpack:"started_at" json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `msgpack:"finished_at,omitempty" json:"finished_at,omitzero" yaml:"finished_at,omitempty"`

	SourceRecords int `msgpack:"source_records" json:"source_records" yaml:"source_records"`
	TargetRecords int `msgpack:"target_records" json:"target_records" yaml:"target_records"`
}

// Duration returns the run's wall time, up to now for a running run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Ledger stores runs.
type Ledger struct {
	store kv.Store
	now   func() time.Time
}

// New creates a ledger over store. The ledger does not own the store.
func New(store kv.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func runKey(id string) kv.Key { return kv.Key{"runs", id} }

// Start records a new running run. ID and StartedAt are assigned.
func (l *Ledger) Start(ctx context.Context, r Run) (*Run, error) {
	r.ID = uuid.NewString()
	r.Status = StatusRunning
	r.StartedAt = l.now().UTC()
	if err := l.put(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Update stores r as is.
func (l *Ledger) Update(ctx context.Context, r *Run) error {
	return l.put(ctx, r)
}

// Finish marks a run succeeded with the published checkpoint, or failed
// with runErr when it is non-nil.
func (l *Ledger) Finish(ctx context.Context, r *Run, checkpoint string, runErr error) error {
	r.FinishedAt = l.now().UTC()
	if runErr != nil {
		r.Status = StatusFailed
		r.Error = runErr.Error()
	} else {
		r.Status = StatusSucceeded
		r.Checkpoint = checkpoint
	}
	return l.put(ctx, r)
}

func (l *Ledger) put(ctx context.Context, r *Run) error {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("runlog: encode: %w", err)
	}
	if err := l.store.Set(ctx, runKey(r.ID), data); err != nil {
		return fmt.Errorf("runlog: store %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the run with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	data, err := l.store.Get(ctx, runKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: get %s: %w", id, err)
	}
	var r Run
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("runlog: decode %s: %w", id, err)
	}
	return &r, nil
}

// Delete removes the run with the given ID.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	if _, err := l.Get(ctx, id); err != nil {
		return err
	}
	if err := l.store.Delete(ctx, runKey(id)); err != nil {
		return fmt.Errorf("runlog: delete %s: %w", id, err)
	}
	return nil
}

// List returns every run, most recent first.
func (l *Ledger) List(ctx context.Context) ([]Run, error) {
	var runs []Run
	for e, err := range l.store.List(ctx, kv.Key{"runs"}) {
		if err != nil {
			return nil, fmt.Errorf("runlog: list: %w", err)
		}
		var r Run
		if err := msgpack.Unmarshal(e.Value, &r); err != nil {
			return nil, fmt.Errorf("runlog: decode %s: %w", e.Key, err)
		}
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return runs, nil
}
