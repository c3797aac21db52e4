package model

import (
	"errors"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrCheckpointKind is returned when a checkpoint belongs to another variant.
var ErrCheckpointKind = errors.New("model: checkpoint kind mismatch")

type envelope struct {
	Kind    string             `msgpack:"kind"`
	Version int                `msgpack:"version"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// WriteCheckpoint writes payload to path tagged with kind.
func WriteCheckpoint(path, kind string, version int, payload any) error {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("model: encode checkpoint: %w", err)
	}
	data, err := msgpack.Marshal(&envelope{Kind: kind, Version: version, Payload: raw})
	if err != nil {
		return fmt.Errorf("model: encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("model: write checkpoint: %w", err)
	}
	return nil
}

// ReadCheckpoint decodes the checkpoint at path into payload. It fails with
// ErrCheckpointKind when the checkpoint was written for another kind, and
// returns the stored version.
func ReadCheckpoint(path, kind string, payload any) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("model: read checkpoint: %w", err)
	}
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("model: decode checkpoint %s: %w", path, err)
	}
	if env.Kind != kind {
		return 0, fmt.Errorf("%w: %s holds %q, want %q", ErrCheckpointKind, path, env.Kind, kind)
	}
	if err := msgpack.Unmarshal(env.Payload, payload); err != nil {
		return 0, fmt.Errorf("model: decode checkpoint %s: %w", path, err)
	}
	return env.Version, nil
}

// CheckFrames verifies every frame has width dim and returns dim, or the
// width of the first frame when dim is zero.
func CheckFrames(frames [][]float32, dim int) (int, error) {
	for i, f := range frames {
		if dim == 0 {
			dim = len(f)
		}
		if len(f) != dim {
			return 0, fmt.Errorf("%w: frame %d has %d values, want %d", ErrFrameDim, i, len(f), dim)
		}
	}
	return dim, nil
}

// CheckpointDir returns env.CheckpointDir, creating it, or a fresh temp
// directory for runName when unset.
func CheckpointDir(env TrainingEnvironment, runName string) (string, error) {
	if env.CheckpointDir == "" {
		return os.MkdirTemp("", "voxnot-"+runName+"-")
	}
	if err := os.MkdirAll(env.CheckpointDir, 0o755); err != nil {
		return "", fmt.Errorf("model: checkpoint dir: %w", err)
	}
	return env.CheckpointDir, nil
}
