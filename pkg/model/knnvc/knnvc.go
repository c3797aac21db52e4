// Package knnvc implements nearest-neighbour voice conversion: every
// source frame is replaced by the mean of its K closest target frames
// under cosine similarity.
//
// Training only builds the matching pool, a subsample of at most PoolSize
// target frames, and writes it as the run's single checkpoint.
package knnvc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"sort"

	"github.com/voxnot/voxnot/pkg/model"
)

// Kind tags knnvc checkpoints.
const Kind = "knn-vc"

const (
	checkpointVersion = 1
	defaultK          = 4
	defaultPoolSize   = 8192
	defaultEpsilon    = 1e-8
)

// Pool is the stored matching set.
type Pool struct {
	Frames [][]float32 `msgpack:"frames"`
}

// KNN is the knn-vc model.
type KNN struct {
	opts     model.Options
	logger   *slog.Logger
	k        int
	poolSize int
	eps      float64

	hp      model.TrainingHyperParams
	env     model.TrainingEnvironment
	x, y    model.Dataset
	runName string

	pool  [][]float32
	norms []float64
	best  string
}

var _ model.Model = (*KNN)(nil)

// New is the registry factory.
func New(opts model.Options) (model.Model, error) {
	k := opts.Params.K
	if k <= 0 {
		k = defaultK
	}
	size := opts.Params.PoolSize
	if size <= 0 {
		size = defaultPoolSize
	}
	if size < k {
		return nil, fmt.Errorf("knnvc: pool size %d smaller than k %d", size, k)
	}
	eps := opts.Params.Epsilon
	if eps <= 0 {
		eps = defaultEpsilon
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &KNN{opts: opts, logger: logger, k: k, poolSize: size, eps: eps}, nil
}

// ConfigureTraining implements model.Model.
func (m *KNN) ConfigureTraining(hp model.TrainingHyperParams, env model.TrainingEnvironment, x, y model.Dataset, runName string) error {
	if m.opts.ProdMode {
		return model.ErrProdMode
	}
	m.hp, m.env, m.x, m.y, m.runName = hp, env, x, y, runName
	m.best = ""
	return nil
}

// Train implements model.Model. It reservoir-samples the target frames
// into the pool.
func (m *KNN) Train(ctx context.Context) error {
	if m.x == nil || m.y == nil {
		return model.ErrNotConfigured
	}
	rng := rand.New(rand.NewSource(m.hp.Seed))
	dim := m.opts.Params.FeatureDim
	pool := make([][]float32, 0, m.poolSize)
	seen := 0
	err := model.ForEachRecord(m.y, nil, func(frames [][]float32) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := model.CheckFrames(frames, dim)
		if err != nil {
			return err
		}
		dim = d
		for _, f := range frames {
			seen++
			if len(pool) < m.poolSize {
				pool = append(pool, f)
				continue
			}
			if j := rng.Intn(seen); j < m.poolSize {
				pool[j] = f
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(pool) < m.k {
		return fmt.Errorf("%w: %d target frames, need at least %d", model.ErrEmptyDataset, len(pool), m.k)
	}

	dir, err := model.CheckpointDir(m.env, m.runName)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, m.runName+"-pool.ckpt")
	if err := model.WriteCheckpoint(path, Kind, checkpointVersion, &Pool{Frames: pool}); err != nil {
		return err
	}
	m.setPool(pool)
	m.best = path
	m.logger.Info("pool built", "frames", len(pool), "seen", seen, "source_records", m.x.Len(), "checkpoint", path)
	return nil
}

func (m *KNN) setPool(pool [][]float32) {
	m.pool = pool
	m.norms = make([]float64, len(pool))
	for i, f := range pool {
		m.norms[i] = norm(f)
	}
}

func norm(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// BestCheckpointPath implements model.Model.
func (m *KNN) BestCheckpointPath() (string, error) {
	if m.best == "" {
		return "", model.ErrNoCheckpoint
	}
	return m.best, nil
}

// LoadWeights implements model.Model.
func (m *KNN) LoadWeights(path string) error {
	var p Pool
	if _, err := model.ReadCheckpoint(path, Kind, &p); err != nil {
		return err
	}
	if len(p.Frames) < m.k {
		return fmt.Errorf("knnvc: %s: pool of %d frames, need at least %d", path, len(p.Frames), m.k)
	}
	if _, err := model.CheckFrames(p.Frames, 0); err != nil {
		return fmt.Errorf("knnvc: %s: %w", path, err)
	}
	m.setPool(p.Frames)
	return nil
}

type neighbour struct {
	idx int
	sim float64
}

// Predict implements model.Model.
func (m *KNN) Predict(frames [][]float32) ([][]float32, error) {
	if len(m.pool) == 0 {
		return nil, model.ErrNoWeights
	}
	dim := len(m.pool[0])
	if _, err := model.CheckFrames(frames, dim); err != nil {
		return nil, err
	}

	out := make([][]float32, len(frames))
	nb := make([]neighbour, len(m.pool))
	for t, f := range frames {
		fn := norm(f)
		for i, p := range m.pool {
			var dot float64
			for d := range f {
				dot += float64(f[d]) * float64(p[d])
			}
			nb[i] = neighbour{idx: i, sim: dot / (fn*m.norms[i] + m.eps)}
		}
		sort.Slice(nb, func(a, b int) bool {
			if nb[a].sim != nb[b].sim {
				return nb[a].sim > nb[b].sim
			}
			return nb[a].idx < nb[b].idx
		})
		o := make([]float32, dim)
		for _, n := range nb[:m.k] {
			for d, x := range m.pool[n.idx] {
				o[d] += x
			}
		}
		for d := range o {
			o[d] /= float32(m.k)
		}
		out[t] = o
	}
	return out, nil
}
