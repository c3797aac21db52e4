// Package gaussot implements a diagonal Gaussian optimal transport map
// between source and target feature distributions.
//
// Each feature dimension d is mapped independently:
//
//	y[d] = muY[d] + sdY[d]/sdX[d] * (x[d] - muX[d])
//
// which is the optimal transport map between two diagonal Gaussians.
// Training estimates the moments with running averages over shuffled
// batches; each epoch is checkpointed and scored by how well the mapped
// held-out source frames match the target moments.
package gaussot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/voxnot/voxnot/pkg/model"
)

// Kind tags gaussot checkpoints.
const Kind = "gaussian-ot"

const (
	checkpointVersion = 1
	defaultEpochs     = 5
	defaultBatchSize  = 16
	defaultEpsilon    = 1e-5
	momentum          = 0.1
)

// Weights are the learned moments.
type Weights struct {
	MuX   []float64 `msgpack:"mu_x"`
	SdX   []float64 `msgpack:"sd_x"`
	MuY   []float64 `msgpack:"mu_y"`
	SdY   []float64 `msgpack:"sd_y"`
	Epoch int       `msgpack:"epoch"`
	Loss  float64   `msgpack:"loss"`
}

// Map is the gaussian-ot model.
type Map struct {
	opts   model.Options
	logger *slog.Logger
	eps    float64

	hp      model.TrainingHyperParams
	env     model.TrainingEnvironment
	x, y    model.Dataset
	runName string

	weights *Weights
	best    string
}

var _ model.Model = (*Map)(nil)

// New is the registry factory.
func New(opts model.Options) (model.Model, error) {
	eps := opts.Params.Epsilon
	if eps <= 0 {
		eps = defaultEpsilon
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Map{opts: opts, logger: logger, eps: eps}, nil
}

// ConfigureTraining implements model.Model.
func (m *Map) ConfigureTraining(hp model.TrainingHyperParams, env model.TrainingEnvironment, x, y model.Dataset, runName string) error {
	if m.opts.ProdMode {
		return model.ErrProdMode
	}
	if hp.Epochs <= 0 {
		hp.Epochs = defaultEpochs
	}
	if hp.BatchSize <= 0 {
		hp.BatchSize = defaultBatchSize
	}
	m.hp, m.env, m.x, m.y, m.runName = hp, env, x, y, runName
	m.best = ""
	return nil
}

// moments is a running estimate of per-dimension mean and variance.
type moments struct {
	mu, v []float64
	init  bool
}

func (s *moments) update(batch [][]float32) {
	if len(batch) == 0 {
		return
	}
	dim := len(batch[0])
	mu := make([]float64, dim)
	v := make([]float64, dim)
	for _, f := range batch {
		for d, x := range f {
			mu[d] += float64(x)
		}
	}
	n := float64(len(batch))
	for d := range mu {
		mu[d] /= n
	}
	for _, f := range batch {
		for d, x := range f {
			dx := float64(x) - mu[d]
			v[d] += dx * dx
		}
	}
	for d := range v {
		v[d] /= n
	}
	if !s.init {
		s.mu, s.v, s.init = mu, v, true
		return
	}
	for d := range mu {
		s.mu[d] = (1-momentum)*s.mu[d] + momentum*mu[d]
		s.v[d] = (1-momentum)*s.v[d] + momentum*v[d]
	}
}

func (s *moments) sd(eps float64) []float64 {
	out := make([]float64, len(s.v))
	for d, v := range s.v {
		out[d] = math.Sqrt(math.Max(v, eps))
	}
	return out
}

// collect gathers frames of ds whose record index passes keep.
func collect(ds model.Dataset, keep func(int) bool, dim int) ([][]float32, int, error) {
	var frames [][]float32
	err := model.ForEachRecord(ds, keep, func(f [][]float32) error {
		d, err := model.CheckFrames(f, dim)
		if err != nil {
			return err
		}
		dim = d
		frames = append(frames, f...)
		return nil
	})
	return frames, dim, err
}

// Train implements model.Model.
func (m *Map) Train(ctx context.Context) error {
	if m.x == nil || m.y == nil {
		return model.ErrNotConfigured
	}
	stride := m.hp.ValidationStride
	var trainKeep, valKeep func(int) bool
	if stride > 1 {
		trainKeep = func(i int) bool { return i%stride != 0 }
		valKeep = func(i int) bool { return i%stride == 0 }
	}

	xs, dim, err := collect(m.x, trainKeep, m.opts.Params.FeatureDim)
	if err != nil {
		return err
	}
	ys, dim, err := collect(m.y, nil, dim)
	if err != nil {
		return err
	}
	val, _, err := collect(m.x, valKeep, dim)
	if err != nil {
		return err
	}
	if len(xs) == 0 || len(ys) == 0 {
		return model.ErrEmptyDataset
	}

	dir, err := model.CheckpointDir(m.env, m.runName)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(m.hp.Seed))
	var sx, sy moments
	bestLoss := math.Inf(1)

	for epoch := 1; epoch <= m.hp.Epochs; epoch++ {
		rng.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
		rng.Shuffle(len(ys), func(i, j int) { ys[i], ys[j] = ys[j], ys[i] })

		batches := max(len(xs), len(ys)) / m.hp.BatchSize
		batches = max(batches, 1)
		for b := 0; b < batches; b++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			sx.update(window(xs, b, m.hp.BatchSize))
			sy.update(window(ys, b, m.hp.BatchSize))
			if m.env.LogEvery > 0 && (b+1)%m.env.LogEvery == 0 {
				m.logger.Debug("batch", "epoch", epoch, "batch", b+1, "of", batches)
			}
		}

		w := &Weights{MuX: sx.mu, SdX: sx.sd(m.eps), MuY: sy.mu, SdY: sy.sd(m.eps), Epoch: epoch}
		w = w.clone()
		w.Loss = momentLoss(w, val, m.eps)

		path := filepath.Join(dir, fmt.Sprintf("%s-e%d.ckpt", m.runName, epoch))
		if err := model.WriteCheckpoint(path, Kind, checkpointVersion, w); err != nil {
			return err
		}
		m.logger.Info("epoch done", "epoch", epoch, "loss", w.Loss, "checkpoint", path)
		if w.Loss < bestLoss {
			bestLoss = w.Loss
			m.best = path
			m.weights = w
		}
	}
	return nil
}

// window returns batch b of frames, wrapping around the end.
func window(frames [][]float32, b, size int) [][]float32 {
	out := make([][]float32, 0, size)
	for i := 0; i < size && i < len(frames); i++ {
		out = append(out, frames[(b*size+i)%len(frames)])
	}
	return out
}

// momentLoss is the squared distance between the moments of the mapped
// validation frames and the target moments, averaged over dimensions.
func momentLoss(w *Weights, val [][]float32, eps float64) float64 {
	if len(val) == 0 {
		return 0
	}
	var s moments
	s.update(w.apply(val))
	sd := s.sd(eps)
	var loss float64
	for d := range w.MuY {
		dm := s.mu[d] - w.MuY[d]
		ds := sd[d] - w.SdY[d]
		loss += dm*dm + ds*ds
	}
	return loss / float64(len(w.MuY))
}

func (w *Weights) clone() *Weights {
	c := *w
	c.MuX = append([]float64(nil), w.MuX...)
	c.SdX = append([]float64(nil), w.SdX...)
	c.MuY = append([]float64(nil), w.MuY...)
	c.SdY = append([]float64(nil), w.SdY...)
	return &c
}

func (w *Weights) apply(frames [][]float32) [][]float32 {
	out := make([][]float32, len(frames))
	for t, f := range frames {
		o := make([]float32, len(f))
		for d, x := range f {
			o[d] = float32(w.MuY[d] + w.SdY[d]/w.SdX[d]*(float64(x)-w.MuX[d]))
		}
		out[t] = o
	}
	return out
}

// BestCheckpointPath implements model.Model.
func (m *Map) BestCheckpointPath() (string, error) {
	if m.best == "" {
		return "", model.ErrNoCheckpoint
	}
	return m.best, nil
}

// LoadWeights implements model.Model.
func (m *Map) LoadWeights(path string) error {
	var w Weights
	if _, err := model.ReadCheckpoint(path, Kind, &w); err != nil {
		return err
	}
	n := len(w.MuX)
	if n == 0 || len(w.SdX) != n || len(w.MuY) != n || len(w.SdY) != n {
		return fmt.Errorf("gaussot: %s: inconsistent weights", path)
	}
	m.weights = &w
	return nil
}

// Predict implements model.Model.
func (m *Map) Predict(frames [][]float32) ([][]float32, error) {
	if m.weights == nil {
		return nil, model.ErrNoWeights
	}
	if _, err := model.CheckFrames(frames, len(m.weights.MuX)); err != nil {
		return nil, err
	}
	return m.weights.apply(frames), nil
}
