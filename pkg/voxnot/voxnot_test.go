package voxnot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/voxnot/voxnot/pkg/audio/pcm"
	"github.com/voxnot/voxnot/pkg/audio/wav"
	"github.com/voxnot/voxnot/pkg/dataset"
	"github.com/voxnot/voxnot/pkg/features"
	"github.com/voxnot/voxnot/pkg/kv"
	"github.com/voxnot/voxnot/pkg/model"
	"github.com/voxnot/voxnot/pkg/runlog"
	"github.com/voxnot/voxnot/pkg/storage"
)

func writeTone(t *testing.T, dir, name string, freq float64) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	path := filepath.Join(dir, name)
	if err := wav.WriteFile(path, samples, pcm.L16Mono16K); err != nil {
		t.Fatal(err)
	}
	return path
}

type fixture struct {
	root, src, tgt, tmp, out string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		root: root,
		src:  filepath.Join(root, "src"),
		tgt:  filepath.Join(root, "tgt"),
		tmp:  filepath.Join(root, "tmp"),
		out:  filepath.Join(root, "out"),
	}
	writeTone(t, f.src, "s1.wav", 200)
	writeTone(t, f.src, "s2.wav", 250)
	writeTone(t, f.tgt, "t1.wav", 400)
	writeTone(t, f.tgt, "t2.wav", 450)
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) request(name string) TrainRequest {
	return TrainRequest{
		SourceDir: f.src,
		TargetDir: f.tgt,
		TempDir:   f.tmp,
		OutputDir: f.out,
		Training:  model.TrainingHyperParams{Epochs: 2, BatchSize: 8},
		RunName:   name,
	}
}

func TestTrainEndToEnd(t *testing.T) {
	f := newFixture(t)
	ledger := runlog.New(kv.NewMemory())
	tk, err := New(Options{Model: "gaussian-ot", Ledger: ledger})
	if err != nil {
		t.Fatal(err)
	}

	res, err := tk.Train(context.Background(), f.request("alice2bob"))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	entries, err := os.ReadDir(f.out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "alice2bob.ckpt" {
		t.Fatalf("output dir = %v, want exactly alice2bob.ckpt", entries)
	}
	if res.Checkpoint != filepath.Join(f.out, "alice2bob.ckpt") {
		t.Errorf("Checkpoint = %q", res.Checkpoint)
	}
	if res.SourceRecords != 2 || res.TargetRecords != 2 {
		t.Errorf("records = %d/%d, want 2/2", res.SourceRecords, res.TargetRecords)
	}
	for _, dir := range []string{SourceCacheDir, TargetCacheDir} {
		if !dataset.HasCache(filepath.Join(f.tmp, dir)) {
			t.Errorf("%s is not a valid cache", dir)
		}
	}

	run, err := ledger.Get(context.Background(), res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != runlog.StatusSucceeded || run.Checkpoint != res.Checkpoint || run.SourceRecords != 2 {
		t.Errorf("run = %+v", run)
	}

	// A second run reuses both caches.
	if _, err := tk.Train(context.Background(), f.request("again")); err != nil {
		t.Fatal(err)
	}
	if st := tk.Builder().Stats(); st.PipelineRuns != 2 || st.Reused != 2 {
		t.Errorf("Stats = %+v, want 2 runs and 2 reuses", st)
	}
}

func TestConvertFanOut(t *testing.T) {
	f := newFixture(t)
	trainer, err := New(Options{Model: "gaussian-ot"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := trainer.Train(context.Background(), f.request("m1"))
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(res.Checkpoint)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.out, "m2.ckpt"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	queries := filepath.Join(f.root, "queries")
	for _, q := range []string{"q1.wav", "q2.wav", "q3.wav"} {
		writeTone(t, queries, q, 300)
	}
	conv := filepath.Join(f.root, "converted")
	if err := os.Mkdir(conv, 0o755); err != nil {
		t.Fatal(err)
	}

	tk, err := New(Options{Model: "gaussian-ot", ProdMode: true})
	if err != nil {
		t.Fatal(err)
	}
	written, err := tk.Convert(context.Background(), queries, f.out, conv)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := []string{
		"q1.wav_m1.ckpt.wav", "q2.wav_m1.ckpt.wav", "q3.wav_m1.ckpt.wav",
		"q1.wav_m2.ckpt.wav", "q2.wav_m2.ckpt.wav", "q3.wav_m2.ckpt.wav",
	}
	if len(written) != len(want) {
		t.Fatalf("wrote %d files, want %d", len(written), len(want))
	}
	for i, w := range want {
		if written[i] != filepath.Join(conv, w) {
			t.Errorf("written[%d] = %q, want %q", i, written[i], w)
		}
		if _, err := wav.ReadFile(written[i]); err != nil {
			t.Errorf("output %s unreadable: %v", w, err)
		}
	}
	entries, _ := os.ReadDir(conv)
	if len(entries) != 6 {
		t.Errorf("output dir holds %d files, want 6", len(entries))
	}
}

func TestConvertSingleFileOutput(t *testing.T) {
	f := newFixture(t)
	trainer, err := New(Options{Model: "gaussian-ot"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := trainer.Train(context.Background(), f.request("m"))
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(f.root, "single.wav")
	written, err := trainer.Convert(context.Background(), f.src, res.Checkpoint, out)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 2 || written[0] != out || written[1] != out {
		t.Errorf("written = %v, want %s twice", written, out)
	}
}

func TestConvertFailure(t *testing.T) {
	f := newFixture(t)
	bogus := filepath.Join(f.root, "bogus.ckpt")
	if err := os.WriteFile(bogus, []byte("not a checkpoint"), 0o644); err != nil {
		t.Fatal(err)
	}
	tk, err := New(Options{Model: "gaussian-ot", ProdMode: true})
	if err != nil {
		t.Fatal(err)
	}
	_, err = tk.Convert(context.Background(), f.src, bogus, f.out)
	if !errors.Is(err, ErrConversion) {
		t.Fatalf("Convert = %v, want ErrConversion", err)
	}
	var ce *ConversionError
	if !errors.As(err, &ce) || ce.Model != bogus {
		t.Errorf("ConversionError = %+v", ce)
	}

	if _, err := tk.Convert(context.Background(), filepath.Join(f.root, "missing"), bogus, f.out); err == nil {
		t.Error("expected error for missing query path")
	} else {
		var fe *FSError
		if !errors.As(err, &fe) {
			t.Errorf("error = %T, want *FSError", err)
		}
	}
}

func TestNewUnknownModel(t *testing.T) {
	_, err := New(Options{Model: "VOXNOTModel"})
	if !errors.Is(err, model.ErrUnknownType) {
		t.Fatalf("New = %v, want ErrUnknownType", err)
	}
}

// failingModel fails at the configured stage.
type failingModel struct {
	failTrain bool
	trained   bool
}

func (m *failingModel) ConfigureTraining(model.TrainingHyperParams, model.TrainingEnvironment, model.Dataset, model.Dataset, string) error {
	return nil
}

func (m *failingModel) Train(context.Context) error {
	if m.failTrain {
		return errors.New("loss is NaN")
	}
	m.trained = true
	return nil
}

func (m *failingModel) BestCheckpointPath() (string, error) { return "", model.ErrNoCheckpoint }
func (m *failingModel) LoadWeights(string) error { return nil }
func (m *failingModel) Predict(f [][]float32) ([][]float32, error) { return f, nil }

func TestTrainFailurePublishesNothing(t *testing.T) {
	for _, failTrain := range []bool{true, false} {
		f := newFixture(t)
		reg := model.NewRegistry(model.Entry{Name: "failing", New: func(model.Options) (model.Model, error) {
			return &failingModel{failTrain: failTrain}, nil
		}})
		ledger := runlog.New(kv.NewMemory())
		tk, err := New(Options{Model: "failing", Registry: reg, Ledger: ledger})
		if err != nil {
			t.Fatal(err)
		}
		res, err := tk.Train(context.Background(), f.request("broken"))
		if !errors.Is(err, ErrTraining) {
			t.Fatalf("Train = %v, want ErrTraining", err)
		}
		var te *TrainingError
		if errors.As(err, &te) {
			want := "checkpoint"
			if failTrain {
				want = "train"
			}
			if te.Stage != want {
				t.Errorf("stage = %q, want %q", te.Stage, want)
			}
		}
		entries, _ := os.ReadDir(f.out)
		if len(entries) != 0 {
			t.Errorf("output dir holds %d files after failure", len(entries))
		}
		run, err := ledger.Get(context.Background(), res.RunID)
		if err != nil {
			t.Fatal(err)
		}
		if run.Status != runlog.StatusFailed {
			t.Errorf("run status = %q, want failed", run.Status)
		}
	}
}

func TestTrainPreparationFailure(t *testing.T) {
	f := newFixture(t)
	if err := os.RemoveAll(f.tgt); err != nil {
		t.Fatal(err)
	}
	configured := false
	reg := model.NewRegistry(model.Entry{Name: "spy", New: func(model.Options) (model.Model, error) {
		return &spyModel{configured: &configured}, nil
	}})
	tk, err := New(Options{Model: "spy", Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tk.Train(context.Background(), f.request("x")); err == nil {
		t.Fatal("expected error for missing target corpus")
	}
	if configured {
		t.Error("model configured after failed preparation")
	}
}

type spyModel struct {
	failingModel
	configured *bool
}

func (m *spyModel) ConfigureTraining(model.TrainingHyperParams, model.TrainingEnvironment, model.Dataset, model.Dataset, string) error {
	*m.configured = true
	return nil
}

func TestTrainRequestValidate(t *testing.T) {
	tk, err := New(Options{Model: "knn-vc"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tk.Train(context.Background(), TrainRequest{SourceDir: "a"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestResolveFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	single := filepath.Join(t.TempDir(), "c.wav")
	if err := os.WriteFile(single, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.wav")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveFiles(dir) = %v, want %v", got, want)
	}

	got, err = ResolveFiles(single)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{single}) {
		t.Errorf("ResolveFiles(file) = %v", got)
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, out, query, model, want string
	}{
		{"directory", dir, "/q/a.wav", "/m/run.ckpt", filepath.Join(dir, "a.wav_run.ckpt.wav")},
		{"file", filepath.Join(dir, "x.wav"), "/q/a.wav", "/m/run.ckpt", filepath.Join(dir, "x.wav")},
		{"missing", filepath.Join(dir, "nope"), "a.wav", "m.ckpt", filepath.Join(dir, "nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(tt.out, tt.query, tt.model); got != tt.want {
				t.Errorf("OutputPath = %q, want %q", got, tt.want)
			}
		})
	}
}

// recordingModel logs every load and predict with the weights in effect.
type recordingModel struct {
	failingModel

	mu     sync.Mutex
	loaded string
	events []string
}

func (m *recordingModel) LoadWeights(path string) error {
	m.mu.Lock()
	m.loaded = filepath.Base(path)
	m.events = append(m.events, "load "+m.loaded)
	m.mu.Unlock()
	return nil
}

func (m *recordingModel) Predict(f [][]float32) ([][]float32, error) {
	// Widen the window in which an unserialized caller could swap weights.
	time.Sleep(5 * time.Millisecond)
	m.mu.Lock()
	m.events = append(m.events, "predict "+m.loaded)
	m.mu.Unlock()
	return f, nil
}

func TestConvertConcurrentCallersKeepWeights(t *testing.T) {
	f := newFixture(t)
	rec := &recordingModel{}
	reg := model.NewRegistry(model.Entry{Name: "recording", New: func(model.Options) (model.Model, error) {
		return rec, nil
	}})
	tk, err := New(Options{Model: "recording", Registry: reg})
	if err != nil {
		t.Fatal(err)
	}

	queries := filepath.Join(f.root, "queries")
	for _, q := range []string{"q1.wav", "q2.wav", "q3.wav"} {
		writeTone(t, queries, q, 300)
	}
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, name := range []string{"a.ckpt", "b.ckpt"} {
		ckpt := filepath.Join(f.root, name)
		if err := os.WriteFile(ckpt, []byte("w"), 0o644); err != nil {
			t.Fatal(err)
		}
		out := filepath.Join(f.root, "out-"+name)
		if err := os.Mkdir(out, 0o755); err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = tk.Convert(context.Background(), queries, ckpt, out)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Convert %d: %v", i, err)
		}
	}

	// Each load must be followed by exactly its own three predictions.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 8 {
		t.Fatalf("events = %v, want 2 loads and 6 predictions", rec.events)
	}
	for i := 0; i < len(rec.events); i += 4 {
		load := rec.events[i]
		if len(load) < 5 || load[:5] != "load " {
			t.Fatalf("event %d = %q, want a load", i, load)
		}
		for j := 1; j <= 3; j++ {
			if want := "predict " + load[5:]; rec.events[i+j] != want {
				t.Errorf("event %d = %q, want %q (events %v)", i+j, rec.events[i+j], want, rec.events)
			}
		}
	}
}

func TestConvertSkipsPreparationAugmenter(t *testing.T) {
	f := newFixture(t)
	var augmented atomic.Int32
	count := features.AugmenterFunc(func(samples []float32, _ int) []float32 {
		augmented.Add(1)
		return samples
	})
	reg := model.NewRegistry(model.Entry{Name: "recording", New: func(model.Options) (model.Model, error) {
		return &recordingModel{}, nil
	}})
	tk, err := New(Options{
		Model:        "recording",
		Registry:     reg,
		FbankOptions: features.FbankOptions{Augmenter: count},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tk.Builder().Prepare(context.Background(), f.src, filepath.Join(f.tmp, "cache"), false); err != nil {
		t.Fatal(err)
	}
	prepared := augmented.Load()
	if prepared != 2 {
		t.Fatalf("augmenter ran %d times during preparation, want 2", prepared)
	}

	ckpt := filepath.Join(f.root, "m.ckpt")
	if err := os.WriteFile(ckpt, []byte("w"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := tk.Convert(context.Background(), f.src, ckpt, f.out); err != nil {
		t.Fatal(err)
	}
	if got := augmented.Load(); got != prepared {
		t.Errorf("augmenter ran %d times during conversion", got-prepared)
	}
}

// memS3 is an in-memory bucket keyed by object key.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ storage.S3Client = (*memS3)(nil)

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[*in.Key] = data
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3PublishAndConvert(t *testing.T) {
	f := newFixture(t)
	bucket := &memS3{objects: make(map[string][]byte)}
	var logs bytes.Buffer
	tk, err := New(Options{
		Model:   "gaussian-ot",
		Storage: storage.Options{Client: bucket},
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}

	req := f.request("m")
	req.OutputDir = "s3://models/vc"
	res, err := tk.Train(context.Background(), req)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.Checkpoint != "s3://models/vc/m.ckpt" {
		t.Errorf("Checkpoint = %q", res.Checkpoint)
	}
	if _, ok := bucket.objects["vc/m.ckpt"]; !ok {
		t.Fatalf("objects = %v", bucket.objects)
	}
	if strings.Contains(logs.String(), "replacing published checkpoint") {
		t.Error("first publish reported a replacement")
	}
	if _, err := tk.Train(context.Background(), req); err != nil {
		t.Fatalf("second Train: %v", err)
	}
	if !strings.Contains(logs.String(), "replacing published checkpoint") {
		t.Errorf("second publish did not warn:\n%s", logs.String())
	}

	written, err := tk.Convert(context.Background(), f.src, res.Checkpoint, f.out)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := []string{filepath.Join(f.out, "s1.wav_m.ckpt.wav"), filepath.Join(f.out, "s2.wav_m.ckpt.wav")}
	if !reflect.DeepEqual(written, want) {
		t.Errorf("written = %v, want %v", written, want)
	}

	_, err = tk.Convert(context.Background(), f.src, "s3://models/vc/none.ckpt", f.out)
	var fe *FSError
	if !errors.As(err, &fe) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Convert(missing object) = %v, want FSError wrapping os.ErrNotExist", err)
	}
}
