package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// mockS3 is an in-memory S3 backend.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3 { return &mockS3{objects: make(map[string][]byte)} }

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[*in.Key] = data
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "best.ckpt")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLocalPublish(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "out")
	store, err := Open(root, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*Local); !ok {
		t.Fatalf("Open(%q) = %T, want *Local", root, store)
	}

	loc, err := PublishFile(ctx, store, writeSource(t, "weights-1"), "run.ckpt")
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if loc != filepath.Join(root, "run.ckpt") {
		t.Errorf("location = %q", loc)
	}
	if _, err := PublishFile(ctx, store, writeSource(t, "weights-2"), "run.ckpt"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(loc)
	if err != nil || string(data) != "weights-2" {
		t.Errorf("published content = %q, %v", data, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("root holds %d entries, want 1 (no temp leftovers)", len(entries))
	}

	ok, err := store.Exists(ctx, "run.ckpt")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, "missing.ckpt")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
	if _, err := store.Get(ctx, "missing.ckpt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Get(missing) = %v", err)
	}
}

func TestLocalPutShortRead(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Put(context.Background(), "x.ckpt", strings.NewReader("abc"), 10); err == nil {
		t.Fatal("expected error for short body")
	}
	if ok, _ := l.Exists(context.Background(), "x.ckpt"); ok {
		t.Error("partial blob published")
	}
}

func TestPublishMissingSource(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PublishFile(context.Background(), l, "/nonexistent/best.ckpt", "run.ckpt"); err == nil {
		t.Error("expected error")
	}
}

func TestS3Publish(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	store := NewS3(mock, "models", "voxnot/runs")

	loc, err := PublishFile(ctx, store, writeSource(t, "weights"), "run.ckpt")
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if loc != "s3://models/voxnot/runs/run.ckpt" {
		t.Errorf("location = %q", loc)
	}
	if string(mock.objects["voxnot/runs/run.ckpt"]) != "weights" {
		t.Errorf("objects = %v", mock.objects)
	}

	ok, err := store.Exists(ctx, "run.ckpt")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, "other.ckpt")
	if err != nil || ok {
		t.Errorf("Exists(other) = %v, %v", ok, err)
	}

	r, err := store.Get(ctx, "run.ckpt")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "weights" {
		t.Errorf("Get = %q", data)
	}
	if _, err := store.Get(ctx, "other.ckpt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Get(other) = %v, want os.ErrNotExist", err)
	}
}

func TestS3PutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	store := NewS3(mock, "b", "")
	if _, err := PublishFile(context.Background(), store, writeSource(t, "w"), "run.ckpt"); err == nil {
		t.Fatal("expected error")
	}
	if store.Location("run.ckpt") != "s3://b/run.ckpt" {
		t.Errorf("Location = %q", store.Location("run.ckpt"))
	}
}

func TestOpenS3(t *testing.T) {
	opts := Options{S3: S3Options{AccessKey: "k", SecretKey: "s", Endpoint: "http://localhost:9000", PathStyle: true}}
	store, err := Open("s3://bucket/prefix/", opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, ok := store.(*S3Store)
	if !ok {
		t.Fatalf("Open = %T, want *S3Store", store)
	}
	if s.bucket != "bucket" || s.prefix != "prefix" {
		t.Errorf("bucket=%q prefix=%q", s.bucket, s.prefix)
	}

	if _, err := Open("s3:///x", opts); err == nil {
		t.Error("expected error for missing bucket")
	}
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	if _, err := Open("s3://bucket", Options{}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestFetchFile(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	store, err := Open("s3://models/vc", Options{Client: mock})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PublishFile(ctx, store, writeSource(t, "weights"), "run.ckpt"); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["vc/run.ckpt"]; !ok {
		t.Fatalf("objects = %v", mock.objects)
	}

	dst := filepath.Join(t.TempDir(), "run.ckpt")
	if err := FetchFile(ctx, store, "run.ckpt", dst); err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "weights" {
		t.Errorf("fetched = %q, %v", data, err)
	}

	missing := filepath.Join(t.TempDir(), "none.ckpt")
	if err := FetchFile(ctx, store, "none.ckpt", missing); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("FetchFile(missing) = %v, want os.ErrNotExist", err)
	}
	if _, err := os.Stat(missing); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed fetch left a file behind")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		location, dir, name string
	}{
		{"s3://models/vc/run.ckpt", "s3://models/vc", "run.ckpt"},
		{"s3://models/run.ckpt", "s3://models", "run.ckpt"},
	}
	for _, tt := range tests {
		if !IsRemote(tt.location) {
			t.Errorf("IsRemote(%q) = false", tt.location)
		}
		dir, name := Split(tt.location)
		if dir != tt.dir || name != tt.name {
			t.Errorf("Split(%q) = %q, %q, want %q, %q", tt.location, dir, name, tt.dir, tt.name)
		}
	}
	if IsRemote("/data/run.ckpt") {
		t.Error("IsRemote(local path) = true")
	}
}
