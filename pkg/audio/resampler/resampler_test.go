package resampler

import (
	"math"
	"testing"
)

func TestResampleSameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[2] != 0.3 {
		t.Fatalf("got %v", out)
	}
	out[0] = 9
	if in[0] == 9 {
		t.Fatal("Resample must not alias its input")
	}
}

func TestResampleInvalidRate(t *testing.T) {
	if _, err := Resample([]float32{0}, 0, 16000); err == nil {
		t.Fatal("expected error for zero source rate")
	}
}

func TestResampleDownsample(t *testing.T) {
	n := 48000
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	out, err := Resample(in, 48000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	// Allow for filter delay at the edges.
	if len(out) < 14000 || len(out) > 16200 {
		t.Fatalf("got %d samples, want ~16000", len(out))
	}
	for _, v := range out {
		if v > 1 || v < -1 {
			t.Fatalf("sample %f out of range", v)
		}
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	mono := []float32{1, 2}
	if out := Downmix(mono, 1); &out[0] != &mono[0] {
		t.Error("mono input should be returned as is")
	}
}
