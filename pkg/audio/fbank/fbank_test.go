package fbank

import (
	"math"
	"math/rand"
	"testing"
)

func sine(freq float64, n, rate int) []float32 {
	pcm := make([]float32, n)
	for i := range pcm {
		pcm[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return pcm
}

func TestHammingWindow(t *testing.T) {
	w := hammingWindow(400)
	if math.Abs(w[0]-0.08) > 0.01 {
		t.Errorf("w[0] = %f, want ~0.08", w[0])
	}
	if math.Abs(w[199]-1.0) > 0.02 {
		t.Errorf("w[199] = %f, want ~1.0", w[199])
	}
}

func TestMelRoundTrip(t *testing.T) {
	if hz := melToHz(hzToMel(1000)); math.Abs(hz-1000) > 0.1 {
		t.Errorf("melToHz(hzToMel(1000)) = %f", hz)
	}
}

func TestMelFiltersNonEmpty(t *testing.T) {
	bank := melFilters(80, 512, 16000, 20, 7600)
	if len(bank) != 80 {
		t.Fatalf("got %d filters, want 80", len(bank))
	}
	for i, f := range bank {
		var sum float64
		for _, w := range f.weights {
			sum += w
		}
		if sum <= 0 {
			t.Errorf("filter %d has no weight", i)
		}
		if f.start+len(f.weights) > 257 {
			t.Errorf("filter %d exceeds spectrum", i)
		}
	}
}

func TestFFTInverse(t *testing.T) {
	n := 16
	re := make([]float64, n)
	im := make([]float64, n)
	orig := make([]float64, n)
	for i := range re {
		re[i] = math.Sin(float64(i)) + 0.5
		orig[i] = re[i]
	}
	fft(re, im)
	// DC bin is the sum of the input.
	var sum float64
	for _, v := range orig {
		sum += v
	}
	if math.Abs(re[0]-sum) > 1e-9 {
		t.Errorf("DC = %f, want %f", re[0], sum)
	}
	ifft(re, im)
	for i := range re {
		if math.Abs(re[i]-orig[i]) > 1e-9 || math.Abs(im[i]) > 1e-9 {
			t.Fatalf("sample %d = (%f,%f), want (%f,0)", i, re[i], im[i], orig[i])
		}
	}
}

func TestExtractShape(t *testing.T) {
	e := New(Config{})
	features := e.Extract(sine(440, 16000, 16000))
	want := (16000-400)/160 + 1
	if len(features) != want {
		t.Fatalf("got %d frames, want %d", len(features), want)
	}
	for _, f := range features {
		if len(f) != 80 {
			t.Fatalf("frame has %d bins, want 80", len(f))
		}
	}
	if e.Extract(make([]float32, 10)) != nil {
		t.Error("short input should produce nil")
	}
}

func TestZeroConfigDefaults(t *testing.T) {
	got := New(Config{}).Config()
	want := DefaultConfig()
	want.PreEmphasis = 0
	if got != want {
		t.Errorf("New(Config{}).Config() = %+v, want %+v", got, want)
	}

	got = New(Config{SampleRate: 8000, LowFreq: 60}).Config()
	if got.LowFreq != 60 || got.HighFreq != 3600 {
		t.Errorf("LowFreq, HighFreq = %v, %v, want 60, 3600", got.LowFreq, got.HighFreq)
	}
}

func TestGriffinLimLength(t *testing.T) {
	e := New(Config{})
	features := e.Extract(sine(300, 8000, 16000))
	out := e.GriffinLim(features, 4, rand.New(rand.NewSource(1)))
	want := (len(features)-1)*160 + 400
	if len(out) != want {
		t.Fatalf("got %d samples, want %d", len(out), want)
	}
	var energy float64
	for _, v := range out {
		if math.Abs(float64(v)) > 1 {
			t.Fatalf("sample %f clips", v)
		}
		energy += float64(v * v)
	}
	if energy == 0 {
		t.Error("reconstruction is silent")
	}
}
