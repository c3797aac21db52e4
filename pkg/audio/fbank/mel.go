package fbank

import "math"

// filter is one triangular mel filter stored sparsely: weights[j] applies to
// FFT bin start+j.
type filter struct {
	start   int
	weights []float64
}

func (f filter) apply(power []float64) float64 {
	var sum float64
	for j, w := range f.weights {
		sum += w * power[f.start+j]
	}
	return sum
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// hzToMel uses the HTK mel scale.
func hzToMel(hz float64) float64 { return 2595.0 * math.Log10(1.0+hz/700.0) }

func melToHz(mel float64) float64 { return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0) }

// melFilters builds numMels triangular filters over fftSize/2+1 bins with
// centers equally spaced on the mel scale between lowFreq and highFreq.
// Every filter spans at least one bin.
func melFilters(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) []filter {
	half := fftSize/2 + 1
	lo, hi := hzToMel(lowFreq), hzToMel(highFreq)
	step := (hi - lo) / float64(numMels+1)

	edges := make([]int, numMels+2)
	for i := range edges {
		bin := int(math.Round(melToHz(lo+float64(i)*step) * float64(fftSize) / float64(sampleRate)))
		bin = min(bin, half-1)
		if i > 0 && bin <= edges[i-1] {
			bin = edges[i-1] + 1
		}
		edges[i] = bin
	}

	bank := make([]filter, numMels)
	for m := range bank {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		end := min(right, half-1)
		if end < left {
			bank[m] = filter{start: min(left, half-1), weights: []float64{1}}
			continue
		}
		f := filter{start: left, weights: make([]float64, end-left+1)}
		for k := left; k <= end; k++ {
			switch {
			case k < center:
				f.weights[k-left] = float64(k-left) / float64(center-left)
			case right > center:
				f.weights[k-left] = float64(right-k) / float64(right-center)
			default:
				f.weights[k-left] = 1
			}
		}
		bank[m] = f
	}
	return bank
}
