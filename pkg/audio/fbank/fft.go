package fbank

import "math"

// fft performs an in-place radix-2 Cooley-Tukey FFT.
// re and im must have the same power-of-two length.
func fft(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}

	for i, j := 0, 0; i < n-1; i++ {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
		k := n >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		angle := -2.0 * math.Pi / float64(size)
		wr, wi := math.Cos(angle), math.Sin(angle)
		for start := 0; start < n; start += size {
			tr, ti := 1.0, 0.0
			for k := 0; k < half; k++ {
				u, v := start+k, start+k+half
				xr := tr*re[v] - ti*im[v]
				xi := tr*im[v] + ti*re[v]
				re[v], im[v] = re[u]-xr, im[u]-xi
				re[u] += xr
				im[u] += xi
				tr, ti = tr*wr-ti*wi, tr*wi+ti*wr
			}
		}
	}
}

// ifft is the inverse of fft, scaled by 1/n.
func ifft(re, im []float64) {
	for i := range im {
		im[i] = -im[i]
	}
	fft(re, im)
	n := float64(len(re))
	for i := range re {
		re[i] /= n
		im[i] = -im[i] / n
	}
}
