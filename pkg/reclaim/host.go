package reclaim

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// HostAccelerator is the CPU device. It has no pool outside the Go heap, so
// ReleaseIdle is a no-op; it exists so that "cpu" is a valid device name and
// so the host can be described alongside real accelerators.
type HostAccelerator struct{}

// Name implements [Accelerator].
func (HostAccelerator) Name() string { return "cpu" }

// ReleaseIdle implements [Accelerator].
func (HostAccelerator) ReleaseIdle() error { return nil }

// Describe returns a one-line description of the host CPU.
func (HostAccelerator) Describe() string {
	var simd []string
	for _, f := range []cpuid.FeatureID{cpuid.AVX2, cpuid.AVX512F, cpuid.FMA3, cpuid.ASIMD} {
		if cpuid.CPU.Supports(f) {
			simd = append(simd, f.String())
		}
	}
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s (%d physical / %d logical cores, simd: %s)",
		brand, Workers(), runtime.NumCPU(), strings.Join(simd, ","))
}

// Workers returns the number of workers to use for CPU-bound stages:
// physical cores when cpuid can detect them, otherwise runtime.NumCPU().
func Workers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
