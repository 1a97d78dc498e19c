// Package host describes the machine a benchmark runs on.
package host

import (
	"fmt"
	"io"
	goruntime "runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

type Info struct {
	LogicalCPUs   int
	PhysicalCores int
	Brand         string
	Vendor        string

	AVX2    bool
	FMA     bool
	AVX512F bool
	NEON    bool

	Features []string

	GoVersion string
	OS        string
	Arch      string
}

// Describe probes the current host.
func Describe() Info {
	brand := strings.TrimSpace(cpuid.CPU.BrandName)
	if brand == "" {
		brand = "unknown"
	}

	return Info{
		LogicalCPUs:   goruntime.NumCPU(),
		PhysicalCores: cpuid.CPU.PhysicalCores,
		Brand:         brand,
		Vendor:        cpuid.CPU.VendorString,
		AVX2:          cpu.X86.HasAVX2,
		FMA:           cpu.X86.HasFMA,
		AVX512F:       cpuid.CPU.Supports(cpuid.AVX512F),
		NEON:          cpu.ARM64.HasASIMD,
		Features:      cpuid.CPU.FeatureSet(),
		GoVersion:     goruntime.Version(),
		OS:            goruntime.GOOS,
		Arch:          goruntime.GOARCH,
	}
}

// SIMD returns the vector extensions relevant to inference kernels.
func (i Info) SIMD() []string {
	var out []string

	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"avx2", i.AVX2},
		{"fma", i.FMA},
		{"avx512f", i.AVX512F},
		{"neon", i.NEON},
	} {
		if f.ok {
			out = append(out, f.name)
		}
	}

	return out
}

// WriteBanner prints the processor count, the CPU brand and the thread
// count the run was configured with.
func WriteBanner(w io.Writer, info Info, threads int) {
	_, _ = fmt.Fprintf(w, "nb processors %d\n", info.LogicalCPUs)
	_, _ = fmt.Fprintln(w, info.Brand)
	_, _ = fmt.Fprintf(w, "INFO: Using num_threads == %d\n", threads)
}
