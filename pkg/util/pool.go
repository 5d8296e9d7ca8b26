package util

import "runtime"

// GetOptimalPoolSize returns the pool size used for CPU-bound parallel work,
// chiefly the tree-sitter parser pool.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32)
//
//   - Minimum 4: some parallelism even on weak machines
//   - 2x CPU cores: parsing is CGO-heavy, so oversubscribe a little
//   - Maximum 32: caps memory on high-core machines
func GetOptimalPoolSize() int {
	poolSize := runtime.NumCPU() * 2

	if poolSize < 4 {
		poolSize = 4
	}
	if poolSize > 32 {
		poolSize = 32
	}

	return poolSize
}

// GetOptimalPoolSizeWithOverride returns pool size with optional override.
// If override > 0 it is used verbatim (tests, tuning); otherwise the
// CPU-derived default applies.
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
