// Package testutil provides testing utilities for geokv.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Points
//
//	rng := testutil.NewRNG(seed)
//	pts := rng.Points(100, [2]float64{-180, 180}, [2]float64{-90, 90})
//
// # Readers
//
// SliceReader supplies a fixed slice of rows and counts Close calls, which
// lets tests observe that a scan releases its reader exactly once.
//
//	r := testutil.NewSliceReader(rows...)
//	r.FailAfter(3, errBoom)
package testutil
