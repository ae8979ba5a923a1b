// Package testutil provides testing utilities for solentbase.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded generators for record numbers and index values,
// and a conformance suite for store adapters.
//
// # Random Record Generation
//
//	rng := testutil.NewRNG(seed)
//	records := rng.Records(100, 65280) // sorted, unique, in [0, 65280)
//
// # Store Conformance
//
//	func TestStoreContract(t *testing.T) {
//		testutil.RunStoreSuite(t, func(t *testing.T) store.Store {
//			return memstore.New()
//		})
//	}
package testutil
