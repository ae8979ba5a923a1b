package benchmark_test

import (
	"testing"
)

// BenchmarkBulkLoad compares record-at-a-time index maintenance with the
// deferred load path on the same workload.
// Run with: go test -bench=BenchmarkBulkLoad ./benchmark_test/... -benchmem
func BenchmarkBulkLoad(b *testing.B) {
	b.Run("Standard", func(b *testing.B) {
		for _, backend := range benchBackends {
			b.Run(backend.name, func(b *testing.B) {
				db := openBenchDatabase(b, backend.open(b))
				w := newWorkload(b.N, 500)

				b.ResetTimer()
				b.ReportAllocs()
				if err := db.Begin(true); err != nil {
					b.Fatal(err)
				}
				games, err := db.File("games")
				if err != nil {
					b.Fatal(err)
				}
				for i := 0; i < b.N; i++ {
					if _, err := games.Put(w.record(i)); err != nil {
						b.Fatal(err)
					}
				}
				if err := db.Commit(); err != nil {
					b.Fatal(err)
				}
			})
		}
	})

	b.Run("Deferred", func(b *testing.B) {
		for _, backend := range benchBackends {
			b.Run(backend.name, func(b *testing.B) {
				db := openBenchDatabase(b, backend.open(b))
				w := newWorkload(b.N, 500)

				b.ResetTimer()
				b.ReportAllocs()
				seedDeferred(b, db, w, b.N)
			})
		}
	})
}
