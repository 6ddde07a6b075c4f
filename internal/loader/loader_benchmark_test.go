package loader

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicolovejoy/housing-data-v1/internal/store"
)

func BenchmarkRun(b *testing.B) {
	batchSizes := []int{50, 200, 500}
	recordCounts := []int{1000, 5000}

	for _, batchSize := range batchSizes {
		for _, recordCount := range recordCounts {
			b.Run(fmt.Sprintf("BatchSize_%d_Records_%d", batchSize, recordCount), func(b *testing.B) {
				s, err := store.NewTestStore()
				require.NoError(b, err)
				defer s.Close()

				l := New(s, testLogger())
				records := generateRecords(recordCount)
				opts := Options{BatchSize: batchSize}

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					b.StopTimer()
					require.NoError(b, s.Reset())
					b.StartTimer()

					report, err := l.Run(context.Background(), records, opts)
					require.NoError(b, err)
					require.Equal(b, recordCount, report.Inserted)
				}
				b.ReportMetric(float64(recordCount), "records/op")
			})
		}
	}
}
