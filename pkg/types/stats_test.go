package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScanStatistics_Throughput(t *testing.T) {
	s := ScanStatistics{
		BytesScanned: 10485760,
		Elapsed:      2 * time.Second,
	}

	assert.Equal(t, 5.0, s.Throughput())
	assert.Equal(t, int64(10), s.ScannedMB())
}

func TestScanStatistics_ThroughputZeroElapsed(t *testing.T) {
	s := ScanStatistics{BytesScanned: 1024}
	assert.Zero(t, s.Throughput())
}

func TestScanStatistics_Add(t *testing.T) {
	s := ScanStatistics{BytesScanned: 10, Records: 2, Matches: 1, Elapsed: time.Second}
	s.Add(ScanStatistics{BytesScanned: 5, Records: 1, Truncated: 1, Matches: 3, Elapsed: 3 * time.Second})

	assert.Equal(t, int64(15), s.BytesScanned)
	assert.Equal(t, int64(3), s.Records)
	assert.Equal(t, int64(1), s.Truncated)
	assert.Equal(t, int64(4), s.Matches)
	assert.Equal(t, 3*time.Second, s.Elapsed)
}
