package types

import "time"

const bytesPerMB = 1024 * 1024

// ScanStatistics aggregates one stream-scan session.
type ScanStatistics struct {
	BytesScanned int64         // scanned record bytes plus one per delimiter
	Records      int64         // records handed to the scanner
	Truncated    int64         // records cut to the maximum record size
	Matches      int64         // matches reported to the handler
	Elapsed      time.Duration // wall time of the session
}

// Add merges o into s. Elapsed takes the larger value since merged
// sessions run side by side.
func (s *ScanStatistics) Add(o ScanStatistics) {
	s.BytesScanned += o.BytesScanned
	s.Records += o.Records
	s.Truncated += o.Truncated
	s.Matches += o.Matches
	if o.Elapsed > s.Elapsed {
		s.Elapsed = o.Elapsed
	}
}

// ScannedMB returns the scanned volume in whole megabytes (2^20 bytes).
func (s ScanStatistics) ScannedMB() int64 {
	return s.BytesScanned / bytesPerMB
}

// Throughput returns megabytes scanned per second, or 0 when no time elapsed.
func (s ScanStatistics) Throughput() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesScanned) / bytesPerMB / secs
}
