package service

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/soundlab/soundlab/pkg/idx"
)

// Snapshot is one frame of signal-processing metrics pushed to dashboard
// clients. The numbers here are a stand-in source; the native engine feeds
// the real values through the same shape.
type Snapshot struct {
	CapturedAt    time.Time `json:"captured_at"`
	RMSLevelDB    float64   `json:"rms_level_db"`
	PeakLevelDB   float64   `json:"peak_level_db"`
	THDPercent    float64   `json:"thd_percent"`
	SampleRateHz  int       `json:"sample_rate_hz"`
	BufferFill    float64   `json:"buffer_fill"`
	ActiveStreams int       `json:"active_streams"`
}

// TelemetryService produces metric snapshots and tracks capture sessions.
type TelemetryService struct {
	SampleRateHz int

	activeStreams atomic.Int64
	startedAt     time.Time
}

func NewTelemetryService(sampleRateHz int) *TelemetryService {
	if sampleRateHz <= 0 {
		sampleRateHz = 48_000
	}
	return &TelemetryService{
		SampleRateHz: sampleRateHz,
		startedAt:    time.Now().UTC(),
	}
}

// Snapshot returns the current metrics frame.
func (s *TelemetryService) Snapshot(now time.Time) Snapshot {
	// Synthesized levels: a slow swell so dashboards show movement.
	phase := float64(now.UnixMilli()%10_000) / 10_000 * 2 * math.Pi
	rms := -24 + 6*math.Sin(phase)

	return Snapshot{
		CapturedAt:    now,
		RMSLevelDB:    rms,
		PeakLevelDB:   rms + 9,
		THDPercent:    0.012 + 0.004*math.Abs(math.Sin(phase/2)),
		SampleRateHz:  s.SampleRateHz,
		BufferFill:    0.5 + 0.25*math.Cos(phase),
		ActiveStreams: int(s.activeStreams.Load()),
	}
}

// StartSession allocates a capture session identifier.
func (s *TelemetryService) StartSession() idx.ID {
	return idx.New()
}

// StreamStarted and StreamStopped keep the active stream gauge current.
func (s *TelemetryService) StreamStarted() { s.activeStreams.Add(1) }
func (s *TelemetryService) StreamStopped() { s.activeStreams.Add(-1) }

// Uptime reports how long the service has been running.
func (s *TelemetryService) Uptime(now time.Time) time.Duration {
	return now.Sub(s.startedAt)
}
