package pipeline

import "sync/atomic"

// counters are the pipeline's monotonic event counts. Each is incremented in
// place by the component owning the event and read concurrently by Stats.
type counters struct {
	received        atomic.Uint64
	processed       atomic.Uint64
	dropped         atomic.Uint64
	inferences      atomic.Uint64
	inferenceTimeUS atomic.Uint64
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	Received     uint64  `json:"received"`     // Frames delivered by the source
	Processed    uint64  `json:"processed"`    // Frames stored into the latest-sample cache
	Dropped      uint64  `json:"dropped"`      // Frames rejected by the full streaming queue
	Inferences   uint64  `json:"inferences"`   // Completed classification passes
	AvgLatencyMS float64 `json:"avgLatencyMs"` // Mean classification latency
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Received:   c.received.Load(),
		Processed:  c.processed.Load(),
		Dropped:    c.dropped.Load(),
		Inferences: c.inferences.Load(),
	}
	if s.Inferences > 0 {
		s.AvgLatencyMS = float64(c.inferenceTimeUS.Load()/s.Inferences) / 1000
	}
	return s
}
