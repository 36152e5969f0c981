package retriever

import "sync/atomic"

// counters are updated by the worker and read by anyone.
type counters struct {
	Received     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	FilterMisses atomic.Uint64
	Appended     atomic.Uint64
}

// Stats is a point-in-time copy of a retriever's counters.
type Stats struct {
	Received     uint64 `json:"received"`
	Decoded      uint64 `json:"decoded"`
	DecodeErrors uint64 `json:"decode_errors"`
	FilterMisses uint64 `json:"filter_misses"`
	Appended     uint64 `json:"appended"`
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:     c.Received.Load(),
		Decoded:      c.Decoded.Load(),
		DecodeErrors: c.DecodeErrors.Load(),
		FilterMisses: c.FilterMisses.Load(),
		Appended:     c.Appended.Load(),
	}
}
