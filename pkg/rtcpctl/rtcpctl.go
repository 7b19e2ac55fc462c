// Package rtcpctl implements the RTCP control endpoint (spec.md section 6):
// receiver report (RR) generation plus an extended report (XR) carrying a
// DLRR block, using github.com/pion/rtcp for wire encoding. It does not
// generate sender reports, and no report block carries the session's
// measured latency.
package rtcpctl

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// SessionLookup resolves a source_id to the metrics a control endpoint
// needs to build a report, without the RTCP side owning the session
// (spec.md section 9's "weak back-reference", resolved under the session
// table's lock rather than by holding a pointer).
type SessionLookup func(sourceID uint32) (SessionMetrics, bool)

// SessionMetrics is the subset of per-session state RTCP reporting reads.
type SessionMetrics struct {
	PacketsReceived uint32
	OctetsReceived  uint32
	PacketsLost     uint32
	FractionLost    uint8
	Jitter          uint32
	LastSeq         uint32
	LastSRNTP       uint32 // middle 32 bits of the last SR's NTP timestamp seen
	LastSRRecvTime  time.Time
	LatencySeconds  float64
}

// Controller builds RTCP compound packets for one local source_id. Reports
// are spaced by the fixed minInterval (5 s); the interval does not adapt to
// session bandwidth or membership, and bwFraction is not used.
type Controller struct {
	mu          sync.Mutex
	localSSRC   uint32
	lookup      SessionLookup
	minInterval time.Duration
	bwFraction  float64 // fraction of session bandwidth reserved for RTCP

	nextDue time.Time
	now     func() time.Time
}

// NewController builds a controller for localSSRC, reporting on remote
// sessions resolved through lookup.
func NewController(localSSRC uint32, lookup SessionLookup) *Controller {
	return &Controller{
		localSSRC:   localSSRC,
		lookup:      lookup,
		minInterval: 5 * time.Second,
		bwFraction:  0.05,
		now:         time.Now,
	}
}

// Due reports whether the report interval has elapsed.
func (c *Controller) Due() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextDue.IsZero() || !c.now().Before(c.nextDue)
}

// BuildReceiverReport composes an RR + XR compound packet for sourceID,
// scheduling the next report minInterval from now. Returns ok=false
// if sourceID is not currently known to lookup.
func (c *Controller) BuildReceiverReport(sourceID uint32) (packets []rtcp.Packet, ok bool) {
	m, found := c.lookup(sourceID)
	if !found {
		return nil, false
	}

	rr := &rtcp.ReceiverReport{
		SSRC: c.localSSRC,
		Reports: []rtcp.ReceptionReport{
			{
				SSRC:               sourceID,
				FractionLost:       m.FractionLost,
				TotalLost:          m.PacketsLost,
				LastSequenceNumber: m.LastSeq,
				Jitter:             m.Jitter,
				LastSenderReport:   m.LastSRNTP,
				Delay:              delaySinceLastSR(m, c.now()),
			},
		},
	}

	xr := &rtcp.ExtendedReport{
		SenderSSRC: c.localSSRC,
		Reports: []rtcp.ReportBlock{
			&rtcp.DLRRReportBlock{
				Reports: []rtcp.DLRRReport{
					{
						SSRC:   sourceID,
						LastRR: m.LastSRNTP,
						DLRR:   delaySinceLastSR(m, c.now()),
					},
				},
			},
		},
	}

	c.mu.Lock()
	c.nextDue = c.now().Add(c.minInterval)
	c.mu.Unlock()

	return []rtcp.Packet{rr, xr}, true
}

// delaySinceLastSR computes the RTCP "delay since last SR" field: time
// since the remote's last SR was received, expressed in units of 1/65536
// seconds, per RFC 3550 section 6.4.1.
func delaySinceLastSR(m SessionMetrics, now time.Time) uint32 {
	if m.LastSRRecvTime.IsZero() {
		return 0
	}
	d := now.Sub(m.LastSRRecvTime).Seconds()
	if d < 0 {
		d = 0
	}
	return uint32(d * 65536)
}
