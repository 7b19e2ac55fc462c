// Package endpoint parses the receiver core's endpoint URI grammar
// (spec.md section 6): protocol://host[:port][/path][?query]. It does not
// implement RTSP session control — the rtsp token is recognized but its
// state machine is explicitly out of scope (spec.md section 9).
package endpoint

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/arzzra/audiopipe/pkg/errs"
)

// Protocol is one of the recognized tokens from spec.md section 6.
type Protocol string

const (
	ProtoRTP      Protocol = "rtp"
	ProtoRTPRS8M  Protocol = "rtp+rs8m"
	ProtoRS8M     Protocol = "rs8m"
	ProtoRTPLDPC  Protocol = "rtp+ldpc"
	ProtoLDPC     Protocol = "ldpc"
	ProtoRTCP     Protocol = "rtcp"
	ProtoRTSP     Protocol = "rtsp"
)

var defaultPorts = map[Protocol]uint16{
	ProtoRTP:     5004,
	ProtoRTPRS8M: 5004,
	ProtoRS8M:    5004,
	ProtoRTPLDPC: 5004,
	ProtoLDPC:    5004,
	ProtoRTCP:    5005,
	ProtoRTSP:    554,
}

var recognized = map[Protocol]bool{
	ProtoRTP: true, ProtoRTPRS8M: true, ProtoRS8M: true,
	ProtoRTPLDPC: true, ProtoLDPC: true, ProtoRTCP: true, ProtoRTSP: true,
}

// Endpoint is a (protocol, host, port) tuple identifying one half of a
// transport association, plus whatever path/query the URI carried.
type Endpoint struct {
	Protocol Protocol
	Host     string
	Port     uint16
	Path     string
	Query    url.Values
}

// HasFEC reports whether the endpoint's protocol token implies FEC
// membership on the associated RTP stream.
func (e Endpoint) HasFEC() bool {
	switch e.Protocol {
	case ProtoRTPRS8M, ProtoRS8M, ProtoRTPLDPC, ProtoLDPC:
		return true
	default:
		return false
	}
}

// IsRepairOnly reports whether the protocol token names a bare repair
// stream (rs8m/ldpc without the rtp+ prefix) rather than an audio stream
// that also happens to carry FEC membership.
func (e Endpoint) IsRepairOnly() bool {
	return e.Protocol == ProtoRS8M || e.Protocol == ProtoLDPC
}

// Parse parses an endpoint URI per spec.md section 6's grammar.
func Parse(raw string) (Endpoint, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Endpoint{}, errs.InvalidConfig("endpoint: missing protocol in " + raw)
	}
	proto := Protocol(scheme)
	if !recognized[proto] {
		return Endpoint{}, errs.InvalidConfig("endpoint: unrecognized protocol token " + scheme)
	}

	u, err := url.Parse("proto://" + rest)
	if err != nil {
		return Endpoint{}, errs.InvalidConfig("endpoint: " + err.Error())
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, errs.InvalidConfig("endpoint: missing host in " + raw)
	}
	if ip := net.ParseIP(host); ip != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	port := defaultPorts[proto]
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Endpoint{}, errs.InvalidConfig("endpoint: bad port " + p)
		}
		port = uint16(n)
	}

	return Endpoint{
		Protocol: proto,
		Host:     host,
		Port:     port,
		Path:     u.Path,
		Query:    u.Query(),
	}, nil
}
