package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPProbe measures connect time to host:port, for targets that drop ICMP
type TCPProbe struct {
	BaseProbe
	Port int
}

// NewTCPProbe creates a new TCP probe for the given target
func NewTCPProbe(name, host string, port int, timeout time.Duration, pings int) *TCPProbe {
	if pings < 1 {
		pings = 1
	}
	return &TCPProbe{
		BaseProbe: BaseProbe{
			TargetName: name,
			TargetHost: host,
			Timeout:    timeout,
			Pings:      pings,
		},
		Port: port,
	}
}

// Type returns "tcp"
func (p *TCPProbe) Type() string {
	return "tcp"
}

// Execute performs a burst of TCP connects
func (p *TCPProbe) Execute(ctx context.Context) (Sample, error) {
	start := time.Now()
	address := net.JoinHostPort(p.TargetHost, fmt.Sprintf("%d", p.Port))

	// Divide timeout among connects, at least one second each
	dialer := &net.Dialer{Timeout: time.Second}
	if p.Timeout > 0 && p.Timeout/time.Duration(p.Pings) > dialer.Timeout {
		dialer.Timeout = p.Timeout / time.Duration(p.Pings)
	}

	var rtts []time.Duration
	lost := 0

	for i := 0; i < p.Pings; i++ {
		if ctx.Err() != nil {
			lost += p.Pings - i
			break
		}

		connStart := time.Now()
		conn, err := dialer.DialContext(ctx, "tcp", address)
		latency := time.Since(connStart)
		if err != nil {
			lost++
			continue
		}
		conn.Close()
		rtts = append(rtts, latency)

		// Small delay between connects to avoid overwhelming the target
		if i < p.Pings-1 {
			time.Sleep(10 * time.Millisecond)
		}
	}

	return p.NewSample(start, burstParsed(rtts, lost)), nil
}

// burstParsed reduces individual round trips to a Parsed summary
func burstParsed(rtts []time.Duration, lost int) Parsed {
	parsed := Parsed{Lost: &lost}
	if len(rtts) == 0 {
		return parsed
	}

	min, max := rtts[0], rtts[0]
	var total time.Duration
	for _, rtt := range rtts {
		if rtt < min {
			min = rtt
		}
		if rtt > max {
			max = rtt
		}
		total += rtt
	}

	parsed.RTT = &RTT{
		Min: durationToMs(min),
		Avg: durationToMs(total / time.Duration(len(rtts))),
		Max: durationToMs(max),
	}
	return parsed
}
