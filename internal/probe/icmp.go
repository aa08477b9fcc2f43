package probe

import (
	"context"
	"fmt"
	"math"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPProbe sends the burst itself instead of shelling out to ping
type ICMPProbe struct {
	BaseProbe
	privileged bool
}

// NewICMPProbe creates a new ICMP probe for the given target
func NewICMPProbe(name, host string, timeout time.Duration, pings int) *ICMPProbe {
	if pings < 1 {
		pings = 1
	}
	return &ICMPProbe{
		BaseProbe: BaseProbe{
			TargetName: name,
			TargetHost: host,
			Timeout:    timeout,
			Pings:      pings,
		},
		privileged: true, // Try privileged mode first
	}
}

// Type returns "icmp"
func (p *ICMPProbe) Type() string {
	return "icmp"
}

// Execute performs one ICMP burst
func (p *ICMPProbe) Execute(ctx context.Context) (Sample, error) {
	start := time.Now()

	pinger, err := probing.NewPinger(p.TargetHost)
	if err != nil {
		// unresolvable hosts count as unreachable, like ping's own exit status
		s := p.NewSample(start, Parsed{})
		s.Error = fmt.Sprintf("failed to create pinger: %v", err)
		return s, nil
	}

	pinger.Count = p.Pings
	pinger.SetPrivileged(p.privileged)
	// ping(8) defaults to one request per second; keep bursts short
	pinger.Interval = 200 * time.Millisecond
	if p.Timeout > 0 {
		pinger.Timeout = p.Timeout
	}

	err = pinger.RunWithContext(ctx)
	if err != nil && p.privileged {
		p.privileged = false
		pinger.SetPrivileged(false)
		err = pinger.RunWithContext(ctx)
	}
	if err != nil {
		s := p.NewSample(start, Parsed{})
		s.Error = err.Error()
		return s, fmt.Errorf("%w: %s: %v", ErrLaunch, p.TargetHost, err)
	}

	return p.NewSample(start, parsedFromStats(pinger.Statistics())), nil
}

func parsedFromStats(stats *probing.Statistics) Parsed {
	lost := stats.PacketsSent - stats.PacketsRecv
	if lost < 0 {
		lost = 0
	}

	parsed := Parsed{Lost: &lost}
	if stats.PacketsRecv > 0 {
		parsed.RTT = &RTT{
			Min: durationToMs(stats.MinRtt),
			Avg: durationToMs(stats.AvgRtt),
			Max: durationToMs(stats.MaxRtt),
		}
	}
	return parsed
}

func durationToMs(d time.Duration) int {
	return int(math.Round(float64(d) / float64(time.Millisecond)))
}
