package probe

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Parsed is what could be recovered from ping output. Nil fields were not found.
type Parsed struct {
	Lost *int
	RTT  *RTT
}

var (
	// Windows summary lines, English and German
	lossPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Lost = (\d+)`),
		regexp.MustCompile(`Verloren = (\d+)`),
	}

	// iputils, BSD and busybox summary: "5 packets transmitted, 4 received"
	// or "5 packets transmitted, 4 packets received"
	transmittedPattern = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)

	// "rtt min/avg/max/mdev = 9.8/10.4/11.2/0.4 ms" and the "round-trip" variant
	unixRTTPattern = regexp.MustCompile(`(?:rtt|round-trip) min/avg/max(?:/[a-z-]+)? = ([\d.]+)/([\d.]+)/([\d.]+)`)

	digitsPattern = regexp.MustCompile(`\d+`)
)

// ParseOutput scans ping output for a lost-packet count and a min/avg/max
// triple. Anything it cannot find is left nil.
func ParseOutput(output string) Parsed {
	var p Parsed

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")

		if lost, ok := parseLoss(line); ok {
			p.Lost = &lost
			continue
		}

		// Windows prints "Minimum = 9ms, Maximum = 12ms, Average = 10ms"
		if strings.Contains(line, "Minimum") {
			values := digitsPattern.FindAllString(line, -1)
			if len(values) == 3 {
				min, _ := strconv.Atoi(values[0])
				max, _ := strconv.Atoi(values[1])
				avg, _ := strconv.Atoi(values[2])
				p.RTT = &RTT{Min: min, Avg: avg, Max: max}
			}
			continue
		}

		if m := unixRTTPattern.FindStringSubmatch(line); m != nil {
			min, err1 := strconv.ParseFloat(m[1], 64)
			avg, err2 := strconv.ParseFloat(m[2], 64)
			max, err3 := strconv.ParseFloat(m[3], 64)
			if err1 == nil && err2 == nil && err3 == nil {
				p.RTT = &RTT{
					Min: int(math.Round(min)),
					Avg: int(math.Round(avg)),
					Max: int(math.Round(max)),
				}
			}
		}
	}

	return p
}

func parseLoss(line string) (int, bool) {
	for _, pattern := range lossPatterns {
		if m := pattern.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n, true
			}
		}
	}

	if m := transmittedPattern.FindStringSubmatch(line); m != nil {
		sent, err1 := strconv.Atoi(m[1])
		recv, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil && sent >= recv {
			return sent - recv, true
		}
	}
	return 0, false
}
