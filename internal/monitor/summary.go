package monitor

import (
	"fmt"
	"math"
	"strings"

	"github.com/henrikRod/jarvis-selftest/internal/config"
)

// Status of a self-test step as seen on the serial output.
type Status int

const (
	StatusUnknown Status = iota
	StatusOK
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Step is the outcome of one firmware step.
type Step struct {
	Status Status
	// Detail is the IP address on success or the error text on failure.
	Detail string
}

// ChannelStats tracks the dBFS of one microphone channel across reports.
type ChannelStats struct {
	Min, Max float64
	sum      float64
	n        int
}

func (c *ChannelStats) add(db float64) {
	if c.n == 0 || db < c.Min {
		c.Min = db
	}
	if c.n == 0 || db > c.Max {
		c.Max = db
	}
	c.sum += db
	c.n++
}

// Mean returns the average dBFS, or NaN without reports.
func (c ChannelStats) Mean() float64 {
	if c.n == 0 {
		return math.NaN()
	}
	return c.sum / float64(c.n)
}

// Summary aggregates the records of a single boot of the board.
type Summary struct {
	Boots        int
	WiFi         Step
	Amp          Step
	Mic          Step
	Reports      int
	ReadFailures int
	Malformed    int
	Left, Right  ChannelStats
}

// Add folds rec into the summary. A new boot clears the previous one.
func (s *Summary) Add(rec Record) {
	switch rec.Msg {
	case "selftest:start", "wifitest:start":
		boots := s.Boots + 1
		*s = Summary{Boots: boots}
	case "wifi:connected", "wifitest:connected":
		s.WiFi = Step{Status: StatusOK, Detail: rec.Attr("ip")}
	case "wifi:failed", "wifi:unavailable", "wifitest:connect failed", "wifitest:radio init failed":
		s.WiFi = Step{Status: StatusFailed, Detail: rec.Attr("err")}
	case "amp:ok":
		s.Amp = Step{Status: StatusOK, Detail: rec.Attr("frames") + " frames"}
	case "amp:init failed", "amp:write failed":
		s.Amp = Step{Status: StatusFailed, Detail: joinDetail(rec.Attr("err"), rec.Attr("hint"))}
	case "mic:init failed":
		s.Mic = Step{Status: StatusFailed, Detail: joinDetail(rec.Attr("err"), rec.Attr("hint"))}
	case "mic:read failed":
		s.ReadFailures++
	case "mic:levels":
		l, errl := rec.Float("dbfs_l")
		r, errr := rec.Float("dbfs_r")
		if errl != nil || errr != nil {
			s.Malformed++
			return
		}
		if s.Mic.Status == StatusUnknown {
			s.Mic.Status = StatusOK
		}
		s.Reports++
		s.Left.add(l)
		s.Right.add(r)
	}
}

func joinDetail(err, hint string) string {
	if hint == "" {
		return err
	}
	return err + " (" + hint + ")"
}

// Channel returns the stats for "L" or "R".
func (s *Summary) Channel(name string) ChannelStats {
	if name == "R" {
		return s.Right
	}
	return s.Left
}

// Verdict is the pass/fail outcome of a monitored run.
type Verdict struct {
	Pass     bool
	Problems []string
}

func (v Verdict) String() string {
	if v.Pass {
		return "PASS"
	}
	return "FAIL: " + strings.Join(v.Problems, "; ")
}

// Evaluate judges the summary against the monitor thresholds.
func (s *Summary) Evaluate(cfg config.MonitorConfig) Verdict {
	var problems []string
	if cfg.RequireWiFi && s.WiFi.Status != StatusOK {
		problems = append(problems, fmt.Sprintf("wifi %s %s", s.WiFi.Status, s.WiFi.Detail))
	}
	if s.Amp.Status != StatusOK {
		problems = append(problems, fmt.Sprintf("amplifier %s %s", s.Amp.Status, s.Amp.Detail))
	}
	if s.Mic.Status == StatusFailed {
		problems = append(problems, "microphone failed "+s.Mic.Detail)
	}
	if s.Reports < cfg.MinReports {
		problems = append(problems, fmt.Sprintf("only %d of %d level reports", s.Reports, cfg.MinReports))
	}
	if s.Reports > 0 {
		for _, name := range cfg.Channels {
			ch := s.Channel(name)
			switch {
			case ch.Max <= cfg.FloorDBFS:
				problems = append(problems, fmt.Sprintf("channel %s silent (max %.1f dBFS)", name, ch.Max))
			case ch.Min >= cfg.ClipDBFS:
				problems = append(problems, fmt.Sprintf("channel %s saturated (min %.1f dBFS)", name, ch.Min))
			case s.Reports >= 2 && ch.Min == ch.Max:
				problems = append(problems, fmt.Sprintf("channel %s stuck at %.1f dBFS", name, ch.Min))
			}
		}
	}
	return Verdict{Pass: len(problems) == 0, Problems: problems}
}
