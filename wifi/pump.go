package wifi

import (
	"log/slog"
	"time"
)

// nic is the radio side of a frame pump.
type nic interface {
	// PollOne handles at most one incoming frame and reports whether it did.
	PollOne() (bool, error)
	SendEth(frame []byte) error
}

// frameSource is the IP stack side of a frame pump.
type frameSource interface {
	// HandleEth writes the next outgoing frame to dst and returns its length.
	HandleEth(dst []byte) (int, error)
}

const (
	pumpIdle       = 50 * time.Millisecond
	maxSendRetries = 3
)

// pump moves frames between the radio and the stack.
type pump struct {
	nic     nic
	src     frameSource
	logger  *slog.Logger
	idle    time.Duration
	frame   []byte
	dropped int
}

func newPump(n nic, src frameSource, mtu int, logger *slog.Logger) *pump {
	return &pump{nic: n, src: src, logger: logger, idle: pumpIdle, frame: make([]byte, mtu)}
}

// run calls once until stop is closed, sleeping while both directions are idle.
func (p *pump) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !p.once() {
			time.Sleep(p.idle)
		}
	}
}

// once polls the radio and sends one queued frame. It reports whether any
// frame moved.
func (p *pump) once() bool {
	received, err := p.nic.PollOne()
	if err != nil {
		logattrs(p.logger, slog.LevelError, "wifi:poll", slog.String("err", err.Error()))
	}
	n, err := p.src.HandleEth(p.frame)
	if err != nil {
		logattrs(p.logger, slog.LevelError, "wifi:stack", slog.String("err", err.Error()))
		return received
	}
	if n == 0 {
		return received
	}
	p.send(p.frame[:n])
	return true
}

func (p *pump) send(frame []byte) {
	var err error
	for try := 0; try <= maxSendRetries; try++ {
		if err = p.nic.SendEth(frame); err == nil {
			return
		}
	}
	p.dropped++
	logattrs(p.logger, slog.LevelError, "wifi:dropped frame",
		slog.Int("len", len(frame)),
		slog.Int("dropped", p.dropped),
		slog.String("err", err.Error()),
	)
}
