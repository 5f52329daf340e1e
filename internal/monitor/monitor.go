// Package monitor follows the self-test firmware over USB serial and judges
// the board from its log output.
package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the firmware's USB CDC console.
const DefaultBaudRate = 115200

// Port is a serial port found on the host.
type Port struct {
	Name string
}

// Ports lists the serial ports available on the host.
func Ports() ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	ports := make([]Port, 0, len(names))
	for _, name := range names {
		ports = append(ports, Port{Name: name})
	}
	return ports, nil
}

// Open opens the board console at baud.
func Open(port string, baud int) (serial.Port, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return p, nil
}

// Monitor reads firmware records and keeps a running summary.
type Monitor struct {
	summary Summary
	logger  *slog.Logger
	// OnRecord, if set, is called for every parsed record.
	OnRecord func(Record)
}

func New(logger *slog.Logger) *Monitor {
	return &Monitor{logger: logger}
}

// Summary returns a copy of the current summary.
func (m *Monitor) Summary() Summary { return m.summary }

// Run consumes lines from r until EOF or ctx is done. Closing r is the
// caller's job; cancelling ctx while a read blocks requires closing r.
func (m *Monitor) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- scanner.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				err := <-errc
				switch {
				case err == nil, errors.Is(err, io.EOF):
					return nil
				case ctx.Err() != nil:
					return ctx.Err()
				}
				return fmt.Errorf("error reading from serial port: %w", err)
			}
			m.handle(line)
		}
	}
}

func (m *Monitor) handle(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	rec, err := ParseLine(line)
	if err != nil {
		if m.logger != nil {
			m.logger.Debug("monitor:skip line", slog.String("line", line), slog.String("err", err.Error()))
		}
		return
	}
	m.summary.Add(rec)
	if m.OnRecord != nil {
		m.OnRecord(rec)
	}
}
