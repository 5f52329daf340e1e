// Package wifi associates the board with an access point in station mode.
package wifi

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	ErrNoSSID      = errors.New("wifi: no SSID configured")
	ErrJoinTimeout = errors.New("wifi: join timed out")
	ErrDHCPTimeout = errors.New("wifi: DHCP did not complete")
)

// Config holds the station credentials and timings.
type Config struct {
	SSID string
	// Password for WPA2 networks. An empty password joins an open network.
	Password string
	// Hostname requested over DHCP.
	Hostname string
	// JoinTimeout bounds the whole association attempt, retries included.
	JoinTimeout time.Duration
	// RetryDelay is the pause between failed association attempts.
	RetryDelay time.Duration
	// DHCPTimeout bounds the address lease request after association.
	DHCPTimeout time.Duration
	Logger      *slog.Logger
}

// DefaultConfig returns the timings used by the firmware programs.
func DefaultConfig(ssid, password string) Config {
	return Config{
		SSID:        ssid,
		Password:    password,
		Hostname:    "jarvis",
		JoinTimeout: 15 * time.Second,
		RetryDelay:  300 * time.Millisecond,
		DHCPTimeout: 8 * time.Second,
	}
}

// Joiner is a radio able to attempt a single association.
type Joiner interface {
	JoinWPA2(ssid, pass string) error
}

// Join retries j.JoinWPA2 until it succeeds, ctx is done or cfg.JoinTimeout
// elapses. It returns the number of attempts made. Running out of time
// yields ErrJoinTimeout, cancellation of ctx yields ctx.Err(); both are
// joined with the last attempt's error.
func Join(parent context.Context, j Joiner, cfg Config) (attempts int, err error) {
	if cfg.SSID == "" {
		return 0, ErrNoSSID
	}
	ctx := parent
	if cfg.JoinTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, cfg.JoinTimeout)
		defer cancel()
	}
	if cfg.Password == "" {
		logattrs(cfg.Logger, slog.LevelInfo, "wifi:joining open network", slog.String("ssid", cfg.SSID))
	} else {
		logattrs(cfg.Logger, slog.LevelInfo, "wifi:joining WPA2 network", slog.String("ssid", cfg.SSID), slog.Int("passlen", len(cfg.Password)))
	}
	start := time.Now()
	for {
		attempts++
		err = j.JoinWPA2(cfg.SSID, cfg.Password)
		if err == nil {
			logattrs(cfg.Logger, slog.LevelInfo, "wifi:joined",
				slog.Int("attempts", attempts),
				slog.Duration("elapsed", time.Since(start)),
			)
			return attempts, nil
		}
		logattrs(cfg.Logger, slog.LevelWarn, "wifi:join failed", slog.Int("attempt", attempts), slog.String("err", err.Error()))
		select {
		case <-ctx.Done():
			if perr := parent.Err(); perr != nil {
				return attempts, errors.Join(perr, err)
			}
			return attempts, errors.Join(ErrJoinTimeout, err)
		case <-time.After(cfg.RetryDelay):
		}
	}
}

func logattrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
