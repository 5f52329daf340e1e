//go:build rp2040 || rp2350

// Command wifitest is a Wi-Fi connectivity smoke test for the Pico W.
// It joins the network from the credentials package, reports the leased
// address and keeps the LED lit while associated.
//
//	tinygo flash -target=pico -monitor ./firmware/wifitest
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/henrikRod/jarvis-selftest/firmware/credentials"
	"github.com/henrikRod/jarvis-selftest/wifi"
)

const (
	heartbeat  = 5 * time.Second
	retryAfter = 10 * time.Second
)

func main() {
	// Wait for USB to initialize.
	time.Sleep(500 * time.Millisecond)
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	cfg := wifi.DefaultConfig(credentials.SSID(), credentials.Password())
	cfg.Logger = logger
	ctx := context.Background()
	logger.Info("wifitest:start", slog.String("ssid", cfg.SSID))
	link, err := wifi.NewPicoW(cfg)
	if err != nil {
		// Nothing to retry without a working radio.
		logger.Error("wifitest:radio init failed", slog.String("err", err.Error()))
		for {
			time.Sleep(time.Hour)
		}
	}
	for {
		err = link.Up(ctx)
		if err == nil {
			break
		}
		logger.Error("wifitest:connect failed", slog.String("err", err.Error()))
		blink(link, retryAfter)
	}
	link.LED(true)
	logger.Info("wifitest:connected",
		slog.String("ip", link.Addr().String()),
		slog.String("gateway", link.Gateway().String()),
		slog.String("mac", link.HardwareAddr().String()),
	)
	start := time.Now()
	for {
		time.Sleep(heartbeat)
		logger.Info("wifitest:alive",
			slog.String("ip", link.Addr().String()),
			slog.Duration("uptime", time.Since(start)),
		)
	}
}

// blink flashes the LED quickly for d to signal a failed connection.
func blink(link *wifi.Link, d time.Duration) {
	const period = 100 * time.Millisecond
	on := false
	for end := time.Now().Add(d); time.Now().Before(end); {
		on = !on
		link.LED(on)
		time.Sleep(period)
	}
	link.LED(false)
}
