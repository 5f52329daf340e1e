//go:build rp2040 || rp2350

// Command selftest exercises the Pico W audio board: it joins Wi-Fi, plays
// a 1kHz tone on the I2S amplifier and then prints microphone levels five
// times a second over USB serial.
//
//	tinygo flash -target=pico -monitor ./firmware/selftest
//
// Wiring: amplifier and microphone share BCLK and LRCLK.
//
//	GP18 BCLK  -> amp BCLK, mic SCK
//	GP19 LRCLK -> amp LRC, mic WS
//	GP20 DOUT  -> amp DIN
//	GP21 DIN   <- mic SD (mic L/R to GND)
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/henrikRod/jarvis-selftest/firmware/credentials"
	"github.com/henrikRod/jarvis-selftest/i2s"
	"github.com/henrikRod/jarvis-selftest/selftest"
	"github.com/henrikRod/jarvis-selftest/wifi"
)

var pins = i2s.Pins{
	BCLK: machine.GPIO18, // LRCLK is GPIO19.
	DOUT: machine.GPIO20,
	DIN:  machine.GPIO21,
}

func main() {
	// Wait for USB to initialize.
	time.Sleep(500 * time.Millisecond)
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	netcfg := wifi.DefaultConfig(credentials.SSID(), credentials.Password())
	netcfg.Logger = logger
	station := &wifi.Station{Config: netcfg}

	cfg := selftest.DefaultConfig()
	openAmp := func() (selftest.Speaker, error) {
		tx, err := i2s.NewTransmitter(i2s.TxConfig{
			Pins:       pins,
			SampleRate: cfg.ToneSampleRate,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return tx, nil
	}
	openMic := func() (selftest.Microphone, error) {
		rx, err := i2s.NewReceiver(i2s.RxConfig{
			Pins:       pins,
			SampleRate: cfg.MicSampleRate,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return rx, nil
	}
	runner := selftest.NewRunner(cfg, station, openAmp, openMic, logger)
	runner.Run(context.Background())
}
