// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/beevik/go8/host"
	"github.com/beevik/term"
)

var (
	assemble  string
	mode      string
	freq      float64
	memSize   int
	logLevel  string
	luaScript string
	monitor   bool
	pngFile   string
)

func init() {
	flag.StringVar(&assemble, "a", "", "assemble file")
	flag.StringVar(&mode, "mode", "fast", "clock mode (fast, realtime, limited, stepped)")
	flag.Float64Var(&freq, "freq", 0, "clock frequency in Hz (0 selects the mode's default)")
	flag.IntVar(&memSize, "mem", 0, "memory size in bytes (0 selects 64K)")
	flag.StringVar(&logLevel, "log", "warn", "log level (debug, info, warn, error)")
	flag.StringVar(&luaScript, "lua", "", "run a Lua script against the machine")
	flag.BoolVar(&monitor, "monitor", false, "start the full-screen monitor")
	flag.StringVar(&pngFile, "png", "", "save the screen to a PNG file before exiting")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: go8 [script] ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		exitOnError(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	h, err := host.New(host.Config{
		MemorySize: memSize,
		Logger:     logger,
	})
	if err != nil {
		exitOnError(err)
	}

	// Do command-line assemble if requested.
	if assemble != "" {
		err := h.AssembleFile(assemble, false)
		if err != nil {
			fmt.Printf("Failed to assemble file '%s'.\n", assemble)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := h.SetClock(mode, freq); err != nil {
		exitOnError(err)
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	// Run commands contained in command-line files.
	for _, filename := range flag.Args() {
		file, err := os.Open(filename)
		if err != nil {
			exitOnError(err)
		}
		err = h.RunCommands(file, os.Stdout, false)
		file.Close()
		if errors.Is(err, host.ErrQuit) {
			finish(h)
			return
		}
		if err != nil {
			exitOnError(err)
		}
	}

	switch {
	case luaScript != "":
		if err := h.RunLua(context.Background(), luaScript); err != nil {
			exitOnError(err)
		}
	case monitor:
		if err := h.Monitor(context.Background()); err != nil {
			exitOnError(err)
		}
	case term.IsTerminal(int(os.Stdin.Fd())):
		// Run commands interactively.
		h.RunCommands(os.Stdin, os.Stdout, true)
	}

	finish(h)
}

func finish(h *host.Host) {
	h.CPU().Stop()
	if pngFile != "" {
		if err := h.WritePNG(pngFile); err != nil {
			exitOnError(err)
		}
	}
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for {
		<-c
		h.Break()
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
