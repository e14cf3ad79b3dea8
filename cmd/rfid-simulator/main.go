// Command rfid-simulator runs the door controller on virtual hardware and
// reads commands from stdin.
//
// Usage:
//
//	rfid-simulator [options]
//
// Options are those of rfid-door. The store defaults to memory unless
// -backend, -store or a settings file is given.
//
// Example:
//
//	rfid-simulator
//	rfid-simulator -backend file -store /tmp/door.img -log-level debug
//
// Then type "help" for the command list.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/rfidlock/examples/common"
	"github.com/backkem/rfidlock/examples/simulator"
	"github.com/backkem/rfidlock/pkg/settings"
)

func main() {
	opts := common.ParseFlags()
	if opts.ConfigPath == "" && !opts.IsSet("backend") && !opts.IsSet("store") {
		opts.Backend = settings.BackendMemory
		opts.MarkSet("backend")
	}

	s, err := common.LoadSettings(opts)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	sim, err := simulator.New(s, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- sim.Run(ctx) }()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			if err := sim.Exec(ctx, scanner.Text()); err != nil {
				fmt.Println("error:", err)
			}
			fmt.Print("> ")
		}
		stop()
	}()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Door failed: %v", err)
	}
	fmt.Println()
	log.Println("Shut down")
}
