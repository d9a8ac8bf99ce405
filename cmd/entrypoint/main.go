// Package main runs the dice gRPC service and MCP HTTP bridge in one process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	allcmd "github.com/louisbranch/dicenotation/internal/cmd/entrypoint"
	entrypoint "github.com/louisbranch/dicenotation/internal/platform/cmd"
)

func main() {
	cfg, err := allcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceEntrypoint))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := allcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("entrypoint stopped: %v", err)
	}
}
