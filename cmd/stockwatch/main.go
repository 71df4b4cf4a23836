package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
	"stockwatch/internal/config"
)

var configPath = flag.String("config", "", "path to config.json or config.yaml (optional)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	e := &env{out: os.Stdout, load: func() (config.Config, error) { return config.Load(*configPath) }}
	register(commander, e)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := commander.Execute(ctx)
	e.close()
	os.Exit(int(status))
}
