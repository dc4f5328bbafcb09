package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/brainbox/internal/cli"
	"github.com/dmitrijs2005/brainbox/internal/config"
	"github.com/dmitrijs2005/brainbox/internal/logging"
)

// Set with -ldflags "-X main.buildVersion=...".
var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func printBuildData(w io.Writer) {
	for _, kv := range [][2]string{
		{"Build version", buildVersion},
		{"Build date", buildDate},
		{"Build commit", buildCommit},
	} {
		v := kv[1]
		if v == "" {
			v = "N/A"
		}
		fmt.Fprintf(w, "%s: %s\n", kv[0], v)
	}
}

func main() {

	printBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error(ctx, "closing", "err", err)
		}
	}()

	app.Run(ctx)

}
