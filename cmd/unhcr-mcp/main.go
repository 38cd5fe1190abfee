// Command unhcr-mcp serves UNHCR population statistics to MCP clients over
// SSE or websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	unhcrmcp "github.com/felixgeelhaar/unhcr-mcp"
	"github.com/felixgeelhaar/unhcr-mcp/config"
	"github.com/felixgeelhaar/unhcr-mcp/middleware"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "unhcr-mcp:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("unhcr-mcp", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (default $"+config.ConfigFileEnv+")")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Println(unhcrmcp.Name, unhcrmcp.Version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := middleware.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return unhcrmcp.Run(ctx, cfg, logger)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	})
	return g.Wait()
}
