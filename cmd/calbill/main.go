package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/app"
	"github.com/sandeepkv93/calbill/internal/commands"
	"github.com/sandeepkv93/calbill/internal/config"
	"github.com/sandeepkv93/calbill/internal/logging"
	"github.com/sandeepkv93/calbill/internal/views"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, views.RenderNotice("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd, err := commands.Parse(args)
	if err != nil {
		return err
	}
	if cmd.Type == commands.TypeHelp {
		fmt.Println(commands.Usage)
		return nil
	}

	path := os.Getenv("CALBILL_CONFIG")
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	logger.Debug("running command", zap.String("command", string(cmd.Type)))
	res, err := commands.Execute(ctx, cmd, a.Handlers())
	if err != nil {
		return err
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	return nil
}
