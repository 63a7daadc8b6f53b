package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"inkwatch/internal/app"
)

func main() {
	var (
		cfgPath string
		opts    app.Options
		history int
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")
	flag.BoolVar(&opts.Daemon, "daemon", false, "keep running on the configured schedule")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "log rendered notifications instead of posting them")
	flag.BoolVar(&opts.Strict, "strict", false, "exit non-zero when any notification fails")
	flag.IntVar(&history, "history", 0, "print the last N delivery log entries and exit")
	flag.Parse()
	if history > 0 {
		// Reading the log never posts, so it needs no webhook URL.
		opts.DryRun = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if history > 0 {
		err = printHistory(ctx, a, history)
	} else {
		err = a.Run(ctx)
	}
	if cerr := a.Close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "close:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func printHistory(ctx context.Context, a *app.App, n int) error {
	recs, err := a.History(ctx, n)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
