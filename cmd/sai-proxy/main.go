package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/saiset-co/sai-proxy/service"
	"github.com/saiset-co/sai-proxy/types"
)

var newOfflineService = service.NewOffline

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sai-proxy",
		Usage: "cached player and server records for the proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yml",
				Usage:   "path to the YAML config file, created with defaults when missing",
				EnvVars: []string{"SAI_PROXY_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "run the service until interrupted",
				Action: func(c *cli.Context) error {
					svc, err := service.New(c.Context, c.String("config"))
					if err != nil {
						return err
					}
					return svc.Run(c.Context)
				},
			},
			{
				Name:      "op",
				Usage:     "grant operator status to a player",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					return setOperator(c, true)
				},
			},
			{
				Name:      "deop",
				Usage:     "revoke operator status from a player",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					return setOperator(c, false)
				},
			},
			{
				Name:      "lookup",
				Usage:     "print the id and operator status stored for a player name",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name, err := nameArg(c)
					if err != nil {
						return err
					}
					return withService(c, func(ctx context.Context, svc *service.Service) error {
						id, err := svc.Players.Resolve(ctx, name)
						if err != nil {
							return err
						}
						operator, err := svc.Players.IsOperator(ctx, id)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "%s %s operator=%t\n", name, id, operator)
						return nil
					})
				},
			},
			{
				Name:  "flush",
				Usage: "write back every cached record and report cache residency",
				Action: func(c *cli.Context) error {
					return withService(c, func(ctx context.Context, svc *service.Service) error {
						if err := svc.Caches.Flush(ctx); err != nil {
							return err
						}
						for _, stats := range svc.Caches.Stats() {
							fmt.Fprintf(c.App.Writer, "%s: %d/%d\n", stats.Name, stats.Entries, stats.Capacity)
						}
						return nil
					})
				},
			},
		},
	}
}

func setOperator(c *cli.Context, operator bool) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}

	return withService(c, func(ctx context.Context, svc *service.Service) error {
		if err := svc.Players.SetOperator(ctx, name, operator); err != nil {
			return err
		}
		prefix := ""
		if !operator {
			prefix = "de"
		}
		fmt.Fprintf(c.App.Writer, "Player %q %sopped\n", name, prefix)
		return nil
	})
}

func nameArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", cli.Exit(types.ErrPlayerNameEmpty.Error(), 2)
	}
	return c.Args().First(), nil
}

// withService opens the store without the scheduler or admin server, runs
// fn and shuts down, flushing whatever fn changed. It must not run against
// a store another process holds open.
func withService(c *cli.Context, fn func(ctx context.Context, svc *service.Service) error) (err error) {
	svc, err := newOfflineService(c.Context, c.String("config"))
	if err != nil {
		return err
	}

	ctx := context.WithoutCancel(c.Context)
	if err := svc.Start(); err != nil {
		// nothing was cached yet; this only stops the sweepers
		return multierr.Append(err, svc.Caches.Close(ctx))
	}

	defer func() {
		if stopErr := svc.Stop(ctx); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	return fn(ctx, svc)
}
