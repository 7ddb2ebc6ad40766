package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func wagerIDFlag() cli.Flag {
	return &cli.IntFlag{
		Name:     "id",
		Usage:    "wager id",
		Required: true,
	}
}

func operatorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "operator",
		Usage:   "operator user id recorded in the audit log",
		Sources: cli.EnvVars("WAGERCTL_OPERATOR_ID"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "wagerctl",
		Usage: "operate the wager resolution and settlement engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "overrides POSTGRES_DSN",
				Sources: cli.EnvVars("WAGERCTL_POSTGRES_DSN"),
			},
			&cli.StringFlag{
				Name:    "chain-mode",
				Usage:   "live or fake, overrides CHAIN_MODE",
				Sources: cli.EnvVars("WAGERCTL_CHAIN_MODE"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "development logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "token",
				Usage: "upsert a user by wallet and print a bearer token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "wallet", Usage: "base58 wallet address", Required: true},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime, default JWT_EXPIRATION_HOURS"},
				},
				Action: runToken,
			},
			{
				Name:   "resolve",
				Usage:  "resolve one wager against the result feed now",
				Flags:  []cli.Flag{wagerIDFlag()},
				Action: runResolve,
			},
			{
				Name:   "settle",
				Usage:  "submit the on-chain settlement for one wager",
				Flags:  []cli.Flag{wagerIDFlag()},
				Action: runSettle,
			},
			{
				Name:   "requeue",
				Usage:  "return a failed wager to active",
				Flags:  []cli.Flag{wagerIDFlag(), operatorFlag()},
				Action: runRequeue,
			},
			{
				Name:  "force-status",
				Usage: "perform an operator status transition",
				Flags: []cli.Flag{
					wagerIDFlag(),
					operatorFlag(),
					&cli.StringFlag{Name: "status", Usage: "target status", Required: true},
				},
				Action: runForceStatus,
			},
			{
				Name:  "pending",
				Usage: "list wagers awaiting resolution or settlement",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: runPending,
			},
			{
				Name:  "oracle-info",
				Usage: "print the program id, oracle pubkey and escrow addresses",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "id", Usage: "wager id to derive PDAs for"},
				},
				Action: runOracleInfo,
			},
			{
				Name:  "cards",
				Usage: "refresh the card icon catalog",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "local", Usage: "do not write the catalog to redis"},
				},
				Action: runCards,
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "wagerctl:", err)
		os.Exit(1)
	}
}
