package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/soloquy/client"
)

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show a wallet's SOL balance",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			cl := newAgentClient(c)
			balance, err := cl.Balance(context.Background(), c.Args().Get(0))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(balance)
			}
			fmt.Printf("%s: %s SOL (%d lamports)\n", balance.Address, balance.Sol, balance.Lamports)
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recent transaction signatures for a wallet",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of transactions to return",
				Value:   10,
			},
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "jq expression applied to each transaction (e.g. 'select(.err == null)')",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			var code *gojq.Code
			if filter := c.String("filter"); filter != "" {
				query, err := gojq.Parse(filter)
				if err != nil {
					return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
				}
				code, err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
				}
			}

			cl := newAgentClient(c)
			history, err := cl.History(context.Background(), c.Args().Get(0), c.Int("limit"))
			if err != nil {
				return err
			}

			for _, txn := range history {
				if code != nil {
					keep, err := applyFilter(code, txn)
					if err != nil {
						return err
					}
					if !keep {
						continue
					}
				}

				if c.Bool("json") {
					if err := printJSON(txn); err != nil {
						return err
					}
					continue
				}

				status := "ok"
				if txn.Err != nil {
					status = "failed"
				}
				when := ""
				if !txn.BlockTime.IsZero() {
					when = txn.BlockTime.Format(time.RFC3339)
				}
				fmt.Printf("%s  slot=%d  %s  %s\n", txn.Signature, txn.Slot, status, when)
			}
			return nil
		},
	}
}

// applyFilter runs a compiled jq expression against the transaction's JSON
// form and reports whether the first result is truthy.
func applyFilter(code *gojq.Code, txn client.SignatureInfo) (bool, error) {
	raw, err := json.Marshal(txn)
	if err != nil {
		return false, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	iter := code.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, fmt.Errorf("jq filter error: %w", err)
	}
	return isTruthy(v), nil
}

// isTruthy follows jq semantics: everything except false and null is true.
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
