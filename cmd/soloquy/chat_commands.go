package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/soloquy/client"
)

// sessionFlags are shared by every command that talks to the pipeline.
func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "Wallet address for client-signed sessions",
			EnvVars: []string{"SOLOQUY_WALLET_ADDRESS"},
		},
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   `Signing mode: "client" or "agent"`,
			EnvVars: []string{"SOLOQUY_SIGNING_MODE"},
			Value:   "client",
		},
		&cli.StringFlag{
			Name:  "session",
			Usage: "Session identifier (generated when omitted)",
		},
	}
}

func newAgentClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func sessionID(c *cli.Context) string {
	if id := c.String("session"); id != "" {
		return id
	}
	buf := make([]byte, 8)
	rand.Read(buf)
	return "cli-" + hex.EncodeToString(buf)
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive session with the agent",
		Flags: sessionFlags(),
		Action: func(c *cli.Context) error {
			cl := newAgentClient(c)
			session := sessionID(c)
			address := c.String("address")
			mode := c.String("mode")
			ctx := context.Background()

			fmt.Printf("Connected to %s (session %s, %s-signed)\n", c.String("server-url"), session, mode)
			fmt.Println(`Type a command, "confirm" / "cancel" for pending transactions, or "quit" to exit.`)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}

				switch strings.ToLower(text) {
				case "quit", "exit":
					return nil
				case "confirm", "yes", "y":
					result, err := cl.Confirm(ctx, session, address, mode)
					if err != nil {
						fmt.Fprintf(os.Stderr, "error: %v\n", err)
						continue
					}
					printResult(result)
				case "cancel", "no", "n":
					cancelled, err := cl.Cancel(ctx, session, address, mode)
					if err != nil {
						fmt.Fprintf(os.Stderr, "error: %v\n", err)
						continue
					}
					if cancelled {
						fmt.Println("Cancelled.")
					} else {
						fmt.Println("Nothing pending.")
					}
				default:
					outcome, err := cl.Command(ctx, session, text, address, mode)
					if err != nil {
						fmt.Fprintf(os.Stderr, "error: %v\n", err)
						continue
					}
					printOutcome(outcome)
				}
			}
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Propose a SOL transfer",
		ArgsUsage: "AMOUNT DESTINATION",
		Flags: append(sessionFlags(),
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the proposal without prompting",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("amount and destination are required")
			}
			text := fmt.Sprintf("send %s SOL to %s", c.Args().Get(0), c.Args().Get(1))
			return runOneShot(c, text)
		},
	}
}

func swapCommand() *cli.Command {
	return &cli.Command{
		Name:      "swap",
		Usage:     "Propose an asset swap",
		ArgsUsage: "AMOUNT SOURCE_ASSET DESTINATION_ASSET",
		Flags: append(sessionFlags(),
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the proposal without prompting",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 3 {
				return fmt.Errorf("amount, source asset, and destination asset are required")
			}
			text := fmt.Sprintf("swap %s %s for %s", c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
			return runOneShot(c, text)
		},
	}
}

// runOneShot sends one command, then confirms the resulting proposal either
// automatically (--yes) or after an interactive prompt.
func runOneShot(c *cli.Context, text string) error {
	cl := newAgentClient(c)
	session := sessionID(c)
	address := c.String("address")
	mode := c.String("mode")
	ctx := context.Background()

	outcome, err := cl.Command(ctx, session, text, address, mode)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(outcome)
	}
	printOutcome(outcome)

	if outcome.Kind != "proposal" {
		return nil
	}

	if !c.Bool("yes") {
		fmt.Print("Confirm? [y/N] ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return scanner.Err()
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			if _, err := cl.Cancel(ctx, session, address, mode); err != nil {
				return err
			}
			fmt.Println("Cancelled.")
			return nil
		}
	}

	result, err := cl.Confirm(ctx, session, address, mode)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func printOutcome(outcome *client.Outcome) {
	fmt.Println(outcome.Message)
	if outcome.Proposal != nil && outcome.Proposal.Replaced {
		fmt.Println("(note: this replaced a previously pending transaction)")
	}
	for _, txn := range outcome.History {
		status := "ok"
		if txn.Err != nil {
			status = "failed"
		}
		fmt.Printf("  %s  slot=%d  %s\n", txn.Signature, txn.Slot, status)
	}
}

func printResult(result *client.ExecutionResult) {
	switch result.Mode {
	case "agent":
		fmt.Printf("Executed. Signature: %s\n", result.Signature)
	default:
		fmt.Println("Built. Sign and submit this payload with your wallet:")
		fmt.Println(result.UnsignedPayload)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
