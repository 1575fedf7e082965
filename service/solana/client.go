package solana

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/brojonat/soloquy/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)
}

// Client wraps the RPC client with the domain operations the agent needs:
// balance reads, blockhash fetch, broadcast, and signature history.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string        // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	backoff  time.Duration // base unit for read-retry backoff
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. If metrics is nil,
// no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		backoff:  time.Second,
	}
}

// readRetryAttempts bounds retries for read-only RPC calls. Broadcasts are
// never retried: re-sending a financial transaction risks double-spend.
const readRetryAttempts = 3

// Balance returns the lamport balance of the given account.
// Read calls retry with exponential backoff on rate limiting.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var out *rpc.GetBalanceResult
	err := c.withReadRetry(ctx, "GetBalance", func() error {
		var err error
		out, err = c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get balance",
			"account", account.String(),
			"error", err,
		)
		return 0, err
	}

	c.logger.DebugContext(ctx, "fetched balance",
		"account", account.String(),
		"lamports", out.Value,
	)
	return out.Value, nil
}

// LatestBlockhash fetches a recent blockhash for transaction construction.
// Blockhashes are short-lived; callers should fetch immediately before
// signing, not ahead of time.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var out *rpc.GetLatestBlockhashResult
	err := c.withReadRetry(ctx, "GetLatestBlockhash", func() error {
		var err error
		out, err = c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		return solana.Hash{}, err
	}
	return out.Value.Blockhash, nil
}

// Broadcast submits a signed transaction to the network and returns its
// signature. This call is made exactly once per invocation, never retried.
func (c *Client) Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	c.record("SendTransaction", err, time.Since(start))

	if err != nil {
		c.logger.ErrorContext(ctx, "broadcast failed", "error", err)
		return solana.Signature{}, err
	}

	c.logger.InfoContext(ctx, "transaction broadcast", "signature", sig.String())
	return sig, nil
}

// SignatureInfo is metadata for one historical transaction signature.
type SignatureInfo struct {
	Signature string    `json:"signature"`
	Slot      uint64    `json:"slot"`
	BlockTime time.Time `json:"block_time"`
	Err       *string   `json:"err,omitempty"` // nil if the transaction succeeded
}

// RecentSignatures returns up to limit recent transaction signatures for the
// given account, newest first.
func (c *Client) RecentSignatures(ctx context.Context, account solana.PublicKey, limit int) ([]SignatureInfo, error) {
	var sigs []*rpc.TransactionSignature
	err := c.withReadRetry(ctx, "GetSignaturesForAddress", func() error {
		var err error
		sigs, err = c.rpc.GetSignaturesForAddress(ctx, account, &rpc.GetSignaturesForAddressOpts{
			Limit: &limit,
		})
		return err
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"account", account.String(),
			"error", err,
		)
		return nil, err
	}

	out := make([]SignatureInfo, 0, len(sigs))
	for _, sig := range sigs {
		info := SignatureInfo{
			Signature: sig.Signature.String(),
			Slot:      sig.Slot,
		}
		if sig.BlockTime != nil {
			info.BlockTime = sig.BlockTime.Time()
		}
		if sig.Err != nil {
			s := "transaction failed"
			info.Err = &s
		}
		out = append(out, info)
	}

	c.logger.DebugContext(ctx, "fetched recent signatures",
		"account", account.String(),
		"count", len(out),
	)
	return out, nil
}

// withReadRetry runs a read-only RPC call with exponential backoff on rate
// limiting (429) and transient errors. Public mainnet endpoints allow 1-2 RPS;
// premium endpoints rarely trip this.
func (c *Client) withReadRetry(ctx context.Context, method string, call func() error) error {
	var err error
	for attempt := range readRetryAttempts {
		start := time.Now()
		err = call()
		c.record(method, err, time.Since(start))

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt == readRetryAttempts-1 {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * c.backoff
		if strings.Contains(err.Error(), "429") {
			backoff = time.Duration(2<<uint(attempt)) * c.backoff
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
		}
		c.logger.WarnContext(ctx, "RPC read failed, backing off",
			"method", method,
			"attempt", attempt+1,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(method)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func (c *Client) record(method string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, d.Seconds())
}
