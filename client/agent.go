package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Outcome is the server's response to one user command: a reply, a pending
// proposal awaiting confirmation, or a request for clarification.
type Outcome struct {
	Kind     string          `json:"kind"` // "reply", "proposal", or "clarification"
	Message  string          `json:"message"`
	Proposal *Proposal       `json:"proposal,omitempty"`
	History  []SignatureInfo `json:"history,omitempty"`
}

// Proposal describes a transaction pending confirmation.
type Proposal struct {
	Summary        string `json:"summary"`
	Mode           string `json:"mode"` // "client" or "agent"
	ExpectedOutput uint64 `json:"expected_output,omitempty"`
	Replaced       bool   `json:"replaced"`
}

// ExecutionResult is the outcome of a confirmed transaction. Agent-signed
// transactions carry the broadcast signature; client-signed ones carry the
// unsigned payload for the user's wallet to sign.
type ExecutionResult struct {
	Mode            string `json:"mode"`
	Signature       string `json:"signature,omitempty"`
	UnsignedPayload string `json:"unsigned_payload,omitempty"`
	ExpectedOutput  uint64 `json:"expected_output,omitempty"`
}

// SignatureInfo is metadata for one historical transaction signature.
type SignatureInfo struct {
	Signature string    `json:"signature"`
	Slot      uint64    `json:"slot"`
	BlockTime time.Time `json:"block_time"`
	Err       *string   `json:"err,omitempty"`
}

// Balance is a wallet's SOL balance.
type Balance struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
	Sol      string `json:"sol"`
}

// Client is the HTTP client for the soloquy agent service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new agent service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Command sends one natural-language command through the full pipeline and
// returns the outcome. Address and mode establish the session on first use;
// subsequent calls with the same sessionID reuse it.
func (c *Client) Command(ctx context.Context, sessionID, text, address, mode string) (*Outcome, error) {
	var resp struct {
		SessionID string   `json:"session_id"`
		Outcome   *Outcome `json:"outcome"`
	}
	err := c.post(ctx, "/api/v1/command", map[string]interface{}{
		"session_id": sessionID,
		"text":       text,
		"address":    address,
		"mode":       mode,
	}, &resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("command handled", "session", sessionID, "kind", resp.Outcome.Kind)
	return resp.Outcome, nil
}

// Confirm executes the session's pending transaction.
func (c *Client) Confirm(ctx context.Context, sessionID, address, mode string) (*ExecutionResult, error) {
	var resp struct {
		SessionID string           `json:"session_id"`
		Result    *ExecutionResult `json:"result"`
	}
	err := c.post(ctx, "/api/v1/confirm", map[string]interface{}{
		"session_id": sessionID,
		"address":    address,
		"mode":       mode,
	}, &resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("transaction confirmed", "session", sessionID, "signature", resp.Result.Signature)
	return resp.Result, nil
}

// Cancel drops the session's pending transaction. Returns whether anything
// was actually pending.
func (c *Client) Cancel(ctx context.Context, sessionID, address, mode string) (bool, error) {
	var resp struct {
		SessionID string `json:"session_id"`
		Cancelled bool   `json:"cancelled"`
	}
	err := c.post(ctx, "/api/v1/cancel", map[string]interface{}{
		"session_id": sessionID,
		"address":    address,
		"mode":       mode,
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// Balance retrieves a wallet's SOL balance.
func (c *Client) Balance(ctx context.Context, address string) (*Balance, error) {
	u := fmt.Sprintf("%s/api/v1/balance/%s", c.baseURL, url.PathEscape(address))
	var balance Balance
	if err := c.get(ctx, u, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// History retrieves recent transaction signatures for a wallet.
func (c *Client) History(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	u := fmt.Sprintf("%s/api/v1/history/%s", c.baseURL, url.PathEscape(address))
	if limit > 0 {
		u = fmt.Sprintf("%s?limit=%d", u, limit)
	}
	var resp struct {
		Address      string          `json:"address"`
		Transactions []SignatureInfo `json:"transactions"`
	}
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// Health checks whether the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, reqBody map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError is a structured error from the agent service, carrying the
// machine-readable kind when the server supplied one.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("request failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("request failed: %s", e.Message)
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Kind:       errResp.Kind,
		Message:    errResp.Error,
	}
}
