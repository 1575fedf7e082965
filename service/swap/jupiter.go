package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNoRoute indicates the aggregator found no conversion path for the
// requested pair and amount. This is recoverable: the user should adjust
// the amount or pick a different asset.
var ErrNoRoute = errors.New("no route found for swap")

// Route is a proposed conversion path between two assets, including the
// expected output amount and price impact.
type Route struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct string

	// quote is the raw aggregator response, passed back verbatim when
	// requesting the swap transaction.
	quote json.RawMessage
}

// Client talks to the Jupiter aggregator HTTP API for quotes and swap
// transaction construction.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// DefaultBaseURL is the public Jupiter v6 quote API.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// NewClient creates a new Jupiter API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
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

type quoteResponse struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct"`
	RoutePlan      json.RawMessage `json:"routePlan"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Quote requests the best route for converting amount base units of
// inputMint into outputMint. Returns ErrNoRoute when the aggregator cannot
// find a path.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Route, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.ErrorCode == "COULD_NOT_FIND_ANY_ROUTE" {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("quote request returned status %d: %s", resp.StatusCode, string(body))
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if len(quote.RoutePlan) == 0 || string(quote.RoutePlan) == "[]" || string(quote.RoutePlan) == "null" {
		return nil, ErrNoRoute
	}

	inAmount, err := strconv.ParseUint(quote.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote returned invalid inAmount %q: %w", quote.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(quote.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote returned invalid outAmount %q: %w", quote.OutAmount, err)
	}

	c.logger.DebugContext(ctx, "received swap quote",
		"input_mint", inputMint,
		"output_mint", outputMint,
		"in_amount", inAmount,
		"out_amount", outAmount,
		"price_impact_pct", quote.PriceImpactPct,
	)

	return &Route{
		InputMint:      quote.InputMint,
		OutputMint:     quote.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: quote.PriceImpactPct,
		quote:          body,
	}, nil
}

type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// SwapTransaction converts a previously fetched route into a base64-encoded
// unsigned transaction for the given user to sign. The swap is always
// client-signed: this service never touches user keys.
func (c *Client) SwapTransaction(ctx context.Context, route *Route, userPublicKey string) (string, error) {
	if route == nil || len(route.quote) == 0 {
		return "", fmt.Errorf("route has no quote data; fetch a quote first")
	}

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:    route.quote,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap request returned status %d: %s", resp.StatusCode, string(body))
	}

	var out swapResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode swap response: %w", err)
	}
	if out.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing transaction payload")
	}

	c.logger.DebugContext(ctx, "built swap transaction",
		"user", userPublicKey,
		"payload_bytes", len(out.SwapTransaction),
	)
	return out.SwapTransaction, nil
}
