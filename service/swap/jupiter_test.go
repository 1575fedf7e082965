package swap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solMint = "So11111111111111111111111111111111111111112"
const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, solMint, r.URL.Query().Get("inputMint"))
		assert.Equal(t, "500000000", r.URL.Query().Get("amount"))

		json.NewEncoder(w).Encode(map[string]any{
			"inputMint":      solMint,
			"outputMint":     usdcMint,
			"inAmount":       "500000000",
			"outAmount":      "73210000",
			"priceImpactPct": "0.01",
			"routePlan":      []map[string]any{{"percent": 100}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)
	route, err := client.Quote(context.Background(), solMint, usdcMint, 500_000_000, 50)

	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), route.InAmount)
	assert.Equal(t, uint64(73_210_000), route.OutAmount)
	assert.Equal(t, "0.01", route.PriceImpactPct)
}

func TestQuote_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":     "Could not find any route",
			"errorCode": "COULD_NOT_FIND_ANY_ROUTE",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)
	_, err := client.Quote(context.Background(), solMint, usdcMint, 1, 50)

	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestQuote_EmptyRoutePlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"inputMint":  solMint,
			"outputMint": usdcMint,
			"inAmount":   "1",
			"outAmount":  "0",
			"routePlan":  []any{},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)
	_, err := client.Quote(context.Background(), solMint, usdcMint, 1, 50)

	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestSwapTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			json.NewEncoder(w).Encode(map[string]any{
				"inputMint":      solMint,
				"outputMint":     usdcMint,
				"inAmount":       "500000000",
				"outAmount":      "73210000",
				"priceImpactPct": "0.01",
				"routePlan":      []map[string]any{{"percent": 100}},
			})
		case "/swap":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "user-pubkey", req["userPublicKey"])
			assert.NotNil(t, req["quoteResponse"], "swap must echo the quote back")

			json.NewEncoder(w).Encode(map[string]any{
				"swapTransaction": "AQAB...base64...",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)
	route, err := client.Quote(context.Background(), solMint, usdcMint, 500_000_000, 50)
	require.NoError(t, err)

	payload, err := client.SwapTransaction(context.Background(), route, "user-pubkey")
	require.NoError(t, err)
	assert.Equal(t, "AQAB...base64...", payload)
}

func TestSwapTransaction_RequiresQuote(t *testing.T) {
	client := NewClient("http://unused", nil, nil)
	_, err := client.SwapTransaction(context.Background(), &Route{}, "user-pubkey")

	assert.Error(t, err)
}
