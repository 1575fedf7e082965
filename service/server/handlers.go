package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/soloquy/service/db"
	"github.com/brojonat/soloquy/service/engine"
	solanasvc "github.com/brojonat/soloquy/service/solana"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for a chat command
	maxCommandLength   = 2000    // characters of user text
	maxSessionIDLength = 128
	maxHistoryLimit    = 100
)

// commandRequest is the shared request shape for the command pipeline routes.
type commandRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Address   string `json:"address,omitempty"`
	Mode      string `json:"mode,omitempty"` // "client" (default) or "agent"
}

// commandResponse carries the interpreted intent and the pipeline outcome.
type commandResponse struct {
	SessionID string          `json:"session_id"`
	Outcome   *engine.Outcome `json:"outcome"`
}

// handleCommand returns a handler that runs the full pipeline for one user
// command: classify the text, then answer, propose, or ask for clarification.
// POST /api/v1/command
func handleCommand(eng *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, sess, ok := decodeSessionRequest(w, r, eng, logger, true)
		if !ok {
			return
		}

		it := eng.Interpret(r.Context(), sess, req.Text)
		outcome, err := eng.HandleIntent(r.Context(), sess, it)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		writeJSON(w, commandResponse{
			SessionID: sess.ID,
			Outcome:   outcome,
		}, http.StatusOK)
	})
}

// handleInterpret returns a handler that classifies text without acting on it.
// Useful for clients that want to preview what the agent understood.
// POST /api/v1/interpret
func handleInterpret(eng *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, sess, ok := decodeSessionRequest(w, r, eng, logger, true)
		if !ok {
			return
		}

		it := eng.Interpret(r.Context(), sess, req.Text)

		writeJSON(w, map[string]interface{}{
			"session_id": req.SessionID,
			"intent":     it,
		}, http.StatusOK)
	})
}

// handleConfirm returns a handler that executes the session's pending
// transaction. Confirmation is always this explicit call; nothing else
// moves a proposal forward.
// POST /api/v1/confirm
func handleConfirm(eng *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sess, ok := decodeSessionRequest(w, r, eng, logger, false)
		if !ok {
			return
		}

		result, err := eng.Confirm(r.Context(), sess)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"session_id": sess.ID,
			"result":     result,
		}, http.StatusOK)
	})
}

// handleCancel returns a handler that drops the session's pending
// transaction. Idempotent: cancelling an idle session reports cancelled=false.
// POST /api/v1/cancel
func handleCancel(eng *engine.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sess, ok := decodeSessionRequest(w, r, eng, logger, false)
		if !ok {
			return
		}

		cancelled, err := eng.Cancel(sess)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"session_id": sess.ID,
			"cancelled":  cancelled,
		}, http.StatusOK)
	})
}

// handleGetBalance returns a handler that reports a wallet's SOL balance.
// GET /api/v1/balance/{address}
func handleGetBalance(ledger *solanasvc.Client, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address, err := parseAddressParam(r.PathValue("address"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		lamports, err := ledger.Balance(r.Context(), address)
		if err != nil {
			logger.Error("failed to fetch balance", "address", address.String(), "error", err)
			writeError(w, "failed to fetch balance", http.StatusBadGateway)
			return
		}

		writeJSON(w, map[string]interface{}{
			"address":  address.String(),
			"lamports": lamports,
			"sol":      engine.FormatBaseUnits(lamports, 9),
		}, http.StatusOK)
	})
}

// handleGetHistory returns a handler that lists recent transaction signatures
// for a wallet.
// GET /api/v1/history/{address}?limit={n}
func handleGetHistory(ledger *solanasvc.Client, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address, err := parseAddressParam(r.PathValue("address"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 || limit > maxHistoryLimit {
				writeError(w, fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit), http.StatusBadRequest)
				return
			}
		}

		history, err := ledger.RecentSignatures(r.Context(), address, limit)
		if err != nil {
			logger.Error("failed to fetch history", "address", address.String(), "error", err)
			writeError(w, "failed to fetch history", http.StatusBadGateway)
			return
		}

		writeJSON(w, map[string]interface{}{
			"address":      address.String(),
			"transactions": history,
		}, http.StatusOK)
	})
}

// handleListExecutions returns a handler that lists the audit trail for a
// session, most recent first.
// GET /api/v1/executions/{session_id}?limit={n}&offset={n}
func handleListExecutions(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session_id")
		if err := validateSessionID(sessionID); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit := int32(50)
		offset := int32(0)
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxHistoryLimit {
				writeError(w, fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit), http.StatusBadRequest)
				return
			}
			limit = int32(n)
		}
		if raw := r.URL.Query().Get("offset"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, "offset must be non-negative", http.StatusBadRequest)
				return
			}
			offset = int32(n)
		}

		executions, err := store.ListExecutionsBySession(r.Context(), sessionID, limit, offset)
		if err != nil {
			logger.Error("failed to list executions", "session", sessionID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"session_id": sessionID,
			"executions": executions,
		}, http.StatusOK)
	})
}

// decodeSessionRequest parses the shared request shape, validates it, and
// resolves the session. requireText distinguishes the command/interpret
// routes from confirm/cancel, which act on the session alone.
func decodeSessionRequest(w http.ResponseWriter, r *http.Request, eng *engine.Engine, logger *slog.Logger, requireText bool) (*commandRequest, *engine.Session, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			writeError(w, "request body too large", http.StatusBadRequest)
		} else {
			writeError(w, "invalid request body", http.StatusBadRequest)
		}
		return nil, nil, false
	}

	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-ID")
	}
	if err := validateSessionID(req.SessionID); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}

	if requireText {
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, "text is required", http.StatusBadRequest)
			return nil, nil, false
		}
		if len(req.Text) > maxCommandLength {
			writeError(w, fmt.Sprintf("text too long: maximum length is %d characters", maxCommandLength), http.StatusBadRequest)
			return nil, nil, false
		}
	}

	mode := engine.SigningMode(req.Mode)
	if mode != "" && mode != engine.ClientSign && mode != engine.AgentSign {
		writeError(w, `mode must be "client" or "agent"`, http.StatusBadRequest)
		return nil, nil, false
	}

	var address solanago.PublicKey
	if req.Address != "" {
		var err error
		address, err = parseAddressParam(req.Address)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return nil, nil, false
		}
	} else if mode != engine.AgentSign {
		writeError(w, "address is required for client-signed sessions", http.StatusBadRequest)
		return nil, nil, false
	}

	sess, err := eng.Session(req.SessionID, address, mode)
	if err != nil {
		writeEngineError(w, logger, err)
		return nil, nil, false
	}
	return &req, sess, true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeEngineError maps the pipeline's error taxonomy onto HTTP statuses.
// The kind travels with the message so clients can react programmatically.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var vErr *engine.ValidationError
	var bErr *engine.BuildError
	var xErr *engine.ExecutionError

	switch {
	case errors.As(err, &vErr):
		writeTypedError(w, string(vErr.Kind), vErr.Detail, http.StatusUnprocessableEntity)
	case errors.As(err, &bErr):
		status := http.StatusUnprocessableEntity
		if bErr.Kind == engine.MissingCredential {
			status = http.StatusServiceUnavailable
		}
		writeTypedError(w, string(bErr.Kind), bErr.Detail, status)
	case errors.As(err, &xErr):
		logger.Error("execution failed", "kind", xErr.Kind, "error", err)
		var status int
		switch xErr.Kind {
		case engine.RateLimited:
			status = http.StatusTooManyRequests
		case engine.Timeout:
			status = http.StatusGatewayTimeout
		case engine.NetworkUnavailable:
			status = http.StatusBadGateway
		default:
			status = http.StatusUnprocessableEntity
		}
		writeTypedError(w, string(xErr.Kind), xErr.Detail, status)
	case errors.Is(err, engine.ErrSessionMismatch):
		writeError(w, "session is bound to a different wallet or signing mode", http.StatusConflict)
	case errors.Is(err, engine.ErrNoPendingTransaction):
		writeError(w, "no pending transaction to act on", http.StatusConflict)
	case errors.Is(err, engine.ErrExecutionInProgress):
		writeError(w, "an execution is already in progress", http.StatusConflict)
	default:
		logger.Error("unexpected pipeline error", "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeTypedError writes a JSON error response carrying a machine-readable kind.
func writeTypedError(w http.ResponseWriter, kind, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"kind":  kind,
	})
}

// parseAddressParam validates and decodes a base58 wallet address.
func parseAddressParam(raw string) (solanago.PublicKey, error) {
	if raw == "" {
		return solanago.PublicKey{}, fmt.Errorf("address is required")
	}
	for _, r := range raw {
		if r == 0 || unicode.IsControl(r) {
			return solanago.PublicKey{}, fmt.Errorf("invalid characters in address: control characters not allowed")
		}
	}
	pk, err := solanago.PublicKeyFromBase58(raw)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("invalid address: %v", err)
	}
	return pk, nil
}

// validateSessionID validates a session identifier.
func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session_id is required")
	}
	if len(id) > maxSessionIDLength {
		return fmt.Errorf("session_id too long: maximum length is %d characters", maxSessionIDLength)
	}
	// Session ids become NATS subject tokens, so dots and wildcards are out.
	for _, r := range id {
		if r == 0 || unicode.IsControl(r) || r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return fmt.Errorf("session_id contains invalid characters")
		}
	}
	return nil
}
