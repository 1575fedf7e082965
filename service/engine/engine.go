package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/soloquy/service/intent"
	"github.com/brojonat/soloquy/service/metrics"
	solanasvc "github.com/brojonat/soloquy/service/solana"
)

// OutcomeKind distinguishes the ways a handled intent can come back.
type OutcomeKind string

const (
	// OutcomeReply answers a read-only question inline.
	OutcomeReply OutcomeKind = "reply"
	// OutcomeProposal means a transaction is now pending confirmation.
	OutcomeProposal OutcomeKind = "proposal"
	// OutcomeClarification means the user must rephrase or supply more detail.
	OutcomeClarification OutcomeKind = "clarification"
)

// Outcome is the result of handling an intent.
type Outcome struct {
	Kind     OutcomeKind               `json:"kind"`
	Message  string                    `json:"message"`
	Proposal *ProposalInfo             `json:"proposal,omitempty"`
	History  []solanasvc.SignatureInfo `json:"history,omitempty"`
}

// ProposalInfo describes a newly pending transaction.
type ProposalInfo struct {
	Summary        string      `json:"summary"`
	Mode           SigningMode `json:"mode"`
	ExpectedOutput uint64      `json:"expected_output,omitempty"` // swaps: destination base units
	Replaced       bool        `json:"replaced"` // a prior pending transaction was dropped
}

// ExecutionEvent is published after every successful agent-signed broadcast.
type ExecutionEvent struct {
	SessionID   string    `json:"session_id"`
	Action      string    `json:"action"`
	Signature   string    `json:"signature"`
	Amount      uint64    `json:"amount"`
	Asset       string    `json:"asset"`
	Destination string    `json:"destination,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AuditStore persists executed transactions. Implementations must be safe
// for concurrent use. A nil store disables auditing.
type AuditStore interface {
	RecordExecution(ctx context.Context, event *ExecutionEvent) error
}

// EventPublisher streams execution events to interested consumers. A nil
// publisher disables streaming.
type EventPublisher interface {
	PublishExecution(ctx context.Context, event *ExecutionEvent) error
}

// balanceStaleAfter is how old a balance snapshot may be before Interpret
// refreshes it. Some staleness is acceptable: the ledger is the source of
// truth and rejects real over-spends.
const balanceStaleAfter = 30 * time.Second

// historyLimit caps how many signatures a history request returns.
const historyLimit = 10

// Engine is the command-to-transaction pipeline: classify, validate,
// propose, confirm, execute. It owns all sessions and is safe for
// concurrent use across them.
type Engine struct {
	classifier intent.Classifier
	validator  *Validator
	builder    *Builder
	gateway    *Gateway
	ledger     Ledger
	signer     *AgentSigner // nil when no agent credential is configured
	assets     *AssetRegistry
	audit      AuditStore     // optional
	events     EventPublisher // optional
	metrics    *metrics.Metrics
	logger     *slog.Logger

	sessions *sessionRegistry
}

// Config collects the engine's constructor-injected dependencies.
type Config struct {
	Classifier intent.Classifier
	Ledger     Ledger
	Quoter     SwapQuoter
	Signer     *AgentSigner // nil disables agent signing
	Assets     *AssetRegistry
	Audit      AuditStore     // nil disables auditing
	Events     EventPublisher // nil disables event streaming
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// New creates an Engine from its dependencies.
func New(cfg Config) *Engine {
	return &Engine{
		classifier: cfg.Classifier,
		validator:  NewValidator(cfg.Assets),
		builder:    NewBuilder(cfg.Ledger, cfg.Quoter, cfg.Signer, cfg.Logger),
		gateway:    NewGateway(cfg.Ledger, cfg.Logger),
		ledger:     cfg.Ledger,
		signer:     cfg.Signer,
		assets:     cfg.Assets,
		audit:      cfg.Audit,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		sessions:   newSessionRegistry(),
	}
}

// AgentSigningAvailable reports whether an agent credential is configured.
func (e *Engine) AgentSigningAvailable() bool {
	return e.signer != nil
}

// Session returns the session for the given id, creating it if needed.
// For agent-signed sessions the caller address is the custodial address;
// client-signed sessions must supply the user's wallet address.
func (e *Engine) Session(id string, address solanago.PublicKey, mode SigningMode) (*Session, error) {
	if mode == "" {
		mode = ClientSign
	}
	if mode == AgentSign {
		if e.signer == nil {
			return nil, &BuildError{
				Kind:   MissingCredential,
				Detail: "agent signing requested but no agent key is configured",
			}
		}
		address = e.signer.PublicKey()
	}
	if address.IsZero() {
		return nil, fmt.Errorf("a wallet address is required for client-signed sessions")
	}
	return e.sessions.getOrCreate(id, address, mode)
}

// Interpret classifies raw user text into an Intent. Classifier failures
// come back as an Unknown intent carrying the diagnostic, never as an error
// or a crash.
func (e *Engine) Interpret(ctx context.Context, sess *Session, text string) *intent.Intent {
	e.refreshBalanceIfStale(ctx, sess)

	balance, _ := sess.balanceSnapshot()
	sol, _ := e.assets.Lookup("SOL")

	start := time.Now()
	it, err := e.classifier.Classify(ctx, text, sess.Address.String(), FormatBaseUnits(balance, sol.Decimals))
	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		e.metrics.RecordClassifierCall(status, time.Since(start).Seconds())
	}
	if err != nil {
		e.logger.WarnContext(ctx, "classifier failed, treating command as unknown",
			"session", sess.ID,
			"error", err,
		)
		it = intent.Unknown(err.Error())
	}

	if e.metrics != nil {
		e.metrics.RecordCommand(string(it.Action))
	}
	e.logger.InfoContext(ctx, "interpreted command",
		"session", sess.ID,
		"action", it.Action,
		"needs_more_info", it.NeedsMoreInfo,
	)
	return it
}

// HandleIntent runs the propose-or-execute step. Read-only actions are
// answered inline; Send and Swap are validated and proposed for explicit
// confirmation. Unactionable intents return a clarification without ever
// consulting the validator or builder.
func (e *Engine) HandleIntent(ctx context.Context, sess *Session, it *intent.Intent) (*Outcome, error) {
	if !it.Actionable() {
		msg := it.Message
		if it.ClassifierError != "" {
			msg = fmt.Sprintf("%s (%s)", it.Message, it.ClassifierError)
		}
		return &Outcome{Kind: OutcomeClarification, Message: msg}, nil
	}

	switch it.Action {
	case intent.ActionCheckBalance:
		return e.answerBalance(ctx, sess)
	case intent.ActionAskAddress:
		return &Outcome{
			Kind:    OutcomeReply,
			Message: fmt.Sprintf("Your wallet address is %s", sess.Address.String()),
		}, nil
	case intent.ActionShowHistory:
		return e.answerHistory(ctx, sess)
	case intent.ActionSend, intent.ActionSwap:
		return e.propose(ctx, sess, it)
	default:
		return nil, fmt.Errorf("unhandled action %q", it.Action)
	}
}

func (e *Engine) answerBalance(ctx context.Context, sess *Session) (*Outcome, error) {
	lamports, err := e.ledger.Balance(ctx, sess.Address)
	if err != nil {
		return nil, normalizeNetworkError(err)
	}
	sess.setBalance(lamports, time.Now())

	sol, _ := e.assets.Lookup("SOL")
	return &Outcome{
		Kind:    OutcomeReply,
		Message: fmt.Sprintf("Your balance is %s SOL", FormatBaseUnits(lamports, sol.Decimals)),
	}, nil
}

func (e *Engine) answerHistory(ctx context.Context, sess *Session) (*Outcome, error) {
	history, err := e.ledger.RecentSignatures(ctx, sess.Address, historyLimit)
	if err != nil {
		return nil, normalizeNetworkError(err)
	}
	return &Outcome{
		Kind:    OutcomeReply,
		Message: fmt.Sprintf("Found %d recent transactions", len(history)),
		History: history,
	}, nil
}

// propose validates the intent and installs it as the session's pending
// transaction. Validation failures are surfaced as typed errors and leave
// the state machine untouched: no pending transaction is created.
func (e *Engine) propose(ctx context.Context, sess *Session, it *intent.Intent) (*Outcome, error) {
	e.refreshBalanceIfStale(ctx, sess)
	balance, _ := sess.balanceSnapshot()

	validated, err := e.validator.Validate(it, sess.Address, balance)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) && e.metrics != nil {
			e.metrics.RecordValidationError(string(vErr.Kind))
		}
		return nil, err
	}

	pending := &PendingTransaction{
		Validated:  validated,
		Mode:       e.modeFor(sess, validated),
		ProposedAt: time.Now(),
	}

	// Swaps are quoted before they are proposed, so the user confirms
	// against the expected output and a missing route never leaves a
	// dangling proposal behind.
	var expectedOutput uint64
	if validated.Action == intent.ActionSwap {
		route, err := e.builder.QuoteSwap(ctx, validated)
		if err != nil {
			var bErr *BuildError
			if errors.As(err, &bErr) && e.metrics != nil {
				e.metrics.RecordBuildError(string(bErr.Kind))
			}
			return nil, err
		}
		pending.Route = route
		expectedOutput = route.OutAmount
	}

	replaced, err := sess.propose(pending)
	if err != nil {
		return nil, err
	}
	if replaced {
		e.logger.WarnContext(ctx, "replaced a pending transaction with a new proposal",
			"session", sess.ID,
			"summary", validated.Summary,
		)
	}
	if e.metrics != nil {
		e.metrics.RecordProposal(string(validated.Action), replaced)
	}

	msg := fmt.Sprintf("%s. Confirm to proceed.", validated.Summary)
	if expectedOutput > 0 {
		msg = fmt.Sprintf("%s (expected output: %s %s). Confirm to proceed.",
			validated.Summary,
			FormatBaseUnits(expectedOutput, validated.DestinationAsset.Decimals),
			validated.DestinationAsset.Symbol)
	}

	return &Outcome{
		Kind:    OutcomeProposal,
		Message: msg,
		Proposal: &ProposalInfo{
			Summary:        validated.Summary,
			Mode:           pending.Mode,
			ExpectedOutput: expectedOutput,
			Replaced:       replaced,
		},
	}, nil
}

// modeFor picks the signing mode for a validated intent. Swaps always move
// user-custodied funds, so they are client-signed regardless of the
// session's default.
func (e *Engine) modeFor(sess *Session, v *ValidatedIntent) SigningMode {
	if v.Action == intent.ActionSwap {
		return ClientSign
	}
	return sess.Mode
}

// Confirm executes the session's pending transaction. Only an explicit call
// here moves the state machine out of Proposed; re-submitting the same text
// never does. Whatever happens, the machine is back in Idle afterward.
func (e *Engine) Confirm(ctx context.Context, sess *Session) (*Result, error) {
	pending, err := sess.beginExecution()
	if err != nil {
		return nil, err
	}

	action := string(pending.Validated.Action)
	start := time.Now()

	// The agent credential is a single shared resource: hold it for the
	// whole build-sign-broadcast span so two sessions can never sign
	// conflicting transactions against the same blockhash window.
	if pending.Mode == AgentSign && e.signer != nil {
		e.signer.Lock()
		defer e.signer.Unlock()
	}

	payload, err := e.builder.Build(ctx, pending)
	if err != nil {
		sess.finishExecution()
		if e.metrics != nil {
			var bErr *BuildError
			var xErr *ExecutionError
			switch {
			case errors.As(err, &bErr):
				e.metrics.RecordBuildError(string(bErr.Kind))
			case errors.As(err, &xErr):
				e.metrics.RecordExecutionError(string(xErr.Kind))
			}
			e.metrics.RecordConfirmation(action, "failed")
		}
		return nil, err
	}

	result, err := e.gateway.Execute(ctx, payload)
	sess.finishExecution()
	if e.metrics != nil {
		e.metrics.RecordExecutionDuration(string(pending.Mode), time.Since(start).Seconds())
	}
	if err != nil {
		var xErr *ExecutionError
		if errors.As(err, &xErr) && e.metrics != nil {
			e.metrics.RecordExecutionError(string(xErr.Kind))
		}
		if e.metrics != nil {
			e.metrics.RecordConfirmation(action, "failed")
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordConfirmation(action, "executed")
	}
	e.logger.InfoContext(ctx, "transaction executed",
		"session", sess.ID,
		"action", action,
		"mode", string(result.Mode),
		"signature", result.Signature,
	)

	if result.Mode == AgentSign {
		e.afterAgentExecution(sess, pending, result)
	}
	return result, nil
}

// afterAgentExecution handles the advisory follow-ups to a successful
// agent-signed broadcast: audit persistence, event publication, and a
// balance-snapshot refresh for the next validation. None of these affect
// the result already returned to the user.
func (e *Engine) afterAgentExecution(sess *Session, pending *PendingTransaction, result *Result) {
	event := &ExecutionEvent{
		SessionID: sess.ID,
		Action:    string(pending.Validated.Action),
		Signature: result.Signature,
		Amount:    pending.Validated.BaseAmount,
		Asset:     "SOL",
		Timestamp: time.Now(),
	}
	if !pending.Validated.Destination.IsZero() {
		event.Destination = pending.Validated.Destination.String()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if e.audit != nil {
			if err := e.audit.RecordExecution(ctx, event); err != nil {
				e.logger.Warn("failed to record execution in audit store", "error", err)
			}
		}
		if e.events != nil {
			if err := e.events.PublishExecution(ctx, event); err != nil {
				e.logger.Warn("failed to publish execution event", "error", err)
			}
		}
		if lamports, err := e.ledger.Balance(ctx, sess.Address); err == nil {
			sess.setBalance(lamports, time.Now())
		}
	}()
}

// Cancel drops the session's pending transaction if there is one. Safe to
// call any number of times; never triggers a network call.
func (e *Engine) Cancel(sess *Session) (bool, error) {
	cancelled, err := sess.cancel()
	if err != nil {
		return false, err
	}
	if cancelled {
		if e.metrics != nil {
			e.metrics.RecordCancellation()
		}
		e.logger.Info("pending transaction cancelled", "session", sess.ID)
	}
	return cancelled, nil
}

// refreshBalanceIfStale updates the session's balance snapshot when it is
// older than balanceStaleAfter. Best effort: on failure the old snapshot
// stands and the ledger remains the final authority.
func (e *Engine) refreshBalanceIfStale(ctx context.Context, sess *Session) {
	_, fetched := sess.balanceSnapshot()
	if time.Since(fetched) < balanceStaleAfter {
		return
	}
	lamports, err := e.ledger.Balance(ctx, sess.Address)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to refresh balance snapshot, keeping previous",
			"session", sess.ID,
			"error", err,
		)
		return
	}
	sess.setBalance(lamports, time.Now())
}
