package engine

import (
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/soloquy/service/intent"
)

func newTestSession() *Session {
	return NewSession("sess-1", solanago.NewWallet().PublicKey(), ClientSign)
}

func testPending() *PendingTransaction {
	return &PendingTransaction{
		Validated:  &ValidatedIntent{Action: intent.ActionSend, BaseAmount: 1},
		Mode:       ClientSign,
		ProposedAt: time.Now(),
	}
}

func TestSession_StartsIdle(t *testing.T) {
	s := newTestSession()

	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Pending())
}

func TestSession_ProposeMovesToProposed(t *testing.T) {
	s := newTestSession()

	replaced, err := s.propose(testPending())

	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, StateProposed, s.State())
	assert.NotNil(t, s.Pending())
}

func TestSession_ReProposeReplacesExplicitly(t *testing.T) {
	s := newTestSession()

	first := testPending()
	second := testPending()
	second.Validated.BaseAmount = 2

	_, err := s.propose(first)
	require.NoError(t, err)

	replaced, err := s.propose(second)
	require.NoError(t, err)

	assert.True(t, replaced, "replacing a live proposal must be reported, not silent")
	assert.Equal(t, uint64(2), s.Pending().Validated.BaseAmount)
}

func TestSession_CancelFromIdleIsNoOp(t *testing.T) {
	s := newTestSession()

	cancelled, err := s.cancel()

	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_CancelIsIdempotent(t *testing.T) {
	s := newTestSession()
	_, err := s.propose(testPending())
	require.NoError(t, err)

	cancelled, err := s.cancel()
	require.NoError(t, err)
	assert.True(t, cancelled)

	// Second cancel has the same observable effect: Idle, nothing pending.
	cancelled, err = s.cancel()
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Pending())
}

func TestSession_ConfirmRequiresProposal(t *testing.T) {
	s := newTestSession()

	_, err := s.beginExecution()

	assert.ErrorIs(t, err, ErrNoPendingTransaction)
}

func TestSession_ExecutionLifecycle(t *testing.T) {
	s := newTestSession()
	_, err := s.propose(testPending())
	require.NoError(t, err)

	pending, err := s.beginExecution()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, StateExecuting, s.State())

	// While executing, no cancellation and no second confirmation.
	_, err = s.cancel()
	assert.ErrorIs(t, err, ErrExecutionInProgress)
	_, err = s.beginExecution()
	assert.ErrorIs(t, err, ErrExecutionInProgress)
	_, err = s.propose(testPending())
	assert.ErrorIs(t, err, ErrExecutionInProgress)

	s.finishExecution()
	assert.Equal(t, StateIdle, s.State(), "machine must come back to Idle after execution")
	assert.Nil(t, s.Pending())
}

func TestSession_BalanceSnapshot(t *testing.T) {
	s := newTestSession()

	lamports, fetched := s.balanceSnapshot()
	assert.Zero(t, lamports)
	assert.True(t, fetched.IsZero())

	now := time.Now()
	s.setBalance(42, now)

	lamports, fetched = s.balanceSnapshot()
	assert.Equal(t, uint64(42), lamports)
	assert.Equal(t, now, fetched)
}
