// Package entitlement is the sole authority on whether a query may run and
// on adjusting the remaining allowance afterwards.
package entitlement

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/jamesbond008/mungers-mind/internal/kv"
)

type Tier string

const (
	TierTrial      Tier = "trial"
	TierStarter    Tier = "starter"
	TierUnlimited  Tier = "unlimited"
	TierCreditPack Tier = "creditPack"
)

// State is the persisted per-user record. CreditsRemaining is ignored for
// the unlimited tier.
type State struct {
	Tier             Tier `json:"tier"`
	CreditsRemaining int  `json:"creditsRemaining"`
}

// Allowed reports whether a query may proceed under this state.
func (s State) Allowed() bool {
	return s.Tier == TierUnlimited || s.CreditsRemaining > 0
}

// Allotments are the per-tier credit grants. They come from configuration,
// not constants, because the product tunes them.
type Allotments struct {
	Trial      int
	Starter    int
	CreditPack int
}

type Store struct {
	kv         kv.Store
	allotments Allotments
}

func NewStore(store kv.Store, allotments Allotments) *Store {
	return &Store{kv: store, allotments: allotments}
}

func stateKey(userID string) string {
	return "entitlement:" + userID
}

func (s *Store) trialState() State {
	return State{Tier: TierTrial, CreditsRemaining: s.allotments.Trial}
}

// Current loads the persisted state. A missing or unparsable record falls
// back to the trial default rather than failing.
func (s *Store) Current(ctx context.Context, userID string) (State, error) {
	raw, found, err := s.kv.Get(ctx, stateKey(userID))
	if err != nil {
		return State{}, err
	}
	if !found {
		return s.trialState(), nil
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil || !isKnownTier(state.Tier) || state.CreditsRemaining < 0 {
		log.Printf("corrupt entitlement record for user %s; resetting to trial", userID)
		return s.trialState(), nil
	}
	return state, nil
}

// ConsumeOne decrements the remaining credits by exactly one, with a floor
// of zero. It is a no-op for the unlimited tier. Callers must have observed
// Allowed() before invoking it.
func (s *Store) ConsumeOne(ctx context.Context, userID string) (State, error) {
	state, err := s.Current(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if state.Tier == TierUnlimited {
		return state, nil
	}
	if state.CreditsRemaining > 0 {
		state.CreditsRemaining--
	}
	if err := s.persist(ctx, userID, state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Grant applies a completed-purchase signal. Starter and unlimited replace
// the prior state outright; a credit pack is additive when the user is
// already on the creditPack tier, so repeat purchases stack.
func (s *Store) Grant(ctx context.Context, userID string, tier Tier) (State, error) {
	current, err := s.Current(ctx, userID)
	if err != nil {
		return State{}, err
	}

	var next State
	switch tier {
	case TierStarter:
		next = State{Tier: TierStarter, CreditsRemaining: s.allotments.Starter}
	case TierUnlimited:
		next = State{Tier: TierUnlimited, CreditsRemaining: 0}
	case TierCreditPack:
		carried := 0
		if current.Tier == TierCreditPack {
			carried = current.CreditsRemaining
		}
		next = State{Tier: TierCreditPack, CreditsRemaining: carried + s.allotments.CreditPack}
	default:
		return current, nil
	}

	if err := s.persist(ctx, userID, next); err != nil {
		return State{}, err
	}
	return next, nil
}

// Reset drops the persisted record, returning the user to the trial default.
func (s *Store) Reset(ctx context.Context, userID string) (State, error) {
	if err := s.kv.Delete(ctx, stateKey(userID)); err != nil {
		return State{}, err
	}
	return s.trialState(), nil
}

func (s *Store) persist(ctx context.Context, userID string, state State) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, stateKey(userID), string(encoded))
}

func isKnownTier(tier Tier) bool {
	switch tier {
	case TierTrial, TierStarter, TierUnlimited, TierCreditPack:
		return true
	}
	return false
}

// ParsePlan maps an externally-supplied plan identifier (the checkout
// return redirect parameter) to a grantable tier. Unknown values mean
// "no grant".
func ParsePlan(value string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "starter":
		return TierStarter, true
	case "pro", "unlimited":
		return TierUnlimited, true
	case "credits", "creditpack", "credit_pack":
		return TierCreditPack, true
	}
	return "", false
}
