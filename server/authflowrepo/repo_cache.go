package authflowrepo

import (
	"context"
	"fmt"
	"time"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
)

const (
	keyPrefix = "authflow:"

	fieldCodeVerifier = "code_verifier"
	fieldNonce        = "nonce"
	fieldReturnURL    = "return_url"
	fieldCreatedAt    = "created_at"
)

// HashStore is the hash-field subset of the key-value store.
type HashStore interface {
	HMSetValTTL(ctx context.Context, key string, ttl time.Duration, kvp ...any) (int64, error)
	HMGetVal(ctx context.Context, key string, fields ...string) (map[string]string, error)
	HMTakeVal(ctx context.Context, key string, fields ...string) (map[string]string, error)
	ClearKeys(ctx context.Context, keys ...string) (int64, error)
}

var flowFields = []string{fieldCodeVerifier, fieldNonce, fieldReturnURL, fieldCreatedAt}

var _ Repo = (*CacheRepo)(nil)

// CacheRepo keeps each pending flow as a hash entry that expires after ttl,
// so abandoned sign-ins clean themselves up.
type CacheRepo struct {
	store HashStore
	ttl   time.Duration
}

func NewCacheRepo(store HashStore, ttl time.Duration) *CacheRepo {
	return &CacheRepo{store: store, ttl: ttl}
}

func key(state string) string {
	return keyPrefix + state
}

func (r *CacheRepo) Upsert(ctx context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errs.New("state cannot be empty")
	}
	if authState == nil {
		return errs.New("authState cannot be nil")
	}

	// Fields and expiry are written in one transaction, so a flow hash never
	// outlives its TTL.
	_, err := r.store.HMSetValTTL(ctx, key(state), r.ttl,
		fieldCodeVerifier, authState.CodeVerifier,
		fieldNonce, authState.Nonce,
		fieldReturnURL, authState.ReturnURL,
		fieldCreatedAt, authState.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("[authflow Upsert] %w", err)
	}
	return nil
}

func (r *CacheRepo) Get(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errs.New("state cannot be empty")
	}

	fields, err := r.store.HMGetVal(ctx, key(state), flowFields...)
	if err != nil {
		return nil, fmt.Errorf("[authflow Get] %w", err)
	}
	return decodeFlow(fields)
}

// Take returns the flow and deletes it atomically. Of several concurrent
// callers with the same state, only one gets the flow; the rest get
// ErrNotFound.
func (r *CacheRepo) Take(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errs.New("state cannot be empty")
	}

	fields, err := r.store.HMTakeVal(ctx, key(state), flowFields...)
	if err != nil {
		return nil, fmt.Errorf("[authflow Take] %w", err)
	}
	return decodeFlow(fields)
}

func decodeFlow(fields map[string]string) (*AuthFlowState, error) {
	created, ok := fields[fieldCreatedAt]
	if !ok {
		return nil, errs.ErrNotFound
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("[authflow] created_at: %w", err)
	}

	return &AuthFlowState{
		CodeVerifier: fields[fieldCodeVerifier],
		Nonce:        fields[fieldNonce],
		ReturnURL:    fields[fieldReturnURL],
		CreatedAt:    createdAt,
	}, nil
}

func (r *CacheRepo) Delete(ctx context.Context, state string) error {
	if state == "" {
		return errs.New("state cannot be empty")
	}
	if _, err := r.store.ClearKeys(ctx, key(state)); err != nil {
		return fmt.Errorf("[authflow Delete] %w", err)
	}
	return nil
}
