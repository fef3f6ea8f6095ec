package authflowrepo

import (
	"context"
	"time"
)

// AuthFlowState is what the sign-in redirect remembers until the provider
// calls back.
type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(ctx context.Context, state string, authState *AuthFlowState) error
	Get(ctx context.Context, state string) (*AuthFlowState, error)
	// Take is Get and Delete as one step: a flow is handed out at most once.
	Take(ctx context.Context, state string) (*AuthFlowState, error)
	Delete(ctx context.Context, state string) error
}
