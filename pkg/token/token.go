// Package token issues and redeems single-artifact capability tokens for
// downloading artifacts produced by job handlers. A token is minted bound
// to exactly one file path and expires on its own even if never redeemed,
// so a gateway restart never orphans an in-flight download link (minted
// tokens live in the shared cache store, not process memory).
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a minted token remains redeemable.
const DefaultTTL = 30 * time.Minute

// ErrInvalid is returned when a token cannot be redeemed: unknown id,
// expired entry, or an entry that does not decode. The caller deliberately
// cannot distinguish these cases from the error alone, so a forged or
// guessed token id reads identically to an expired one. A store transport
// error is returned wrapped instead, not as ErrInvalid.
var ErrInvalid = errors.New("token: invalid or expired download token")

// Grant is the capability a minted token represents: read access to a
// single path, labeled with the artifact kind for logging/metrics.
type Grant struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Service mints and redeems download tokens against a shared store.
type Service struct {
	store Store
	ttl   time.Duration
}

// New creates a Service backed by store, a TTL'd key/value store.
func New(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

// Mint issues a new token scoped to grant, valid for the service's TTL.
func (s *Service) Mint(ctx context.Context, grant Grant) (string, error) {
	id := uuid.NewString()

	data, err := json.Marshal(grant)
	if err != nil {
		return "", fmt.Errorf("token: mint: %w", err)
	}

	if err := s.store.Set(ctx, key(id), data, s.ttl); err != nil {
		return "", fmt.Errorf("token: mint: %w", err)
	}
	return id, nil
}

// Redeem resolves id to the Grant it was minted for. It does not delete
// the entry: a token may back multiple GET requests (resumable downloads,
// retries) until it naturally expires.
func (s *Service) Redeem(ctx context.Context, id string) (Grant, error) {
	data, err := s.store.Get(ctx, key(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, ErrInvalid
		}
		return Grant{}, fmt.Errorf("token: redeem: %w", err)
	}

	var grant Grant
	if err := json.Unmarshal(data, &grant); err != nil {
		return Grant{}, ErrInvalid
	}
	return grant, nil
}

// TTL returns the lifetime assigned to tokens minted by this service.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Revoke invalidates id before its natural expiry.
func (s *Service) Revoke(ctx context.Context, id string) error {
	return s.store.Delete(ctx, key(id))
}

func key(id string) string {
	return "download-token:" + id
}
