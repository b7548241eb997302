package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/accountops/account-deletion/internal/domain"
)

// ProviderStateHandler keeps the tokens a third-party identity provider issued
// for a user, so they can be dropped when the link is revoked.
type ProviderStateHandler struct {
	client   *redis.Client
	provider string
}

// NewProviderStateHandler returns the handler for a single provider.
func NewProviderStateHandler(client *redis.Client, provider string) *ProviderStateHandler {
	return &ProviderStateHandler{client: client, provider: provider}
}

func (h *ProviderStateHandler) key(userID string) string {
	return fmt.Sprintf("provider_state:%s:%s", h.provider, userID)
}

// Provider returns the provider id the handler serves.
func (h *ProviderStateHandler) Provider() string {
	return h.provider
}

// StoreToken saves provider-held state for the user.
func (h *ProviderStateHandler) StoreToken(ctx context.Context, userID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return h.client.HSet(ctx, h.key(userID), fields).Err()
}

// Token returns the stored provider state, empty when none is kept.
func (h *ProviderStateHandler) Token(ctx context.Context, userID string) (map[string]string, error) {
	return h.client.HGetAll(ctx, h.key(userID)).Result()
}

// ClearProviderData drops everything the provider holds for the account.
func (h *ProviderStateHandler) ClearProviderData(ctx context.Context, account domain.ConnectedAccount) error {
	return h.client.Del(ctx, h.key(account.UserID)).Err()
}
