package chathandler

import (
	"context"
	"fmt"
	"strings"

	"relaygate/internal/storage"
)

// candidate is one fully-resolved (provider, model) pair the core attempt
// loop can try.
type candidate struct {
	ProviderID string
	Model      string
}

// resolveChain expands the client-supplied model string into an ordered
// list of candidates: a combo name expands to its full ordered member
// list (each member itself resolved), anything else resolves to exactly
// one candidate.
func resolveChain(ctx context.Context, aliases *storage.AliasRepository, combos *storage.ComboRepository, requested string) ([]candidate, error) {
	combo, err := combos.GetByName(ctx, requested)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("chathandler: look up combo: %w", err)
	}
	if combo != nil {
		chain := make([]candidate, 0, len(combo.Models))
		for _, member := range combo.Models {
			c, err := resolveOne(ctx, aliases, member)
			if err != nil {
				return nil, err
			}
			chain = append(chain, c)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("chathandler: combo %q has no models", requested)
		}
		return chain, nil
	}

	c, err := resolveOne(ctx, aliases, requested)
	if err != nil {
		return nil, err
	}
	return []candidate{c}, nil
}

// resolveOne resolves a single model string: either an explicit
// "provider/model" pair or a flat alias name.
func resolveOne(ctx context.Context, aliases *storage.AliasRepository, s string) (candidate, error) {
	if providerID, model, ok := strings.Cut(s, "/"); ok && providerID != "" && model != "" {
		return candidate{ProviderID: providerID, Model: model}, nil
	}

	alias, err := aliases.GetByAlias(ctx, s)
	if err != nil {
		if storage.IsNotFound(err) {
			return candidate{}, fmt.Errorf("chathandler: unknown model or alias %q", s)
		}
		return candidate{}, fmt.Errorf("chathandler: look up alias %q: %w", s, err)
	}
	if !alias.Enabled {
		return candidate{}, fmt.Errorf("chathandler: alias %q is disabled", s)
	}
	return candidate{ProviderID: alias.ProviderID, Model: alias.Model}, nil
}
