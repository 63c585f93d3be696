package services

import (
	"context"
	"strings"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/metrics"
)

// Tier is one strategy of a fallback chain. Credential names the upstream
// credential the tier depends on; empty means none.
type Tier[Q, T any] struct {
	Name       string
	Credential string
	Resolve    func(ctx context.Context, query Q) ([]T, error)
}

// Resolver tries tiers in order and returns the first non-empty result,
// deduplicated by key and capped at limit. Transient tier errors count as an
// empty result. A credential or configuration error skips the later tiers
// that share the failing credential; the error is returned only when no
// remaining tier produces a result.
type Resolver[Q, T any] struct {
	tiers []Tier[Q, T]
	limit int
	key   func(T) string
}

func NewResolver[Q, T any](limit int, key func(T) string, tiers ...Tier[Q, T]) *Resolver[Q, T] {
	return &Resolver[Q, T]{tiers: tiers, limit: limit, key: key}
}

// Resolve returns the winning tier's items and name. Both are empty when
// every tier came back empty.
func (r *Resolver[Q, T]) Resolve(ctx context.Context, query Q) ([]T, string, error) {
	logger := logging.FromContext(ctx)
	var (
		fatalErr  error
		fatalTier string
		failed    = map[string]bool{}
	)
	for _, tier := range r.tiers {
		if tier.Credential != "" && failed[tier.Credential] {
			logger.Debug("skipping tier with rejected credential", "tier", tier.Name, "credential", tier.Credential)
			continue
		}
		items, err := tier.Resolve(ctx, query)
		if err != nil {
			if domain.IsFatal(err) {
				logger.Error("fallback tier rejected", "tier", tier.Name, "credential", tier.Credential, "error", err)
				if fatalErr == nil {
					fatalErr, fatalTier = err, tier.Name
				}
				if tier.Credential != "" {
					failed[tier.Credential] = true
				}
				continue
			}
			logger.Warn("fallback tier failed", "tier", tier.Name, "error", err)
			continue
		}

		items = r.normalize(items)
		if len(items) == 0 {
			logger.Debug("fallback tier returned nothing", "tier", tier.Name)
			continue
		}
		metrics.FallbackTier(tier.Name)
		return items, tier.Name, nil
	}
	if fatalErr != nil {
		return nil, fatalTier, fatalErr
	}
	return nil, "", nil
}

func (r *Resolver[Q, T]) normalize(items []T) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, min(len(items), r.limit))
	for _, item := range items {
		k := strings.ToLower(strings.TrimSpace(r.key(item)))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
		if len(out) == r.limit {
			break
		}
	}
	return out
}
