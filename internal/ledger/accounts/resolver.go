package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Tier records how a role was resolved.
type Tier string

const (
	TierNumber Tier = "number"
	TierName   Tier = "name"
)

// Map is the resolved role → account lookup shared read-only by generators.
type Map struct {
	ids     map[Role]uuid.UUID
	sources map[Role]Tier
}

// NewMap builds a Map from explicit ids, all attributed to the number tier.
func NewMap(ids map[Role]uuid.UUID) Map {
	m := Map{ids: make(map[Role]uuid.UUID, len(ids)), sources: make(map[Role]Tier, len(ids))}
	for role, id := range ids {
		if id == uuid.Nil {
			continue
		}
		m.ids[role] = id
		m.sources[role] = TierNumber
	}
	return m
}

// Get returns the account for role.
func (m Map) Get(role Role) (uuid.UUID, bool) {
	id, ok := m.ids[role]
	return id, ok
}

// Has reports whether every role is resolved.
func (m Map) Has(roles ...Role) bool {
	for _, role := range roles {
		if _, ok := m.ids[role]; !ok {
			return false
		}
	}
	return true
}

// First returns the first resolved role among candidates.
func (m Map) First(candidates ...Role) (uuid.UUID, bool) {
	for _, role := range candidates {
		if id, ok := m.ids[role]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// Source reports which tier resolved role.
func (m Map) Source(role Role) (Tier, bool) {
	tier, ok := m.sources[role]
	return tier, ok
}

// Len returns the number of resolved roles.
func (m Map) Len() int {
	return len(m.ids)
}

// With returns a copy of m with role bound to id.
func (m Map) With(role Role, id uuid.UUID) Map {
	out := Map{ids: make(map[Role]uuid.UUID, len(m.ids)+1), sources: make(map[Role]Tier, len(m.sources)+1)}
	for k, v := range m.ids {
		out.ids[k] = v
	}
	for k, v := range m.sources {
		out.sources[k] = v
	}
	out.ids[role] = id
	out.sources[role] = TierNumber
	return out
}

// Store is the persistence the resolver needs.
type Store interface {
	ListAccounts(ctx context.Context, companyID uuid.UUID) ([]ledger.Account, error)
	CreateAccount(ctx context.Context, companyID uuid.UUID, seed ledger.AccountSeed) (ledger.Account, error)
}

// Resolver seeds and resolves a company's control accounts.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve seeds the fixed account list and builds the role map. It fails only
// when the company has no chart at all; missing roles are left out.
func (r *Resolver) Resolve(ctx context.Context, companyID uuid.UUID) (Map, error) {
	chart, err := r.store.ListAccounts(ctx, companyID)
	if err != nil {
		return Map{}, fmt.Errorf("accounts: list chart: %w", err)
	}
	if len(chart) == 0 {
		return Map{}, ledger.ErrMissingAccounts
	}
	chart, err = r.Seed(ctx, companyID, chart, Seeds)
	if err != nil {
		return Map{}, err
	}
	m := Resolve(chart)
	for _, def := range Definitions {
		if tier, ok := m.Source(def.Role); ok && tier == TierName {
			r.logger.Warn("account resolved by name fallback",
				slog.String("company_id", companyID.String()),
				slog.String("role", string(def.Role)),
				slog.String("expected_number", def.Number))
		}
	}
	return m, nil
}

// Seed inserts every seed whose number is absent from chart and returns the
// augmented chart.
func (r *Resolver) Seed(ctx context.Context, companyID uuid.UUID, chart []ledger.Account, seeds []ledger.AccountSeed) ([]ledger.Account, error) {
	have := make(map[string]bool, len(chart))
	for _, a := range chart {
		have[a.Number] = true
	}
	for _, seed := range seeds {
		if have[seed.Number] {
			continue
		}
		created, err := r.store.CreateAccount(ctx, companyID, seed)
		if err != nil {
			return nil, fmt.Errorf("accounts: seed %s: %w", seed.Number, err)
		}
		r.logger.Info("seeded account",
			slog.String("company_id", companyID.String()),
			slog.String("number", seed.Number),
			slog.String("name", seed.Name))
		chart = append(chart, created)
		have[seed.Number] = true
	}
	return chart, nil
}

// Ensure returns the account with seed's number, creating it when missing.
func (r *Resolver) Ensure(ctx context.Context, companyID uuid.UUID, seed ledger.AccountSeed) (ledger.Account, error) {
	return r.store.CreateAccount(ctx, companyID, seed)
}

// Resolve runs both tiers over a chart: canonical numbers first, then the
// name fallback for whatever is still missing.
func Resolve(chart []ledger.Account) Map {
	m := Map{ids: make(map[Role]uuid.UUID), sources: make(map[Role]Tier)}
	for role, id := range ResolveByNumber(chart) {
		m.ids[role] = id
		m.sources[role] = TierNumber
	}
	claimed := make(map[uuid.UUID]bool, len(m.ids))
	for _, id := range m.ids {
		claimed[id] = true
	}
	for role, id := range ResolveByName(chart, claimed, m.ids) {
		m.ids[role] = id
		m.sources[role] = TierName
	}
	return m
}

// ResolveByNumber matches active accounts against canonical numbers.
func ResolveByNumber(chart []ledger.Account) map[Role]uuid.UUID {
	byNumber := make(map[string]ledger.Account, len(chart))
	for _, a := range chart {
		if a.Active {
			byNumber[a.Number] = a
		}
	}
	out := make(map[Role]uuid.UUID)
	for _, def := range Definitions {
		if a, ok := byNumber[def.Number]; ok {
			out[def.Role] = a.ID
		}
	}
	return out
}

// ResolveByName is the best-effort tier: for each role not in resolved it
// picks the lowest-numbered active, unclaimed account of the role's type whose
// name contains one of the role patterns. Matches are heuristics and callers
// should surface them.
func ResolveByName(chart []ledger.Account, claimed map[uuid.UUID]bool, resolved map[Role]uuid.UUID) map[Role]uuid.UUID {
	sorted := make([]ledger.Account, 0, len(chart))
	for _, a := range chart {
		if a.Active {
			sorted = append(sorted, a)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	taken := make(map[uuid.UUID]bool, len(claimed))
	for id := range claimed {
		taken[id] = true
	}
	out := make(map[Role]uuid.UUID)
	for _, def := range Definitions {
		if _, ok := resolved[def.Role]; ok {
			continue
		}
		if id, ok := matchName(sorted, taken, def); ok {
			out[def.Role] = id
			taken[id] = true
		}
	}
	return out
}

func matchName(chart []ledger.Account, taken map[uuid.UUID]bool, def Definition) (uuid.UUID, bool) {
	for _, pattern := range def.Patterns {
		for _, a := range chart {
			if taken[a.ID] || a.Type != def.Type {
				continue
			}
			// Bank sub-accounts never stand in for the Cash control account.
			if def.Role == RoleCash && a.SubType == ledger.SubTypeBank {
				continue
			}
			if strings.Contains(strings.ToLower(a.Name), pattern) {
				return a.ID, true
			}
		}
	}
	return uuid.Nil, false
}
