// Package rules persists the user's sender decisions: shield (block),
// rollup (read later in bulk) and whitelist (trusted).
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/znz-systems/mailsift/internal/models"
)

var (
	ErrInvalidSender = errors.New("sender must not be empty")
	// ErrNotFound is returned by a Backend that holds no rule set yet.
	ErrNotFound = errors.New("rule set not found")
)

// Backend holds one serialized rule set. Write replaces it wholesale.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Store owns the process-wide rule set. The first access loads it from the
// backend, creating an empty one if none exists. Every mutation runs
// load, mutate, persist under one lock, and the in-memory copy only changes
// after a successful write.
type Store struct {
	backend Backend

	mu      sync.Mutex
	current *models.RuleSet
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Load(ctx context.Context) (models.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.loadLocked(ctx)
	if err != nil {
		return models.RuleSet{}, err
	}
	return clone(rs), nil
}

// AddToShield blocks sender and drops it from the rollup list.
func (s *Store) AddToShield(ctx context.Context, sender string) (models.RuleSet, error) {
	return s.mutate(ctx, sender, func(rs *models.RuleSet, sender string) {
		rs.Shield = insert(rs.Shield, sender)
		rs.Rollup = without(rs.Rollup, sender)
	})
}

// AddToRollup moves sender to the rollup list and drops it from the shield.
func (s *Store) AddToRollup(ctx context.Context, sender string) (models.RuleSet, error) {
	return s.mutate(ctx, sender, func(rs *models.RuleSet, sender string) {
		rs.Rollup = insert(rs.Rollup, sender)
		rs.Shield = without(rs.Shield, sender)
	})
}

// Remove clears sender from shield and rollup. The whitelist is untouched.
func (s *Store) Remove(ctx context.Context, sender string) (models.RuleSet, error) {
	return s.mutate(ctx, sender, func(rs *models.RuleSet, sender string) {
		rs.Shield = without(rs.Shield, sender)
		rs.Rollup = without(rs.Rollup, sender)
	})
}

func (s *Store) Trust(ctx context.Context, sender string) (models.RuleSet, error) {
	return s.mutate(ctx, sender, func(rs *models.RuleSet, sender string) {
		rs.Whitelist = insert(rs.Whitelist, sender)
	})
}

func (s *Store) Untrust(ctx context.Context, sender string) (models.RuleSet, error) {
	return s.mutate(ctx, sender, func(rs *models.RuleSet, sender string) {
		rs.Whitelist = without(rs.Whitelist, sender)
	})
}

func (s *Store) mutate(ctx context.Context, sender string, fn func(rs *models.RuleSet, sender string)) (models.RuleSet, error) {
	sender = NormalizeSender(sender)
	if sender == "" {
		return models.RuleSet{}, ErrInvalidSender
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadLocked(ctx)
	if err != nil {
		return models.RuleSet{}, err
	}

	next := clone(cur)
	fn(&next, sender)
	if err := s.persist(ctx, next); err != nil {
		return models.RuleSet{}, err
	}
	s.current = &next
	return clone(next), nil
}

func (s *Store) loadLocked(ctx context.Context) (models.RuleSet, error) {
	if s.current != nil {
		return *s.current, nil
	}

	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		empty := emptyRuleSet()
		if err := s.persist(ctx, empty); err != nil {
			return models.RuleSet{}, err
		}
		s.current = &empty
		return empty, nil
	}
	if err != nil {
		return models.RuleSet{}, fmt.Errorf("read rule set: %w", err)
	}

	var rs models.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return models.RuleSet{}, fmt.Errorf("decode rule set: %w", err)
	}
	rs = normalizeRuleSet(rs)
	s.current = &rs
	return rs, nil
}

func (s *Store) persist(ctx context.Context, rs models.RuleSet) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rule set: %w", err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("write rule set: %w", err)
	}
	return nil
}

// NormalizeSender lowercases and trims a sender address or domain.
func NormalizeSender(sender string) string {
	return strings.ToLower(strings.TrimSpace(sender))
}

func emptyRuleSet() models.RuleSet {
	return models.RuleSet{Shield: []string{}, Rollup: []string{}, Whitelist: []string{}}
}

// normalizeRuleSet cleans a rule set read from storage. If a sender is on
// both lists, the shield wins.
func normalizeRuleSet(rs models.RuleSet) models.RuleSet {
	norm := func(list []string) []string {
		out := lo.Uniq(lo.FilterMap(list, func(s string, _ int) (string, bool) {
			s = NormalizeSender(s)
			return s, s != ""
		}))
		sort.Strings(out)
		return out
	}
	out := models.RuleSet{
		Shield:    norm(rs.Shield),
		Rollup:    norm(rs.Rollup),
		Whitelist: norm(rs.Whitelist),
	}
	out.Rollup = lo.Without(out.Rollup, out.Shield...)
	return out
}

func clone(rs models.RuleSet) models.RuleSet {
	return models.RuleSet{
		Shield:    append([]string{}, rs.Shield...),
		Rollup:    append([]string{}, rs.Rollup...),
		Whitelist: append([]string{}, rs.Whitelist...),
	}
}

func insert(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

func without(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return append(list[:i], list[i+1:]...)
	}
	return list
}
