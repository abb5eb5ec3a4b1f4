package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/models"
)

// MemoryStore is a Store held in process memory. Portfolios are stored as
// snapshots so callers never share ledger state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	accounts   map[string]models.Account
	byEmail    map[string]string   // lower-cased email -> account ID
	owned      map[string][]string // account ID -> portfolio IDs in creation order
	portfolios map[string]*ledger.Portfolio
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[string]models.Account),
		byEmail:    make(map[string]string),
		owned:      make(map[string][]string),
		portfolios: make(map[string]*ledger.Portfolio),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Email)
	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, a.Email)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.PortfolioIDs = []string{}
	stored := *a
	stored.PortfolioIDs = nil
	s.accounts[a.ID] = stored
	s.byEmail[key] = a.ID
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account(id)
}

func (s *MemoryStore) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, email)
	}
	return s.account(id)
}

func (s *MemoryStore) account(id string) (*models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	a.PortfolioIDs = append([]string{}, s.owned[id]...)
	return &a, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	for _, pid := range s.owned[id] {
		delete(s.portfolios, pid)
	}
	delete(s.owned, id)
	delete(s.byEmail, strings.ToLower(a.Email))
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) nameTaken(accountID, name, exceptID string) bool {
	for _, pid := range s.owned[accountID] {
		if pid != exceptID && s.portfolios[pid].Name == name {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreatePortfolio(_ context.Context, p *ledger.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[p.AccountID]; !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, p.AccountID)
	}
	if s.nameTaken(p.AccountID, p.Name, p.ID) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
	}
	s.portfolios[p.ID] = p.Snapshot()
	s.owned[p.AccountID] = append(s.owned[p.AccountID], p.ID)
	return nil
}

func (s *MemoryStore) LoadPortfolio(_ context.Context, id string) (*ledger.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio %s", ErrNotFound, id)
	}
	return p.Snapshot(), nil
}

func (s *MemoryStore) SavePortfolio(_ context.Context, p *ledger.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.portfolios[p.ID]
	if !ok {
		return fmt.Errorf("%w: portfolio %s", ErrNotFound, p.ID)
	}
	if stored.Version != p.Version {
		return fmt.Errorf("%w: portfolio %s changed since version %d", ledger.ErrConcurrentModification, p.ID, p.Version)
	}
	next := p.Snapshot()
	next.Version++
	next.Name = stored.Name
	s.portfolios[p.ID] = next
	p.Version++
	return nil
}

func (s *MemoryStore) ListPortfolios(_ context.Context, accountID string) ([]*ledger.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ledger.Portfolio, 0, len(s.owned[accountID]))
	for _, pid := range s.owned[accountID] {
		out = append(out, s.portfolios[pid].Snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CountPortfolios(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owned[accountID]), nil
}

func (s *MemoryStore) RenamePortfolio(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[id]
	if !ok {
		return fmt.Errorf("%w: portfolio %s", ErrNotFound, id)
	}
	if s.nameTaken(p.AccountID, name, id) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	p.Name = name
	p.Version++
	return nil
}

func (s *MemoryStore) DeletePortfolio(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[id]
	if !ok {
		return fmt.Errorf("%w: portfolio %s", ErrNotFound, id)
	}
	ids := s.owned[p.AccountID]
	for i, pid := range ids {
		if pid == id {
			s.owned[p.AccountID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	delete(s.portfolios, id)
	return nil
}

func (s *MemoryStore) HeldSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, p := range s.portfolios {
		for _, sym := range p.SymbolsOwned() {
			seen[sym] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}
