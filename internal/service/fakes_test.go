package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/chain"
	"github.com/DemolaJames/xo-market-api/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: make(map[int64]domain.User)}
}

func (s *fakeUserStore) addUser(wallet string, isAdmin bool) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: s.nextID, WalletAddress: wallet, IsAdmin: isAdmin, CreatedAt: time.Now()}
	s.users[u.ID] = u
	s.nextID++
	return u
}

func (s *fakeUserStore) FindByID(ctx context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) FindOrCreateByWallet(ctx context.Context, wallet string) (domain.User, error) {
	s.mu.Lock()
	for _, u := range s.users {
		if u.WalletAddress == wallet {
			s.mu.Unlock()
			return u, nil
		}
	}
	s.mu.Unlock()
	return s.addUser(wallet, false), nil
}

type fakeMarketStore struct {
	mu      sync.Mutex
	nextID  int64
	markets map[int64]domain.Market
	credits map[int64]int
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{
		nextID:  1,
		markets: make(map[int64]domain.Market),
		credits: make(map[int64]int),
	}
}

func (s *fakeMarketStore) get(id int64) (domain.Market, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	return m, ok
}

func (s *fakeMarketStore) Create(ctx context.Context, m domain.Market) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID
	m.Status = domain.MarketStatusPending
	m.CreatedAt = time.Now()
	s.markets[m.ID] = m
	s.nextID++
	return m, nil
}

func (s *fakeMarketStore) FindByID(ctx context.Context, id int64) (domain.Market, error) {
	m, ok := s.get(id)
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) FindMany(ctx context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if f.Status != nil && m.Status != *f.Status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeMarketStore) ListByCreator(ctx context.Context, creatorID int64) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.CreatorID == creatorID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMarketStore) ApproveAndCredit(ctx context.Context, marketID, marketTypeID, approverID int64) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusPending {
		return domain.Market{}, fmt.Errorf("market is %s: %w", m.Status, domain.ErrInvalidState)
	}
	now := time.Now()
	m.Status = domain.MarketStatusApproved
	m.MarketTypeID = &marketTypeID
	m.ApprovedByID = &approverID
	m.ApprovedAt = &now
	s.markets[marketID] = m
	s.credits[m.CreatorID]++
	return m, nil
}

func (s *fakeMarketStore) MarkLive(ctx context.Context, marketID int64, txHash string, onchainID int64) (domain.Market, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return domain.Market{}, false, domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusApproved {
		return m, false, nil
	}
	m.Status = domain.MarketStatusLive
	m.TxHash = &txHash
	m.OnchainID = &onchainID
	s.markets[marketID] = m
	return m, true, nil
}

func (s *fakeMarketStore) MarkFailed(ctx context.Context, marketID int64) (domain.Market, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return domain.Market{}, false, domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusApproved {
		return m, false, nil
	}
	m.Status = domain.MarketStatusFailed
	s.markets[marketID] = m
	return m, true, nil
}

type fakeMarketTypeStore struct {
	mu     sync.Mutex
	nextID int64
	types  map[int64]domain.MarketType
}

func newFakeMarketTypeStore() *fakeMarketTypeStore {
	return &fakeMarketTypeStore{nextID: 1, types: make(map[int64]domain.MarketType)}
}

func (s *fakeMarketTypeStore) add(mt domain.MarketType) domain.MarketType {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt.ID = s.nextID
	s.types[mt.ID] = mt
	s.nextID++
	return mt
}

func (s *fakeMarketTypeStore) FindByID(ctx context.Context, id int64) (domain.MarketType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.types[id]
	if !ok {
		return domain.MarketType{}, domain.ErrNotFound
	}
	return mt, nil
}

func (s *fakeMarketTypeStore) FindByName(ctx context.Context, name string) (domain.MarketType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mt := range s.types {
		if mt.Name == name {
			return mt, nil
		}
	}
	return domain.MarketType{}, domain.ErrNotFound
}

func (s *fakeMarketTypeStore) ListActive(ctx context.Context) ([]domain.MarketType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketType
	for _, mt := range s.types {
		if mt.IsActive {
			out = append(out, mt)
		}
	}
	return out, nil
}

func (s *fakeMarketTypeStore) Seed(ctx context.Context, types []domain.MarketType) error {
	for _, mt := range types {
		if _, err := s.FindByName(ctx, mt.Name); err == nil {
			continue
		}
		s.add(mt)
	}
	return nil
}

// fakeGateway records deploys and settles synchronously with a fixed outcome.
type fakeGateway struct {
	mu      sync.Mutex
	deploys []int64
	result  chain.DeployResult
	err     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{result: chain.DeployResult{TxHash: "0xabc", OnchainID: 7}}
}

func (g *fakeGateway) Deploy(ctx context.Context, m domain.Market) (chain.DeployResult, error) {
	g.mu.Lock()
	g.deploys = append(g.deploys, m.ID)
	g.mu.Unlock()
	if g.err != nil {
		return chain.DeployResult{}, g.err
	}
	return g.result, nil
}

func (g *fakeGateway) deployCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.deploys)
}

func (g *fakeGateway) Health(ctx context.Context) chain.Health {
	return chain.Health{Healthy: true}
}

type fakeLimiter struct {
	allowed bool
	calls   int
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.calls++
	return l.allowed, nil
}
