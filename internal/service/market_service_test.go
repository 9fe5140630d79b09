package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/bus"
	"github.com/DemolaJames/xo-market-api/internal/domain"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type serviceHarness struct {
	users   *fakeUserStore
	markets *fakeMarketStore
	types   *fakeMarketTypeStore
	gateway *fakeGateway
	bus     *bus.Bus
	svc     *MarketService
}

func newHarness(t *testing.T) *serviceHarness {
	t.Helper()
	logger := testLogger()
	users := newFakeUserStore()
	markets := newFakeMarketStore()
	types := newFakeMarketTypeStore()
	gateway := newFakeGateway()
	b := bus.New(logger)
	typeSvc := NewMarketTypeService(types, logger)
	svc := NewMarketService(markets, users, typeSvc, gateway, b, logger)
	return &serviceHarness{users: users, markets: markets, types: types, gateway: gateway, bus: b, svc: svc}
}

func validProposal() domain.MarketProposal {
	return domain.MarketProposal{
		Title:           "ETH above 5k by year end",
		Description:     "Settles yes if ETH/USD closes above 5000",
		Expiry:          time.Now().Add(72 * time.Hour),
		ConvictionLevel: 0.8,
	}
}

// permissiveType returns a type every valid proposal passes.
func (h *serviceHarness) permissiveType() domain.MarketType {
	return h.types.add(domain.MarketType{
		Name:     "Open",
		IsActive: true,
		Rules:    domain.ValidationRules{},
	})
}

func TestCreateEmitsBroadcastEvent(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	sub := h.bus.Subscribe()
	defer sub.Close()

	m, err := h.svc.Create(context.Background(), creator.ID, validProposal())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Status != domain.MarketStatusPending {
		t.Fatalf("status = %s, want PENDING", m.Status)
	}

	ev := <-sub.C
	if ev.Type != domain.EventMarketCreated {
		t.Fatalf("event type = %s, want market_created", ev.Type)
	}
	if ev.UserID != nil {
		t.Fatal("market_created must be a broadcast event")
	}
	if ev.Data["creator"] != creator.WalletAddress {
		t.Fatalf("creator = %v, want %s", ev.Data["creator"], creator.WalletAddress)
	}
}

func TestCreateRejectsBadProposals(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)

	cases := map[string]func(*domain.MarketProposal){
		"empty title":         func(p *domain.MarketProposal) { p.Title = "  " },
		"empty description":   func(p *domain.MarketProposal) { p.Description = "" },
		"past expiry":         func(p *domain.MarketProposal) { p.Expiry = time.Now().Add(-time.Hour) },
		"conviction too high": func(p *domain.MarketProposal) { p.ConvictionLevel = 1.5 },
		"conviction negative": func(p *domain.MarketProposal) { p.ConvictionLevel = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validProposal()
			mutate(&p)
			_, err := h.svc.Create(context.Background(), creator.ID, p)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestCreateRateLimited(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	limiter := &fakeLimiter{allowed: false}
	h.svc.WithRateLimiter(limiter)

	_, err := h.svc.Create(context.Background(), creator.ID, validProposal())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if limiter.calls != 1 {
		t.Fatalf("limiter calls = %d, want 1", limiter.calls)
	}
}

func TestApproveCreditsAndSettlesLive(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	admin := h.users.addUser("0xadmin", true)
	mt := h.permissiveType()

	m, err := h.svc.Create(context.Background(), creator.ID, validProposal())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sub := h.bus.Subscribe()
	defer sub.Close()

	approved, err := h.svc.Approve(context.Background(), m.ID, mt.ID, admin.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != domain.MarketStatusApproved {
		t.Fatalf("status = %s, want APPROVED", approved.Status)
	}
	if got := h.markets.credits[creator.ID]; got != 1 {
		t.Fatalf("creator credits = %d, want 1", got)
	}

	waitFor(t, "market to go LIVE", func() bool {
		cur, _ := h.markets.get(m.ID)
		return cur.Status == domain.MarketStatusLive
	})
	cur, _ := h.markets.get(m.ID)
	if cur.TxHash == nil || *cur.TxHash != "0xabc" {
		t.Fatalf("tx hash not recorded: %v", cur.TxHash)
	}

	var sawApproved, sawDeployed bool
	for !sawApproved || !sawDeployed {
		select {
		case ev := <-sub.C:
			switch ev.Type {
			case domain.EventMarketApproved:
				sawApproved = true
				if ev.UserID == nil || *ev.UserID != creator.ID {
					t.Fatalf("market_approved targeted at %v, want creator %d", ev.UserID, creator.ID)
				}
			case domain.EventMarketDeployed:
				sawDeployed = true
				if ev.Data["txHash"] != "0xabc" {
					t.Fatalf("txHash = %v", ev.Data["txHash"])
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing events: approved=%v deployed=%v", sawApproved, sawDeployed)
		}
	}
}

func TestApproveSettlementFailureMarksFailed(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	admin := h.users.addUser("0xadmin", true)
	mt := h.permissiveType()
	h.gateway.err = errors.New("rpc unreachable")

	m, _ := h.svc.Create(context.Background(), creator.ID, validProposal())
	sub := h.bus.Subscribe()
	defer sub.Close()

	if _, err := h.svc.Approve(context.Background(), m.ID, mt.ID, admin.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	waitFor(t, "market to FAIL", func() bool {
		cur, _ := h.markets.get(m.ID)
		return cur.Status == domain.MarketStatusFailed
	})

	for {
		select {
		case ev := <-sub.C:
			if ev.Type != domain.EventMarketFailed {
				continue
			}
			if ev.Data["error"] != deployFailedReason {
				t.Fatalf("error = %v, want %q", ev.Data["error"], deployFailedReason)
			}
			if ev.UserID == nil || *ev.UserID != creator.ID {
				t.Fatalf("market_failed targeted at %v, want creator %d", ev.UserID, creator.ID)
			}
			return
		case <-time.After(2 * time.Second):
			t.Fatal("no market_failed event")
		}
	}
}

func TestApproveRejectsNonPending(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	admin := h.users.addUser("0xadmin", true)
	mt := h.permissiveType()

	m, _ := h.svc.Create(context.Background(), creator.ID, validProposal())
	if _, err := h.svc.Approve(context.Background(), m.ID, mt.ID, admin.ID); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	_, err := h.svc.Approve(context.Background(), m.ID, mt.ID, admin.ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestApproveUnknownMarket(t *testing.T) {
	h := newHarness(t)
	admin := h.users.addUser("0xadmin", true)
	mt := h.permissiveType()

	_, err := h.svc.Approve(context.Background(), 999, mt.ID, admin.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApproveValidationFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	admin := h.users.addUser("0xadmin", true)
	strict := h.types.add(domain.MarketType{
		Name:     "Strict",
		IsActive: true,
		Rules: domain.ValidationRules{
			MinConvictionLevel: floatPtr(0.9),
			MinExpiryHours:     intPtr(500),
		},
	})

	m, _ := h.svc.Create(context.Background(), creator.ID, validProposal())
	sub := h.bus.Subscribe()
	defer sub.Close()

	_, err := h.svc.Approve(context.Background(), m.ID, strict.ID, admin.ID)
	verr, ok := domain.AsValidationError(err)
	if !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Violations) != 2 {
		t.Fatalf("violations = %v, want both rules reported", verr.Violations)
	}

	cur, _ := h.markets.get(m.ID)
	if cur.Status != domain.MarketStatusPending {
		t.Fatalf("status = %s, want PENDING after failed validation", cur.Status)
	}
	if h.markets.credits[creator.ID] != 0 {
		t.Fatal("creator was credited despite failed validation")
	}
	if h.gateway.deployCount() != 0 {
		t.Fatal("settlement ran despite failed validation")
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %s after failed validation", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConcurrentApproveSingleWinner(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	admin := h.users.addUser("0xadmin", true)
	mt := h.permissiveType()

	m, _ := h.svc.Create(context.Background(), creator.ID, validProposal())

	const racers = 16
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Approve(context.Background(), m.ID, mt.ID, admin.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	if got := h.markets.credits[creator.ID]; got != 1 {
		t.Fatalf("creator credits = %d, want 1", got)
	}

	waitFor(t, "single settlement", func() bool { return h.gateway.deployCount() == 1 })
}

func TestFindAllDefaultsLimit(t *testing.T) {
	h := newHarness(t)
	creator := h.users.addUser("0xcafe", false)
	if _, err := h.svc.Create(context.Background(), creator.ID, validProposal()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := h.svc.FindAll(context.Background(), domain.MarketFilter{Limit: -1, Offset: -5})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
}
