package trade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"algoengine/internal/broker"
	"algoengine/internal/model"
)

var tradeAt = time.Date(2026, 8, 28, 7, 30, 0, 0, time.UTC) // 13:00 IST Friday

// ── fakes ──

type memStore struct {
	algo   map[string]*model.Position
	users  []model.UserPosition
	orders []model.Order
	prefs  model.TradingPreferences
	daily  float64

	nextID      int64
	freezeUntil time.Time
	recorded    float64
}

func newMemStore(prefs model.TradingPreferences) *memStore {
	return &memStore{algo: map[string]*model.Position{}, prefs: prefs}
}

func (m *memStore) ActiveAlgoPositions(ctx context.Context) ([]model.Position, error) {
	var out []model.Position
	for _, p := range m.algo {
		if p.Status == model.StatusActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) AlgoPositionBySymbol(ctx context.Context, symbol string) (*model.Position, error) {
	p, ok := m.algo[symbol]
	if !ok || p.Status != model.StatusActive {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpsertAlgoPosition(ctx context.Context, p *model.Position) error {
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	}
	cp := *p
	m.algo[p.Symbol] = &cp
	return nil
}

func (m *memStore) ActiveUserPositions(ctx context.Context, accountID string) ([]model.UserPosition, error) {
	var out []model.UserPosition
	for _, u := range m.users {
		if u.AccountID == accountID && u.Status == model.StatusActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) UpsertUserPosition(ctx context.Context, p *model.UserPosition) error {
	for i := range m.users {
		if m.users[i].Symbol == p.Symbol && m.users[i].AccountID == p.AccountID {
			m.users[i] = *p
			return nil
		}
	}
	m.users = append(m.users, *p)
	return nil
}

func (m *memStore) SaveOrder(ctx context.Context, o *model.Order) error {
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, orderID, status string) error { return nil }

func (m *memStore) TradingPreferences(ctx context.Context, accountID string) (model.TradingPreferences, error) {
	return m.prefs, nil
}

func (m *memStore) FreezeTrading(ctx context.Context, accountID string, until time.Time) error {
	m.freezeUntil = until
	return nil
}

func (m *memStore) RecordRealizedPnL(ctx context.Context, accountID string, day time.Time, amount float64) error {
	m.recorded += amount
	return nil
}

func (m *memStore) DailyPnL(ctx context.Context, accountID string, day time.Time) (float64, error) {
	return m.daily, nil
}

type fakeBroker struct {
	margin    broker.MarginInfo
	marginErr error
	ltp       float64
	ltpErr    error
	orders    []broker.OrderRequest
	orderErr  error
}

func (f *fakeBroker) MarginInfo(ctx context.Context, req broker.MarginRequest) (broker.MarginInfo, error) {
	return f.margin, f.marginErr
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	if f.orderErr != nil {
		return broker.OrderResult{}, f.orderErr
	}
	f.orders = append(f.orders, req)
	return broker.OrderResult{OrderID: "ORD-1", Status: "complete"}, nil
}

func (f *fakeBroker) LTP(ctx context.Context, symbol, exchange string) (broker.LTPData, error) {
	if f.ltpErr != nil {
		return broker.LTPData{}, f.ltpErr
	}
	return broker.LTPData{Symbol: symbol, LTP: f.ltp}, nil
}

type fakeNotifier struct{ sent []string }

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func defaultPrefs() model.TradingPreferences {
	return model.TradingPreferences{
		AccountID:         "ACC1",
		TradingEnabled:    true,
		MaxOpenPositions:  5,
		AllocationAmount:  10000,
		DailyLossLimitPct: 5,
	}
}

func newTestTrader(api *fakeBroker, store *memStore, notify Notifier) *Trader {
	t := NewTrader("ACC1", "NSE", api, Store{
		Positions: store, Orders: store, Prefs: store, PnL: store,
	}, notify, nil)
	t.now = func() time.Time { return tradeAt }
	t.newID = func() string { return "client-1" }
	return t
}

func entrySignal(symbol string, close float64) model.EntrySignal {
	return model.EntrySignal{
		Symbol:     symbol,
		Verdict:    model.VerdictEntry,
		Indicators: model.TechnicalIndicators{Close: close},
		StopLoss:   close * 0.975,
		Target1:    close * 1.05,
		Target2:    close * 1.075,
	}
}

// ── sizing ──

func TestSizePosition_BrokerMargin(t *testing.T) {
	api := &fakeBroker{margin: broker.MarginInfo{RequiredMargin: 200}}
	tr := newTestTrader(api, newMemStore(defaultPrefs()), nil)

	qty, perShare, leverage, err := tr.sizePosition(context.Background(), "TCS", 1000, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if qty != 50 {
		t.Errorf("expected qty 50, got %d", qty)
	}
	if perShare != 200 {
		t.Errorf("expected margin 200/share, got %v", perShare)
	}
	if leverage != 5.0 {
		t.Errorf("expected 5x leverage, got %v", leverage)
	}
}

func TestSizePosition_FallbackOnZeroMargin(t *testing.T) {
	api := &fakeBroker{margin: broker.MarginInfo{}} // broker reports nothing
	tr := newTestTrader(api, newMemStore(defaultPrefs()), nil)

	qty, perShare, _, err := tr.sizePosition(context.Background(), "TCS", 1000, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if perShare != 200 { // 20% of 1000
		t.Errorf("expected fallback margin 200/share, got %v", perShare)
	}
	if qty != 50 {
		t.Errorf("expected qty 50, got %d", qty)
	}
}

func TestSizePosition_AllocationTooSmall(t *testing.T) {
	api := &fakeBroker{margin: broker.MarginInfo{RequiredMargin: 200}}
	tr := newTestTrader(api, newMemStore(defaultPrefs()), nil)

	if _, _, _, err := tr.sizePosition(context.Background(), "MRF", 1000, 100); err == nil {
		t.Fatal("expected error when allocation buys zero shares")
	}
}

// ── entry ──

func TestEnterPosition_HappyPath(t *testing.T) {
	api := &fakeBroker{margin: broker.MarginInfo{RequiredMargin: 200}, ltp: 1001.5}
	store := newMemStore(defaultPrefs())
	notify := &fakeNotifier{}
	tr := newTestTrader(api, store, notify)

	user, err := tr.EnterPosition(context.Background(), entrySignal("TCS", 1000))
	if err != nil {
		t.Fatal(err)
	}

	if len(api.orders) != 1 || api.orders[0].TransactionType != model.TxnBuy {
		t.Fatalf("expected one BUY order, got %+v", api.orders)
	}
	if api.orders[0].ProductType != model.ProductMTF || api.orders[0].OrderType != model.OrderTypeMarket {
		t.Errorf("expected MTF market order, got %+v", api.orders[0])
	}
	if user.EntryPrice != 1001.5 {
		t.Errorf("expected LTP fill 1001.5, got %v", user.EntryPrice)
	}
	if user.TrailingLevel != -1 {
		t.Errorf("expected trailing level -1 on entry, got %d", user.TrailingLevel)
	}
	if user.AlgoPositionID == 0 || user.EntryOrderID != "ORD-1" {
		t.Errorf("user leg not linked: %+v", user)
	}
	if len(store.orders) != 1 || store.orders[0].ClientOrderID != "client-1" {
		t.Errorf("order not recorded: %+v", store.orders)
	}
	if len(notify.sent) != 1 || !strings.Contains(notify.sent[0], "BUY TCS") {
		t.Errorf("expected entry notification, got %v", notify.sent)
	}
}

func TestEnterPosition_DuplicateSymbolRejected(t *testing.T) {
	api := &fakeBroker{margin: broker.MarginInfo{RequiredMargin: 200}, ltp: 1000}
	store := newMemStore(defaultPrefs())
	store.UpsertAlgoPosition(context.Background(), &model.Position{
		Symbol: "TCS", Status: model.StatusActive, EntryPrice: 990, Quantity: 10,
	})
	tr := newTestTrader(api, store, nil)

	_, err := tr.EnterPosition(context.Background(), entrySignal("TCS", 1000))
	if !errors.Is(err, ErrDuplicatePosition) {
		t.Fatalf("expected ErrDuplicatePosition, got %v", err)
	}
	if len(api.orders) != 0 {
		t.Error("duplicate signal must not reach the broker")
	}
}

func TestEnterPosition_RefusesNonEntryVerdict(t *testing.T) {
	tr := newTestTrader(&fakeBroker{}, newMemStore(defaultPrefs()), nil)
	sig := entrySignal("TCS", 1000)
	sig.Verdict = model.VerdictWatchlist
	if _, err := tr.EnterPosition(context.Background(), sig); err == nil {
		t.Fatal("WATCHLIST must never place orders")
	}
}

// ── eligibility ──

func TestEligibility_Gates(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		prefs := defaultPrefs()
		prefs.TradingEnabled = false
		tr := newTestTrader(&fakeBroker{}, newMemStore(prefs), nil)
		if _, err := tr.checkEligibility(context.Background()); !errors.Is(err, ErrTradingDisabled) {
			t.Fatalf("expected ErrTradingDisabled, got %v", err)
		}
	})

	t.Run("frozen", func(t *testing.T) {
		prefs := defaultPrefs()
		prefs.FrozenUntil = tradeAt.Add(time.Hour)
		tr := newTestTrader(&fakeBroker{}, newMemStore(prefs), nil)
		if _, err := tr.checkEligibility(context.Background()); !errors.Is(err, ErrTradingFrozen) {
			t.Fatalf("expected ErrTradingFrozen, got %v", err)
		}
	})

	t.Run("max positions", func(t *testing.T) {
		prefs := defaultPrefs()
		prefs.MaxOpenPositions = 1
		store := newMemStore(prefs)
		store.users = append(store.users, model.UserPosition{
			Position:  model.Position{Symbol: "INFY", Status: model.StatusActive},
			AccountID: "ACC1",
		})
		tr := newTestTrader(&fakeBroker{}, store, nil)
		if _, err := tr.checkEligibility(context.Background()); !errors.Is(err, ErrMaxPositions) {
			t.Fatalf("expected ErrMaxPositions, got %v", err)
		}
	})

	t.Run("daily loss freezes account", func(t *testing.T) {
		store := newMemStore(defaultPrefs())
		store.daily = -600 // limit is 5% of 10000 = 500
		tr := newTestTrader(&fakeBroker{}, store, nil)

		if _, err := tr.checkEligibility(context.Background()); !errors.Is(err, ErrDailyLossLimit) {
			t.Fatalf("expected ErrDailyLossLimit, got %v", err)
		}
		if store.freezeUntil.IsZero() || !store.freezeUntil.After(tradeAt) {
			t.Errorf("expected freeze until next trading day, got %v", store.freezeUntil)
		}
	})

	t.Run("loss under limit passes", func(t *testing.T) {
		store := newMemStore(defaultPrefs())
		store.daily = -400
		tr := newTestTrader(&fakeBroker{}, store, nil)
		if _, err := tr.checkEligibility(context.Background()); err != nil {
			t.Fatalf("expected eligible, got %v", err)
		}
	})
}

// ── exit ──

func TestExitPosition_BooksRealizedPnL(t *testing.T) {
	api := &fakeBroker{ltp: 106.5}
	store := newMemStore(defaultPrefs())
	notify := &fakeNotifier{}
	tr := newTestTrader(api, store, notify)

	pos := &model.Position{
		ID: 7, Symbol: "TCS", EntryPrice: 100, Quantity: 50,
		CurrentPrice: 106, TrailingLevel: 4, Status: model.StatusActive,
		EntryAt: tradeAt.Add(-3 * time.Hour),
	}
	store.users = append(store.users, model.UserPosition{
		Position: *pos, AccountID: "ACC1", AlgoPositionID: 7, EntryOrderID: "ORD-0",
	})

	if err := tr.ExitPosition(context.Background(), pos, model.ExitTrailingStop); err != nil {
		t.Fatal(err)
	}

	if len(api.orders) != 1 || api.orders[0].TransactionType != model.TxnSell {
		t.Fatalf("expected one SELL order, got %+v", api.orders)
	}
	if pos.Status != model.StatusExited || pos.ExitPrice != 106.5 {
		t.Errorf("exit not finalized: %+v", pos)
	}
	if store.recorded != (106.5-100)*50 {
		t.Errorf("expected realized pnl 325, got %v", store.recorded)
	}
	if store.users[0].ExitOrderID != "ORD-1" {
		t.Errorf("user leg missing exit order: %+v", store.users[0])
	}
	if len(notify.sent) != 1 || !strings.Contains(notify.sent[0], "SELL TCS") {
		t.Errorf("expected exit notification, got %v", notify.sent)
	}
}

func TestExitPosition_StopLossMarksStopped(t *testing.T) {
	api := &fakeBroker{ltp: 97}
	store := newMemStore(defaultPrefs())
	tr := newTestTrader(api, store, nil)

	pos := &model.Position{
		ID: 1, Symbol: "TCS", EntryPrice: 100, Quantity: 10,
		CurrentPrice: 97, TrailingLevel: -1, Status: model.StatusActive,
	}
	if err := tr.ExitPosition(context.Background(), pos, model.ExitStopLoss); err != nil {
		t.Fatal(err)
	}
	if pos.Status != model.StatusStopped {
		t.Errorf("expected STOPPED status, got %s", pos.Status)
	}
}

func TestExitPosition_LTPFailureUsesLastPrice(t *testing.T) {
	api := &fakeBroker{ltpErr: errors.New("quote down")}
	store := newMemStore(defaultPrefs())
	tr := newTestTrader(api, store, nil)

	pos := &model.Position{
		ID: 1, Symbol: "TCS", EntryPrice: 100, Quantity: 10,
		CurrentPrice: 103, Status: model.StatusActive,
	}
	if err := tr.ExitPosition(context.Background(), pos, model.ExitRSIReversal); err != nil {
		t.Fatal(err)
	}
	if pos.ExitPrice != 103 {
		t.Errorf("expected fallback to last price 103, got %v", pos.ExitPrice)
	}
}

// ── reconciliation ──

func TestReconcile_LinksBySymbol(t *testing.T) {
	store := newMemStore(defaultPrefs())
	store.UpsertAlgoPosition(context.Background(), &model.Position{
		Symbol: "TCS", Status: model.StatusActive,
	})
	store.users = append(store.users,
		model.UserPosition{ // needs linking
			Position:  model.Position{Symbol: "TCS", Status: model.StatusActive},
			AccountID: "ACC1",
		},
		model.UserPosition{ // already linked, must be untouched
			Position:       model.Position{Symbol: "INFY", Status: model.StatusActive},
			AccountID:      "ACC1",
			AlgoPositionID: 99,
		},
		model.UserPosition{ // orphan, no algo counterpart
			Position:  model.Position{Symbol: "WIPRO", Status: model.StatusActive},
			AccountID: "ACC1",
		},
	)

	tr := newTestTrader(&fakeBroker{}, store, nil)
	linked, err := tr.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if linked != 1 {
		t.Fatalf("expected 1 link, got %d", linked)
	}
	if store.users[0].AlgoPositionID == 0 {
		t.Error("TCS leg not linked")
	}
	if store.users[1].AlgoPositionID != 99 {
		t.Error("already-linked leg modified")
	}
	if store.users[2].AlgoPositionID != 0 {
		t.Error("orphan leg must stay unlinked")
	}
}

// Rerunning reconciliation must be a no-op.
func TestReconcile_Idempotent(t *testing.T) {
	store := newMemStore(defaultPrefs())
	store.UpsertAlgoPosition(context.Background(), &model.Position{
		Symbol: "TCS", Status: model.StatusActive,
	})
	store.users = append(store.users, model.UserPosition{
		Position:  model.Position{Symbol: "TCS", Status: model.StatusActive},
		AccountID: "ACC1",
	})

	tr := newTestTrader(&fakeBroker{}, store, nil)
	if _, err := tr.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	linked, err := tr.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if linked != 0 {
		t.Errorf("second pass must link nothing, got %d", linked)
	}
}
