package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"algoengine/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "engine.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAlgoPositionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pos := &model.Position{
		Symbol:        "TCS",
		EntryPrice:    1001.5,
		Quantity:      50,
		CurrentPrice:  1001.5,
		TrailingLevel: -1,
		Status:        model.StatusActive,
		EntryAt:       time.Unix(1790000000, 0),
	}
	if err := s.UpsertAlgoPosition(ctx, pos); err != nil {
		t.Fatal(err)
	}
	if pos.ID == 0 {
		t.Fatal("insert must assign an ID")
	}

	got, err := s.AlgoPositionBySymbol(ctx, "TCS")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != pos.ID || got.EntryPrice != 1001.5 || got.TrailingLevel != -1 {
		t.Fatalf("unexpected round trip: %+v", got)
	}
	if !got.EntryAt.Equal(pos.EntryAt) {
		t.Errorf("entry time mangled: %v", got.EntryAt)
	}
	if !got.ExitAt.IsZero() {
		t.Errorf("expected zero exit time, got %v", got.ExitAt)
	}

	// Update in place: same ID, new trailing level and pnl.
	got.TrailingLevel = 4
	got.UpdatePnL(1066)
	if err := s.UpsertAlgoPosition(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, err := s.AlgoPositionBySymbol(ctx, "TCS")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != pos.ID || again.TrailingLevel != 4 {
		t.Fatalf("update lost state: %+v", again)
	}
}

func TestAlgoPositionBySymbol_ExitedIsInvisible(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pos := &model.Position{
		Symbol: "INFY", EntryPrice: 100, Quantity: 1,
		TrailingLevel: -1, Status: model.StatusActive, EntryAt: time.Now(),
	}
	if err := s.UpsertAlgoPosition(ctx, pos); err != nil {
		t.Fatal(err)
	}
	pos.Status = model.StatusExited
	pos.ExitAt = time.Now()
	pos.ExitReason = model.ExitRSIReversal
	if err := s.UpsertAlgoPosition(ctx, pos); err != nil {
		t.Fatal(err)
	}

	got, err := s.AlgoPositionBySymbol(ctx, "INFY")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("exited position still visible: %+v", got)
	}

	active, err := s.ActiveAlgoPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active positions, got %d", len(active))
	}
}

func TestUserPositionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := &model.UserPosition{
		Position: model.Position{
			Symbol: "TCS", EntryPrice: 1001.5, Quantity: 50,
			TrailingLevel: -1, Status: model.StatusActive, EntryAt: time.Unix(1790000000, 0),
		},
		AccountID:      "ACC1",
		AlgoPositionID: 7,
		EntryOrderID:   "ORD-1",
	}
	if err := s.UpsertUserPosition(ctx, u); err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveUserPositions(ctx, "ACC1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].AlgoPositionID != 7 || active[0].EntryOrderID != "ORD-1" {
		t.Fatalf("unexpected user positions: %+v", active)
	}

	// Another account sees nothing.
	other, err := s.ActiveUserPositions(ctx, "ACC2")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("account isolation broken: %+v", other)
	}
}

func TestSaveOrder_DuplicateIsSatisfied(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := &model.Order{
		OrderID: "ORD-1", ClientOrderID: "client-1", AccountID: "ACC1",
		Symbol: "TCS", Exchange: "NSE",
		TransactionType: model.TxnBuy, OrderType: model.OrderTypeMarket,
		ProductType: model.ProductMTF, Qty: 50, Status: "complete",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := s.SaveOrder(ctx, o); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveOrder(ctx, o); err != nil {
		t.Fatalf("duplicate order ID must not error: %v", err)
	}

	if err := s.UpdateOrderStatus(ctx, "ORD-1", "rejected"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateOrderStatus(ctx, "ORD-404", "rejected"); err == nil {
		t.Fatal("expected error updating unknown order")
	}
}

func TestPreferences_MissingRowDisablesTrading(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tp, err := s.TradingPreferences(ctx, "ACC-NEW")
	if err != nil {
		t.Fatal(err)
	}
	if tp.TradingEnabled {
		t.Error("unknown account must default to disabled trading")
	}
}

func TestPreferences_FreezeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SavePreferences(ctx, model.TradingPreferences{
		AccountID: "ACC1", TradingEnabled: true,
		MaxOpenPositions: 5, AllocationAmount: 10000, DailyLossLimitPct: 5,
	}); err != nil {
		t.Fatal(err)
	}

	until := time.Unix(1790050000, 0)
	if err := s.FreezeTrading(ctx, "ACC1", until); err != nil {
		t.Fatal(err)
	}

	tp, err := s.TradingPreferences(ctx, "ACC1")
	if err != nil {
		t.Fatal(err)
	}
	if !tp.FrozenUntil.Equal(until) {
		t.Errorf("expected frozen until %v, got %v", until, tp.FrozenUntil)
	}
	if !tp.Frozen(until.Add(-time.Minute)) || tp.Frozen(until.Add(time.Minute)) {
		t.Error("Frozen() boundary wrong")
	}
}

func TestDailyPnL_Accumulates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)

	if err := s.RecordRealizedPnL(ctx, "ACC1", day, 325); err != nil {
		t.Fatal(err)
	}
	// Same trading day, different clock time: must accumulate.
	if err := s.RecordRealizedPnL(ctx, "ACC1", day.Add(2*time.Hour), -500); err != nil {
		t.Fatal(err)
	}

	got, err := s.DailyPnL(ctx, "ACC1", day)
	if err != nil {
		t.Fatal(err)
	}
	if got != -175 {
		t.Errorf("expected -175, got %v", got)
	}

	// Unknown day reads zero.
	if got, err := s.DailyPnL(ctx, "ACC1", day.AddDate(0, 0, 3)); err != nil || got != 0 {
		t.Errorf("expected 0 for empty day, got %v err %v", got, err)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := model.Credentials{
		AccountID:  "ACC1",
		ClientID:   "C123",
		APIKey:     "key",
		PrivateKey: []byte{1, 2, 3, 4},
		TOTPSecret: "JBSWY3DP",
	}
	if err := s.SaveCredentials(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := s.Credentials(ctx, "ACC1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ClientID != "C123" || string(got.PrivateKey) != string(want.PrivateKey) {
		t.Fatalf("unexpected credentials: %+v", got)
	}

	if _, err := s.Credentials(ctx, "ACC404"); err == nil {
		t.Fatal("expected error for unknown account")
	}
}
