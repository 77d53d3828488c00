package stream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/NibirNd/Poly/internal/model"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestTradeEventToModel(t *testing.T) {
	ev := tradeEvent{
		EventType:    "last_trade_price",
		Market:       "m1",
		OutcomeIndex: 1,
		Outcome:      "No",
		Side:         "SELL",
		Price:        "0.88",
		Size:         "500",
		Timestamp:    "1700000000000",
		Maker:        "0xabc",
		TxHash:       "0xdeadbeef",
	}

	trade, ok := ev.toModel()
	if !ok {
		t.Fatal("toModel rejected a valid event")
	}
	if trade.ID != "0xdeadbeef-1-1700000000000" {
		t.Errorf("id = %s", trade.ID)
	}
	if trade.Size != 440 {
		t.Errorf("size = %v, want 500*0.88 notional", trade.Size)
	}
	if trade.Side != model.SideSell {
		t.Errorf("side = %s, want SELL", trade.Side)
	}
}

func TestTradeEventToModelRejectsBadNumbers(t *testing.T) {
	tests := []struct {
		name  string
		event tradeEvent
	}{
		{"bad price", tradeEvent{Price: "n/a", Size: "10", Timestamp: "1"}},
		{"bad size", tradeEvent{Price: "0.5", Size: "", Timestamp: "1"}},
		{"bad timestamp", tradeEvent{Price: "0.5", Size: "10", Timestamp: "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.event.toModel(); ok {
				t.Error("toModel accepted a malformed event")
			}
		})
	}
}

func TestHandleMessageBuffersTradeFrames(t *testing.T) {
	l := NewListener("ws://unused", nil, testLogger())

	// Array frame with one trade event and one ignorable book event.
	l.handleMessage([]byte(`[
		{"event_type":"last_trade_price","market":"m1","outcome_index":0,"side":"BUY","price":"0.12","size":"100","timestamp":"1700000000000","transaction_hash":"0x1"},
		{"event_type":"book","market":"m1"}
	]`))
	// Single-event frame without the array wrapper.
	l.handleMessage([]byte(`{"event_type":"last_trade_price","market":"m2","outcome_index":0,"side":"SELL","price":"0.5","size":"40","timestamp":"1700000001000","transaction_hash":"0x2"}`))
	// Garbage frame is dropped silently.
	l.handleMessage([]byte(`not json`))

	got := l.Drain()
	if len(got) != 2 {
		t.Fatalf("buffered = %d trades, want 2", len(got))
	}
	if got[0].MarketID != "m1" || got[1].MarketID != "m2" {
		t.Errorf("markets = %s, %s", got[0].MarketID, got[1].MarketID)
	}
	if len(l.Drain()) != 0 {
		t.Error("Drain did not empty the buffer")
	}
}

type stubPoll struct {
	trades map[string][]model.Trade
	err    error
}

func (s *stubPoll) RecentTrades(ctx context.Context, market model.Market) ([]model.Trade, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.trades[market.ID], nil
}

func bufferTrade(l *Listener, marketID, id string) {
	l.buf <- model.Trade{ID: id, MarketID: marketID}
}

func TestMergedSourceCombinesPollAndStream(t *testing.T) {
	listener := NewListener("ws://unused", nil, testLogger())
	poll := &stubPoll{trades: map[string][]model.Trade{
		"m1": {{ID: "poll-1", MarketID: "m1"}},
	}}
	src := NewMergedSource(poll, listener)

	bufferTrade(listener, "m1", "live-1")
	bufferTrade(listener, "m2", "live-2")

	got, err := src.RecentTrades(context.Background(), model.Market{ID: "m1"})
	if err != nil {
		t.Fatalf("RecentTrades error: %v", err)
	}
	ids := map[string]bool{}
	for _, tr := range got {
		ids[tr.ID] = true
	}
	if !ids["poll-1"] || !ids["live-1"] || ids["live-2"] {
		t.Errorf("trades = %v, want poll-1 and live-1 only", got)
	}

	// The other market's buffered trade is still pending.
	got, err = src.RecentTrades(context.Background(), model.Market{ID: "m2"})
	if err != nil {
		t.Fatalf("RecentTrades error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "live-2" {
		t.Errorf("m2 trades = %v, want the pending live-2", got)
	}
}

func TestMergedSourceToleratesPollFailureWithBufferedTrades(t *testing.T) {
	listener := NewListener("ws://unused", nil, testLogger())
	poll := &stubPoll{err: errors.New("upstream 503")}
	src := NewMergedSource(poll, listener)

	bufferTrade(listener, "m1", "live-1")

	got, err := src.RecentTrades(context.Background(), model.Market{ID: "m1"})
	if err != nil {
		t.Fatalf("RecentTrades error = %v, want nil when live trades exist", err)
	}
	if len(got) != 1 || got[0].ID != "live-1" {
		t.Errorf("trades = %v, want only the live trade", got)
	}

	// With nothing buffered the poll error surfaces.
	if _, err := src.RecentTrades(context.Background(), model.Market{ID: "m1"}); err == nil {
		t.Error("RecentTrades error = nil, want poll failure with empty buffer")
	}
}

func TestHandleMessageDropsOldestWhenFull(t *testing.T) {
	l := NewListener("ws://unused", nil, testLogger())
	for i := 0; i < bufferSize; i++ {
		bufferTrade(l, "m1", fmt.Sprintf("t%d", i))
	}

	l.handleMessage([]byte(`{"event_type":"last_trade_price","market":"m1","outcome_index":0,"side":"BUY","price":"0.5","size":"10","timestamp":"1700000000000","transaction_hash":"0xnew"}`))

	got := l.Drain()
	if len(got) != bufferSize {
		t.Fatalf("buffered = %d, want %d", len(got), bufferSize)
	}
	if got[0].ID != "t1" {
		t.Errorf("oldest surviving trade = %s, want t1 after t0 was dropped", got[0].ID)
	}
	if got[len(got)-1].ID != "0xnew-0-1700000000000" {
		t.Errorf("newest trade = %s, want the fresh event", got[len(got)-1].ID)
	}
}
