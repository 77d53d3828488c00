// Package stream maintains a websocket subscription to the Polymarket CLOB
// market channel and buffers live trade events between polling cycles.
package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/NibirNd/Poly/internal/model"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	bufferSize     = 4096
)

// tradeEvent is the wire shape of a market-channel trade message.
type tradeEvent struct {
	EventType    string `json:"event_type"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	OutcomeIndex int    `json:"outcome_index"`
	Outcome      string `json:"outcome"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Size         string `json:"size"`
	Timestamp    string `json:"timestamp"` // Unix millis as string
	Maker        string `json:"maker"`
	TxHash       string `json:"transaction_hash"`
}

type subscribeMessage struct {
	Type      string   `json:"type"`
	Channel   string   `json:"channel"`
	AssetsIDs []string `json:"assets_ids"`
}

// Listener holds the websocket connection and the trade buffer. When the
// buffer fills, the oldest trades are dropped; the polling source will pick
// them up anyway.
type Listener struct {
	url      string
	assetIDs []string
	buf      chan model.Trade
	log      *logrus.Logger
}

// NewListener creates a Listener subscribed to the given asset ids.
func NewListener(url string, assetIDs []string, log *logrus.Logger) *Listener {
	return &Listener{
		url:      url,
		assetIDs: assetIDs,
		buf:      make(chan model.Trade, bufferSize),
		log:      log,
	}
}

// Run connects and reads until the context is cancelled, reconnecting with
// exponential backoff on failure.
func (l *Listener) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if err := l.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.WithError(err).WithField("backoff", backoff).Warn("Stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (l *Listener) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMessage{
		Type:      "subscribe",
		Channel:   "market",
		AssetsIDs: l.assetIDs,
	}); err != nil {
		return err
	}

	l.log.WithField("assets", len(l.assetIDs)).Info("Stream connected")

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.handleMessage(data)
	}
}

func (l *Listener) handleMessage(data []byte) {
	var events []tradeEvent
	if err := json.Unmarshal(data, &events); err != nil {
		// Single-event frames arrive without the array wrapper.
		var ev tradeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			l.log.WithError(err).Debug("Unparseable stream frame")
			return
		}
		events = []tradeEvent{ev}
	}

	for _, ev := range events {
		if ev.EventType != "last_trade_price" {
			continue
		}
		trade, ok := ev.toModel()
		if !ok {
			continue
		}
		select {
		case l.buf <- trade:
		default:
			// Buffer full; drop the oldest to keep the feed fresh.
			select {
			case <-l.buf:
			default:
			}
			select {
			case l.buf <- trade:
			default:
			}
		}
	}
}

func (e *tradeEvent) toModel() (model.Trade, bool) {
	price, err := strconv.ParseFloat(e.Price, 64)
	if err != nil {
		return model.Trade{}, false
	}
	size, err := strconv.ParseFloat(e.Size, 64)
	if err != nil {
		return model.Trade{}, false
	}
	ts, err := strconv.ParseInt(e.Timestamp, 10, 64)
	if err != nil {
		return model.Trade{}, false
	}

	side := model.SideBuy
	if e.Side == "SELL" {
		side = model.SideSell
	}

	return model.Trade{
		ID:              model.TradeID(e.TxHash, e.OutcomeIndex, ts),
		MarketID:        e.Market,
		OutcomeIndex:    e.OutcomeIndex,
		OutcomeLabel:    e.Outcome,
		Side:            side,
		Price:           price,
		Size:            size * price,
		Timestamp:       ts,
		MakerAddress:    e.Maker,
		TransactionHash: e.TxHash,
	}, true
}

// Drain removes and returns all buffered trades.
func (l *Listener) Drain() []model.Trade {
	var out []model.Trade
	for {
		select {
		case t := <-l.buf:
			out = append(out, t)
		default:
			return out
		}
	}
}

// MergedSource combines a polling trade source with the live stream. Drained
// stream trades are grouped by market and served alongside the poll results;
// the dedup ledger downstream absorbs any overlap.
type MergedSource struct {
	poll interface {
		RecentTrades(ctx context.Context, market model.Market) ([]model.Trade, error)
	}
	listener *Listener

	pending map[string][]model.Trade
}

// NewMergedSource creates a MergedSource.
func NewMergedSource(poll interface {
	RecentTrades(ctx context.Context, market model.Market) ([]model.Trade, error)
}, listener *Listener) *MergedSource {
	return &MergedSource{
		poll:     poll,
		listener: listener,
		pending:  make(map[string][]model.Trade),
	}
}

// RecentTrades returns the poll results plus any live trades buffered for
// the market since the last call.
func (m *MergedSource) RecentTrades(ctx context.Context, market model.Market) ([]model.Trade, error) {
	for _, t := range m.listener.Drain() {
		m.pending[t.MarketID] = append(m.pending[t.MarketID], t)
	}

	trades, err := m.poll.RecentTrades(ctx, market)
	if err != nil {
		// Live trades are still worth evaluating when polling fails.
		trades = nil
	}

	if buffered := m.pending[market.ID]; len(buffered) > 0 {
		trades = append(trades, buffered...)
		delete(m.pending, market.ID)
	}

	if trades == nil && err != nil {
		return nil, err
	}
	return trades, nil
}
