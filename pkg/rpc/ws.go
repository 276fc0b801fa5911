package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/logging"
)

const (
	newBlockQuery     = "tm.event='NewBlock'"
	newBlockEventType = "tendermint/event/NewBlock"
)

// WSBlockWaiter waits for blocks through a CometBFT websocket subscription. Each wait opens its
// own connection so no subscription outlives the call.
type WSBlockWaiter struct {
	url       string
	dialer    *websocket.Dialer
	logger    *zap.Logger
	handshake time.Duration
}

// NewWSBlockWaiter targets a CometBFT websocket endpoint, e.g. ws://localhost:26657/websocket.
func NewWSBlockWaiter(url string, logger *zap.Logger) *WSBlockWaiter {
	return &WSBlockWaiter{
		url:       url,
		dialer:    websocket.DefaultDialer,
		logger:    logging.OrNop(logger),
		handshake: 10 * time.Second,
	}
}

type wsRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int               `json:"id"`
	Method  string            `json:"method"`
	Params  map[string]string `json:"params"`
}

type wsResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type wsEvent struct {
	Query string `json:"query"`
	Data  struct {
		Type string `json:"type"`
	} `json:"data"`
}

// WaitForNextBlock subscribes to NewBlock and returns on the first event.
func (w *WSBlockWaiter) WaitForNextBlock(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, w.handshake)
	conn, resp, err := w.dialer.DialContext(dialCtx, w.url, nil)
	cancel()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", w.url, err)
	}
	defer conn.Close()

	// Unblock ReadJSON when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	sub := wsRequest{JSONRPC: "2.0", ID: 1, Method: "subscribe", Params: map[string]string{"query": newBlockQuery}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("websocket subscribe: %w", err)
	}

	for {
		var msg wsResponse
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for block: %w", ctx.Err())
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		if msg.Error != nil {
			return fmt.Errorf("websocket rpc error %d: %s %s", msg.Error.Code, msg.Error.Message, msg.Error.Data)
		}
		var ev wsEvent
		if len(msg.Result) == 0 || json.Unmarshal(msg.Result, &ev) != nil {
			continue
		}
		if ev.Data.Type == newBlockEventType {
			w.logger.Debug("new block observed", zap.String("url", w.url))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}
