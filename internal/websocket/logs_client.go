package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// keepaliveInterval is how often the client pings the node to keep the
// subscription socket alive.
const keepaliveInterval = 20 * time.Second

// outboundCap bounds the queue in front of the writer goroutine. The
// only producers are the keepalive ticker and Unsubscribe, so a small
// queue is enough.
const outboundCap = 3

var requestID atomic.Uint64

// Callbacks receive reader events. All callbacks fire on the reader
// goroutine, in frame order; OnClose fires exactly once, last.
type Callbacks struct {
	// OnSignature is called for each successful transaction that
	// mentions the watched wallet.
	OnSignature func(signature string)

	// OnUnsubscribed is called when the node confirms logsUnsubscribe.
	// The reader terminates right after.
	OnUnsubscribed func(result bool)

	// OnError is called for JSON-RPC error frames. The stream keeps
	// going.
	OnError func(message string)

	// OnClose is called when the reader terminates for any reason.
	OnClose func()
}

// LogStreamer is the handle a session holds on its upstream
// subscription.
type LogStreamer interface {
	SubID() uint64
	Unsubscribe() error
}

// Factory dials new log subscriptions. Sessions get one streamer per
// Subscribe call.
type Factory interface {
	Subscribe(ctx context.Context, wallet string, cb Callbacks) (LogStreamer, error)
}

// LogsClient is one upstream logsSubscribe connection. The write half
// is owned by a single writer goroutine; Unsubscribe and the keepalive
// ticker publish frames to it through a bounded channel.
type LogsClient struct {
	conn     *websocket.Conn
	subID    uint64
	outbound chan outboundFrame
	done     chan struct{}
}

type outboundFrame struct {
	messageType int
	payload     []byte
}

type factory struct {
	url string
}

// NewFactory creates a Factory dialing the given WebSocket URL.
func NewFactory(url string) Factory {
	return &factory{url: url}
}

func (f *factory) Subscribe(ctx context.Context, wallet string, cb Callbacks) (LogStreamer, error) {
	return Subscribe(ctx, f.url, wallet, cb)
}

// Subscribe opens a socket, performs the logsSubscribe handshake and
// starts the reader, writer and keepalive goroutines. The first frame
// after the request must carry the numeric subscription id; anything
// else fails the call.
func Subscribe(ctx context.Context, url, wallet string, cb Callbacks) (*LogsClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	call := rpcCall{
		JSONRPC: "2.0",
		ID:      requestID.Add(1),
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{wallet}},
			map[string]interface{}{"commitment": "finalized"},
		},
	}
	if err := conn.WriteJSON(call); err != nil {
		conn.Close()
		return nil, fmt.Errorf("logsSubscribe send: %w", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("logsSubscribe response: %w", err)
	}
	fr := parseFrame(data)
	if fr.kind != frameSubscribed {
		conn.Close()
		return nil, fmt.Errorf("logsSubscribe rejected: %s", data)
	}

	c := &LogsClient{
		conn:     conn,
		subID:    fr.subID,
		outbound: make(chan outboundFrame, outboundCap),
		done:     make(chan struct{}),
	}

	go c.writeLoop()
	go c.keepalive()
	go c.readLoop(cb)

	log.Debug().
		Str("wallet", truncateStr(wallet, 8)).
		Uint64("subID", c.subID).
		Msg("log subscription established")

	return c, nil
}

// SubID returns the node-assigned subscription id.
func (c *LogsClient) SubID() uint64 {
	return c.subID
}

// Unsubscribe asks the node to drop the subscription and schedules a
// close frame behind it. The reader sees the confirmation frame and
// terminates; calling this on a dead connection is a no-op.
func (c *LogsClient) Unsubscribe() error {
	call := rpcCall{
		JSONRPC: "2.0",
		ID:      requestID.Add(1),
		Method:  "logsUnsubscribe",
		Params:  []interface{}{c.subID},
	}
	payload, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("logsUnsubscribe encode: %w", err)
	}

	closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

	select {
	case c.outbound <- outboundFrame{messageType: websocket.TextMessage, payload: payload}:
	case <-c.done:
		return nil
	}
	select {
	case c.outbound <- outboundFrame{messageType: websocket.CloseMessage, payload: closeFrame}:
	case <-c.done:
	}
	return nil
}

// writeLoop is the sole owner of the connection's write half.
func (c *LogsClient) writeLoop() {
	for {
		select {
		case fr := <-c.outbound:
			if err := c.conn.WriteMessage(fr.messageType, fr.payload); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// keepalive pings on a fixed interval until the connection dies.
func (c *LogsClient) keepalive() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	ping := outboundFrame{messageType: websocket.PingMessage}
	for {
		select {
		case <-ticker.C:
			select {
			case c.outbound <- ping:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop dispatches inbound frames until the node confirms an
// unsubscribe or the transport fails. There is no reconnect.
func (c *LogsClient) readLoop(cb Callbacks) {
	defer func() {
		close(c.done)
		c.conn.Close()
		if cb.OnClose != nil {
			cb.OnClose()
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Uint64("subID", c.subID).Msg("websocket read ended")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		fr := parseFrame(data)
		switch fr.kind {
		case frameNotification:
			if fr.txFailed {
				continue
			}
			if cb.OnSignature != nil {
				cb.OnSignature(fr.signature)
			}
		case frameUnSubscribed:
			if cb.OnUnsubscribed != nil {
				cb.OnUnsubscribed(fr.unsubOK)
			}
			return
		case frameError:
			if cb.OnError != nil {
				cb.OnError(fr.errMsg)
			}
		case frameSubscribed, frameUnknown:
			// Late acks and unknown shapes are ignored.
		}
	}
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
