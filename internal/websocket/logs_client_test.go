package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// subscribeServer upgrades, validates the logsSubscribe handshake and
// replies with subID 42, then hands the connection to fn.
func subscribeServer(t *testing.T, fn func(conn *websocket.Conn, reqID uint64)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var call rpcCall
		if err := conn.ReadJSON(&call); err != nil {
			t.Errorf("failed to read subscribe call: %v", err)
			return
		}
		if call.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", call.Method)
		}
		if len(call.Params) != 2 {
			t.Errorf("expected 2 params, got %d", len(call.Params))
		} else {
			filter, _ := call.Params[0].(map[string]interface{})
			mentions, _ := filter["mentions"].([]interface{})
			if len(mentions) != 1 || mentions[0] != "Wallet1" {
				t.Errorf("unexpected mentions filter: %v", filter)
			}
			commitment, _ := call.Params[1].(map[string]interface{})
			if commitment["commitment"] != "finalized" {
				t.Errorf("expected finalized commitment, got %v", commitment)
			}
		}

		reply := map[string]interface{}{"jsonrpc": "2.0", "result": 42, "id": call.ID}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}

		if fn != nil {
			fn(conn, call.ID)
		}
	}))
}

func notification(signature string, txErr string) string {
	errField := "null"
	if txErr != "" {
		errField = txErr
	}
	return `{"jsonrpc":"2.0","method":"logsNotification","params":{"result":{"value":{"signature":"` +
		signature + `","err":` + errField + `,"logs":[]}},"subscription":42}}`
}

func TestSubscribeHandshake(t *testing.T) {
	ts := subscribeServer(t, nil)
	defer ts.Close()

	closed := make(chan struct{})
	client, err := Subscribe(context.Background(), wsURL(ts), "Wallet1", Callbacks{
		OnClose: func() { close(closed) },
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if client.SubID() != 42 {
		t.Errorf("expected subID 42, got %d", client.SubID())
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not terminate after server close")
	}
}

func TestSubscribeRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var call rpcCall
		if err := conn.ReadJSON(&call); err != nil {
			return
		}
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid params"},
			"id":      call.ID,
		})
	}))
	defer ts.Close()

	_, err := Subscribe(context.Background(), wsURL(ts), "Wallet1", Callbacks{})
	if err == nil {
		t.Fatal("expected an error for a rejected subscription")
	}
}

func TestNotificationsDispatched(t *testing.T) {
	ts := subscribeServer(t, func(conn *websocket.Conn, _ uint64) {
		conn.WriteMessage(websocket.TextMessage, []byte(notification("SigOK", "")))
		conn.WriteMessage(websocket.TextMessage, []byte(notification("SigFailed", `{"InstructionError":[0,"Custom"]}`)))
		conn.WriteMessage(websocket.TextMessage, []byte(notification("SigOK2", "")))
		// Unknown frames are ignored.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"something":"else"}`))
		time.Sleep(50 * time.Millisecond)
	})
	defer ts.Close()

	sigs := make(chan string, 10)
	closed := make(chan struct{})
	_, err := Subscribe(context.Background(), wsURL(ts), "Wallet1", Callbacks{
		OnSignature: func(sig string) { sigs <- sig },
		OnClose:     func() { close(closed) },
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not terminate")
	}
	close(sigs)

	var got []string
	for sig := range sigs {
		got = append(got, sig)
	}
	if len(got) != 2 || got[0] != "SigOK" || got[1] != "SigOK2" {
		t.Errorf("expected successful signatures only, got %v", got)
	}
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	ts := subscribeServer(t, func(conn *websocket.Conn, _ uint64) {
		var call rpcCall
		if err := conn.ReadJSON(&call); err != nil {
			t.Errorf("failed to read unsubscribe call: %v", err)
			return
		}
		if call.Method != "logsUnsubscribe" {
			t.Errorf("expected logsUnsubscribe, got %s", call.Method)
		}
		if len(call.Params) != 1 || call.Params[0] != float64(42) {
			t.Errorf("expected params [42], got %v", call.Params)
		}
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": true, "id": call.ID})
		time.Sleep(50 * time.Millisecond)
	})
	defer ts.Close()

	unsubbed := make(chan bool, 1)
	closed := make(chan struct{})
	client, err := Subscribe(context.Background(), wsURL(ts), "Wallet1", Callbacks{
		OnUnsubscribed: func(result bool) { unsubbed <- result },
		OnClose:        func() { close(closed) },
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := client.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	select {
	case result := <-unsubbed:
		if !result {
			t.Error("expected unsubscribe result true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no unsubscribe confirmation")
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not terminate after unsubscribe")
	}

	// Idempotent once the connection is gone.
	if err := client.Unsubscribe(); err != nil {
		t.Errorf("Unsubscribe after close failed: %v", err)
	}
}

func TestErrorFrameDoesNotTerminate(t *testing.T) {
	ts := subscribeServer(t, func(conn *websocket.Conn, _ uint64) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"node overloaded"},"id":7}`))
		conn.WriteMessage(websocket.TextMessage, []byte(notification("SigAfterError", "")))
		time.Sleep(50 * time.Millisecond)
	})
	defer ts.Close()

	errs := make(chan string, 1)
	sigs := make(chan string, 1)
	closed := make(chan struct{})
	_, err := Subscribe(context.Background(), wsURL(ts), "Wallet1", Callbacks{
		OnSignature: func(sig string) { sigs <- sig },
		OnError:     func(msg string) { errs <- msg },
		OnClose:     func() { close(closed) },
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	select {
	case msg := <-errs:
		if msg != "node overloaded" {
			t.Errorf("expected error message 'node overloaded', got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error callback")
	}

	select {
	case sig := <-sigs:
		if sig != "SigAfterError" {
			t.Errorf("expected signature after error frame, got %q", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream terminated on a non-fatal error frame")
	}

	<-closed
}

func TestParseFrame(t *testing.T) {
	cases := []struct {
		name string
		data string
		want frameKind
	}{
		{"subscribed", `{"jsonrpc":"2.0","result":42,"id":1}`, frameSubscribed},
		{"unsubscribed", `{"jsonrpc":"2.0","result":true,"id":2}`, frameUnSubscribed},
		{"notification", notification("Sig1", ""), frameNotification},
		{"error", `{"jsonrpc":"2.0","error":{"code":-1,"message":"x"},"id":3}`, frameError},
		{"garbage", `not json`, frameUnknown},
		{"unrelated", `{"hello":"world"}`, frameUnknown},
		{"result without id", `{"jsonrpc":"2.0","result":42}`, frameUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseFrame([]byte(tc.data)); got.kind != tc.want {
				t.Errorf("parseFrame(%s) kind = %v, want %v", tc.data, got.kind, tc.want)
			}
		})
	}
}

func TestParseFrameFields(t *testing.T) {
	fr := parseFrame([]byte(`{"jsonrpc":"2.0","result":99,"id":1}`))
	if fr.subID != 99 {
		t.Errorf("expected subID 99, got %d", fr.subID)
	}

	fr = parseFrame([]byte(notification("Sig1", `{"InstructionError":[2,"Custom"]}`)))
	if !fr.txFailed {
		t.Error("expected txFailed for a non-null err")
	}
	if fr.signature != "Sig1" {
		t.Errorf("expected signature Sig1, got %q", fr.signature)
	}

	fr = parseFrame([]byte(notification("Sig2", "")))
	if fr.txFailed {
		t.Error("expected txFailed false for null err")
	}
}

func TestRequestIDMonotonic(t *testing.T) {
	var seen []uint64
	done := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var call rpcCall
		if err := conn.ReadJSON(&call); err != nil {
			return
		}
		seen = append(seen, call.ID)
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": 1, "id": call.ID})
		if len(seen) == 2 {
			close(done)
		}
	}))
	defer ts.Close()

	for i := 0; i < 2; i++ {
		client, err := Subscribe(context.Background(), wsURL(ts), "Wallet1", Callbacks{})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		_ = client
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not see both calls")
	}

	if seen[1] <= seen[0] {
		t.Errorf("request ids not increasing: %v", seen)
	}
}
