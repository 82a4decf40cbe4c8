package websocket

import "encoding/json"

// rpcCall is an outgoing JSON-RPC request over the socket.
type rpcCall struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// frameKind discriminates the messages the node sends us.
type frameKind int

const (
	frameUnknown frameKind = iota
	frameSubscribed
	frameUnSubscribed
	frameNotification
	frameError
)

// frame is the decoded form of one inbound text message. Exactly the
// fields for the matched kind are populated.
type frame struct {
	kind frameKind

	subID     uint64 // frameSubscribed
	unsubOK   bool   // frameUnSubscribed
	signature string // frameNotification
	txFailed  bool   // frameNotification with a non-null err
	errMsg    string // frameError
}

// parseFrame classifies a raw text message. Anything that does not
// match a known shape comes back as frameUnknown and is ignored by the
// reader.
func parseFrame(data []byte) frame {
	var raw struct {
		ID     *uint64         `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Params struct {
			Result struct {
				Value struct {
					Signature string          `json:"signature"`
					Err       json.RawMessage `json:"err"`
				} `json:"value"`
			} `json:"result"`
		} `json:"params"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return frame{kind: frameUnknown}
	}

	if raw.Method == "logsNotification" {
		value := raw.Params.Result.Value
		failed := len(value.Err) > 0 && string(value.Err) != "null"
		return frame{kind: frameNotification, signature: value.Signature, txFailed: failed}
	}

	if raw.Error != nil {
		return frame{kind: frameError, errMsg: raw.Error.Message}
	}

	if raw.ID != nil && len(raw.Result) > 0 {
		var subID uint64
		if err := json.Unmarshal(raw.Result, &subID); err == nil {
			return frame{kind: frameSubscribed, subID: subID}
		}
		var ok bool
		if err := json.Unmarshal(raw.Result, &ok); err == nil {
			return frame{kind: frameUnSubscribed, unsubOK: ok}
		}
	}

	return frame{kind: frameUnknown}
}
