package neo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeNode is a JSON-RPC 2.0 node answering from per-method handlers.
type fakeNode struct {
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]func(params []json.RawMessage) any
	calls    map[string]int
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newFakeNode(t *testing.T) (*fakeNode, *RPC) {
	t.Helper()
	n := &fakeNode{t: t, handlers: map[string]func([]json.RawMessage) any{}, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)

	r, err := DialRPC(context.Background(), srv.URL, 1000)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return n, r
}

func (n *fakeNode) on(method string, h func(params []json.RawMessage) any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls[req.Method]++
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case !ok:
		resp["error"] = rpcFailure{Code: -32601, Message: "method not found"}
	default:
		out := h(req.Params)
		if f, isErr := out.(rpcFailure); isErr {
			resp["error"] = f
		} else {
			resp["result"] = out
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// halt builds an invoke result with one stack item.
func halt(item map[string]any) map[string]any {
	return map[string]any{"state": "HALT", "gasconsumed": "1000", "stack": []any{item}}
}

func integer(v string) map[string]any {
	return map[string]any{"type": "Integer", "value": v}
}

func byteString(b64 string) map[string]any {
	return map[string]any{"type": "ByteString", "value": b64}
}

// invokedOperation returns the operation argument of an invokefunction call.
func invokedOperation(t *testing.T, params []json.RawMessage) string {
	t.Helper()
	require.GreaterOrEqual(t, len(params), 2)
	var op string
	require.NoError(t, json.Unmarshal(params[1], &op))
	return op
}
