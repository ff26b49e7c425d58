package ethereum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockRequest is a JSON-RPC request received by the mock node.
type mockRequest struct {
	Version string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	Params  *json.RawMessage `json:"params"`
	ID      *json.RawMessage `json:"id"`
}

// mockResponse is the JSON-RPC response of the mock node.
type mockResponse struct {
	Version string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  interface{}      `json:"result,omitempty"`
	Error   interface{}      `json:"error,omitempty"`
}

// mockNode replies every eth_getBalance with 1615796230433485760 wei.
func mockNode(w http.ResponseWriter, r *http.Request) {
	var req mockRequest

	res := mockResponse{Version: "2.0"}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		res.Error = map[string]interface{}{"code": -32700, "message": err.Error()}
	} else {
		res.ID = req.ID
		if req.Method == "eth_getBalance" {
			res.Result = "0x166c761c586733c0"
		} else {
			res.Error = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func TestBalance(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(mockNode))
	defer mock.Close()

	e, err := Init(mock.URL, "")
	if err != nil {
		t.Fatalf("Init error:%e", err)
	}
	defer e.Close()

	bal, err := e.Balance(context.Background(), "0xcba75f167b03e34b8a572c50273c082401b073ed")
	if err != nil || bal.String() != "1615796230433485760" {
		t.Errorf("Balance error:%e balance:%v", err, bal)
	}
}

func TestBalanceCancelled(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		mockNode(w, r)
	}))
	defer slow.Close()

	e, err := Init(slow.URL, "")
	if err != nil {
		t.Fatalf("Init error:%e", err)
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err = e.Balance(ctx, "0xcba75f167b03e34b8a572c50273c082401b073ed"); err == nil {
		t.Errorf("expected a context error")
	}
}
