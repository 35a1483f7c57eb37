package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskmap-backend/core"
)

// fakeNode is a scriptable JSON-RPC endpoint.
type fakeNode struct {
	mu       sync.Mutex
	chainID  uint64
	code     string
	callHex  string
	txStatus string
	sentTxs  []map[string]string
}

func (n *fakeNode) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n.mu.Lock()
		defer n.mu.Unlock()
		var result interface{}
		switch req.Method {
		case "eth_chainId":
			result = "0x" + big.NewInt(int64(n.chainID)).Text(16)
		case "eth_getCode":
			result = n.code
		case "eth_call":
			result = n.callHex
		case "eth_sendTransaction":
			var tx map[string]string
			_ = json.Unmarshal(req.Params[0], &tx)
			n.sentTxs = append(n.sentTxs, tx)
			result = "0xabc123"
		case "eth_getTransactionReceipt":
			result = map[string]string{
				"status":          n.txStatus,
				"blockNumber":     "0x10",
				"transactionHash": "0xabc123",
			}
		default:
			http.Error(w, "unknown method "+req.Method, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": result,
		})
	}
}

const testContract = "0x3333333333333333333333333333333333333333"

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	srv := httptest.NewServer(node.handler())
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{
		RPCURL:          srv.URL,
		ChainID:         11155111,
		ContractAddress: testContract,
		ReceiptInterval: time.Millisecond,
		ReceiptTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func escrowReturnHex(poster, worker string, amount *big.Int, funded, released, cancelled bool) string {
	asWord := func(b bool) [wordSize]byte {
		if b {
			return encodeUint256(big.NewInt(1))
		}
		return encodeUint256(big.NewInt(0))
	}
	p, _ := encodeAddress(poster)
	w, _ := encodeAddress(worker)
	var buf []byte
	for _, word := range [][wordSize]byte{p, w, encodeUint256(amount), asWord(funded), asWord(released), asWord(cancelled)} {
		buf = append(buf, word[:]...)
	}
	return "0x" + hex.EncodeToString(buf)
}

func TestReadNormalizesRecord(t *testing.T) {
	amount := big.NewInt(1e15)
	node := &fakeNode{
		chainID: 11155111,
		code:    "0x6001",
		callHex: escrowReturnHex("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", amount, true, false, false),
	}
	client := newTestClient(t, node)

	rec, err := client.Read(context.Background(), 4)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if rec.Poster != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("poster not lowercased: %s", rec.Poster)
	}
	if rec.LockedWei.Cmp(amount) != 0 {
		t.Fatalf("locked = %s, want %s", rec.LockedWei, amount)
	}
	if !rec.Funded || rec.Terminal() {
		t.Fatalf("flags wrong: %+v", rec)
	}
}

func TestWrongNetwork(t *testing.T) {
	node := &fakeNode{chainID: 1, code: "0x6001"}
	client := newTestClient(t, node)

	_, err := client.Read(context.Background(), 1)
	if core.ChainKind(err) != core.WrongNetwork {
		t.Fatalf("expected WrongNetwork, got %v", err)
	}
}

func TestNoContractCode(t *testing.T) {
	node := &fakeNode{chainID: 11155111, code: "0x"}
	client := newTestClient(t, node)

	_, err := client.Read(context.Background(), 1)
	if core.ChainKind(err) != core.NoContractCode {
		t.Fatalf("expected NoContractCode, got %v", err)
	}
}

func TestChainUnavailableWhenNodeDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client, err := NewClient(Config{RPCURL: url, ChainID: 1, ContractAddress: testContract})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	_, err = client.Read(context.Background(), 1)
	if core.ChainKind(err) != core.ChainUnavailable {
		t.Fatalf("expected ChainUnavailable, got %v", err)
	}
}

func TestFundRequiresWorker(t *testing.T) {
	node := &fakeNode{chainID: 11155111, code: "0x6001"}
	client := newTestClient(t, node)

	task := core.Task{ID: 1, Reward: "0.02", Status: core.StatusOpen}
	if _, err := client.Fund(context.Background(), task, "0x"+"11"); !core.IsGuardRejected(err) {
		t.Fatalf("expected guard rejection, got %v", err)
	}
	if len(node.sentTxs) != 0 {
		t.Fatalf("no transaction should have been sent, got %d", len(node.sentTxs))
	}
}

func TestFundSendsRewardValue(t *testing.T) {
	node := &fakeNode{chainID: 11155111, code: "0x6001", txStatus: "0x1"}
	client := newTestClient(t, node)

	task := core.Task{
		ID:           9,
		Reward:       "0.02",
		Status:       core.StatusAccepted,
		WorkerWallet: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	poster := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	receipt, err := client.Fund(context.Background(), task, poster)
	if err != nil {
		t.Fatalf("Fund error: %v", err)
	}
	if receipt.TxHash != "0xabc123" || receipt.Status != 1 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	if len(node.sentTxs) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(node.sentTxs))
	}
	tx := node.sentTxs[0]
	wantValue, _ := ParseEther(task.Reward)
	if tx["value"] != "0x"+wantValue.Text(16) {
		t.Fatalf("value = %s, want 0x%s", tx["value"], wantValue.Text(16))
	}
	if tx["from"] != poster || tx["to"] != testContract {
		t.Fatalf("addressing wrong: %+v", tx)
	}
}

func TestReleaseRevertIsChainRejected(t *testing.T) {
	node := &fakeNode{chainID: 11155111, code: "0x6001", txStatus: "0x0"}
	client := newTestClient(t, node)

	_, err := client.Release(context.Background(), 5, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if core.ChainKind(err) != core.ChainRejected {
		t.Fatalf("expected ChainRejected, got %v", err)
	}
}
