package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"taskmap-backend/chain"
	"taskmap-backend/core"
	"taskmap-backend/lifecycle"
	"taskmap-backend/storage"
)

const (
	posterWallet = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	workerWallet = "0x1111111111111111111111111111111111111111"
)

// stubEscrow backs the controller with an in-memory contract: fund locks
// the reward, release flips the terminal flag.
type stubEscrow struct {
	records map[int64]core.EscrowRecord
}

func (f *stubEscrow) Read(ctx context.Context, taskID int64) (core.EscrowRecord, error) {
	return f.records[taskID], nil
}

func (f *stubEscrow) Fund(ctx context.Context, task core.Task, from string) (core.TxReceipt, error) {
	amount, err := chain.ParseEther(task.Reward)
	if err != nil {
		return core.TxReceipt{}, err
	}
	f.records[task.ID] = core.EscrowRecord{
		Poster:    from,
		Worker:    task.WorkerWallet,
		LockedWei: amount,
		Funded:    true,
	}
	return core.TxReceipt{TxHash: fmt.Sprintf("0xfund%d", task.ID), Status: 1}, nil
}

func (f *stubEscrow) Release(ctx context.Context, taskID int64, from string) (core.TxReceipt, error) {
	rec := f.records[taskID]
	rec.Released = true
	f.records[taskID] = rec
	return core.TxReceipt{TxHash: fmt.Sprintf("0xrelease%d", taskID), Status: 1}, nil
}

func newToolServer(t *testing.T) (*MCPServer, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	escrow := &stubEscrow{records: make(map[int64]core.EscrowRecord)}
	ctrl := lifecycle.NewController(store, escrow)
	return NewMCPServer(ctrl, escrow), store
}

// callTool drives a registered tool through the JSON-RPC surface, the same
// path a connected agent takes, and reports the result flag and text.
func callTool(t *testing.T, s *MCPServer, name string, args map[string]any) (bool, string) {
	t.Helper()
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	msg := s.GetMCPServer().HandleMessage(context.Background(), raw)
	out, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("%s: protocol error: %s", name, resp.Error.Message)
	}

	var text string
	if len(resp.Result.Content) > 0 {
		text = resp.Result.Content[0].Text
	}
	return resp.Result.IsError, text
}

func mustCallTool(t *testing.T, s *MCPServer, name string, args map[string]any) string {
	t.Helper()
	isErr, text := callTool(t, s, name, args)
	if isErr {
		t.Fatalf("%s failed: %s", name, text)
	}
	return text
}

func createToolTask(t *testing.T, s *MCPServer) {
	t.Helper()
	mustCallTool(t, s, "create_task", map[string]any{
		"wallet": posterWallet,
		"title":  "Walk the dog",
		"reward": "0.02",
	})
}

func TestToolLifecycle(t *testing.T) {
	s, store := newToolServer(t)
	createToolTask(t, s)

	mustCallTool(t, s, "accept_task", map[string]any{"task_id": 1, "wallet": workerWallet})
	mustCallTool(t, s, "submit_work", map[string]any{
		"task_id": 1, "wallet": workerWallet,
		"url": "https://example.com/proof", "notes": "done",
	})
	text := mustCallTool(t, s, "fund_escrow", map[string]any{"task_id": 1, "wallet": posterWallet})
	if !strings.Contains(text, "0xfund1") {
		t.Fatalf("fund reply = %q", text)
	}
	text = mustCallTool(t, s, "approve_task", map[string]any{"task_id": 1, "wallet": posterWallet})
	if !strings.Contains(text, "0xrelease1") {
		t.Fatalf("approve reply = %q", text)
	}

	task, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if task.Status != core.StatusPaid || task.PayoutTx != "0xrelease1" {
		t.Fatalf("final state: status=%s payout=%q", task.Status, task.PayoutTx)
	}
}

// A task must never read as accepted while worker_wallet is unset, so
// accept_task has to reject empty and malformed wallet arguments before
// anything is written.
func TestAcceptToolRejectsMalformedWallet(t *testing.T) {
	s, store := newToolServer(t)
	createToolTask(t, s)

	for _, wallet := range []string{"", "   ", "0x123", "not-a-wallet"} {
		isErr, text := callTool(t, s, "accept_task", map[string]any{"task_id": 1, "wallet": wallet})
		if !isErr {
			t.Fatalf("accept_task(%q) succeeded: %s", wallet, text)
		}
	}

	task, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if task.Status != core.StatusOpen || task.HasWorker() {
		t.Fatalf("task moved: status=%s worker=%q", task.Status, task.WorkerWallet)
	}
}

func TestCreateToolRejectsMalformedWallet(t *testing.T) {
	s, store := newToolServer(t)

	isErr, text := callTool(t, s, "create_task", map[string]any{
		"wallet": "0xzz", "title": "x", "reward": "0.01",
	})
	if !isErr {
		t.Fatalf("create_task succeeded: %s", text)
	}

	tasks, err := store.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("len = %d, want 0", len(tasks))
	}
}

func TestEscrowStatusTool(t *testing.T) {
	s, _ := newToolServer(t)
	createToolTask(t, s)
	mustCallTool(t, s, "accept_task", map[string]any{"task_id": 1, "wallet": workerWallet})
	mustCallTool(t, s, "fund_escrow", map[string]any{"task_id": 1, "wallet": posterWallet})

	text := mustCallTool(t, s, "escrow_status", map[string]any{"task_id": 1})
	if !strings.Contains(text, "locked: 0.02 ETH") || !strings.Contains(text, "funded for reward 0.02 ETH: true") {
		t.Fatalf("status reply = %q", text)
	}
}

func TestGetTaskToolUnknownID(t *testing.T) {
	s, _ := newToolServer(t)

	isErr, text := callTool(t, s, "get_task", map[string]any{"task_id": 42})
	if !isErr {
		t.Fatalf("get_task succeeded: %s", text)
	}
	if !strings.Contains(text, "Failed to get task") {
		t.Fatalf("error text = %q", text)
	}
}
