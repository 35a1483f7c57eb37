package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskmap-backend/core"
)

// Known read-accessor shapes across escrow contract deployments. The
// accessor is resolved once from configuration instead of probed at
// runtime; all three return the same six-field tuple.
var accessorSignatures = map[string]string{
	"escrows":   "escrows(uint256)",
	"tasks":     "tasks(uint256)",
	"getEscrow": "getEscrow(uint256)",
}

// Config describes the escrow contract deployment the client talks to.
// It is built once per process and passed in; nothing here is read from
// ambient globals so tests can substitute a fake node.
type Config struct {
	RPCURL          string
	ChainID         uint64
	ContractAddress string
	Accessor        string // escrows | tasks | getEscrow
	ReceiptInterval time.Duration
	ReceiptTimeout  time.Duration
}

// Client wraps the on-chain escrow contract: read the custody record, fund
// a task for an assigned worker, release funds to the worker. It holds no
// state of its own; every call is a network round trip.
type Client struct {
	cfg     Config
	rpc     *rpcClient
	readSel [4]byte
	fundSel [4]byte
	relSel  [4]byte
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain rpc url is required")
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("expected chain id is required")
	}
	if _, err := parseAddress(cfg.ContractAddress); err != nil {
		return nil, fmt.Errorf("escrow contract address: %w", err)
	}
	if cfg.Accessor == "" {
		cfg.Accessor = "escrows"
	}
	readSig, ok := accessorSignatures[cfg.Accessor]
	if !ok {
		return nil, fmt.Errorf("unknown escrow accessor %q", cfg.Accessor)
	}
	if cfg.ReceiptInterval <= 0 {
		cfg.ReceiptInterval = 2 * time.Second
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}

	return &Client{
		cfg:     cfg,
		rpc:     &rpcClient{url: cfg.RPCURL, http: &http.Client{Timeout: 30 * time.Second}},
		readSel: Selector(readSig),
		fundSel: Selector("fund(uint256,address)"),
		relSel:  Selector("release(uint256)"),
	}, nil
}

// Read fetches and normalizes the escrow record for a task.
func (c *Client) Read(ctx context.Context, taskID int64) (core.EscrowRecord, error) {
	if err := c.verifyTarget(ctx); err != nil {
		return core.EscrowRecord{}, err
	}

	data := callData(c.readSel, encodeUint256(big.NewInt(taskID)))
	var result string
	err := c.rpc.call(ctx, "eth_call", &result, map[string]string{
		"to":   c.cfg.ContractAddress,
		"data": data,
	}, "latest")
	if err != nil {
		return core.EscrowRecord{}, c.classify("read escrow", err)
	}

	tuple, err := decodeEscrowTuple(result)
	if err != nil {
		return core.EscrowRecord{}, &core.ChainError{Kind: core.ChainUnavailable, Detail: "escrow read", Err: err}
	}
	return core.EscrowRecord{
		Poster:    strings.ToLower(tuple.poster),
		Worker:    strings.ToLower(tuple.worker),
		LockedWei: tuple.amount,
		Funded:    tuple.funded,
		Released:  tuple.released,
		Cancelled: tuple.cancelled,
	}, nil
}

// Fund locks the task's reward in escrow for the assigned worker. The
// reward is converted to wei from its decimal form; the poster's wallet
// signs via the node's managed account.
func (c *Client) Fund(ctx context.Context, task core.Task, from string) (core.TxReceipt, error) {
	if !task.HasWorker() {
		return core.TxReceipt{}, core.Guard("assign a worker before funding")
	}
	value, err := ParseEther(task.Reward)
	if err != nil {
		return core.TxReceipt{}, err
	}
	worker, err := encodeAddress(task.WorkerWallet)
	if err != nil {
		return core.TxReceipt{}, &core.ValidationError{Field: "worker_wallet", Reason: err.Error()}
	}
	if err := c.verifyTarget(ctx); err != nil {
		return core.TxReceipt{}, err
	}

	data := callData(c.fundSel, encodeUint256(big.NewInt(task.ID)), worker)
	return c.sendAndWait(ctx, "fund", map[string]string{
		"from":  from,
		"to":    c.cfg.ContractAddress,
		"value": "0x" + value.Text(16),
		"data":  data,
	})
}

// Release pays the worker from escrow. The contract enforces that release
// happens once and only by the poster; a revert surfaces as ChainRejected.
func (c *Client) Release(ctx context.Context, taskID int64, from string) (core.TxReceipt, error) {
	if err := c.verifyTarget(ctx); err != nil {
		return core.TxReceipt{}, err
	}
	data := callData(c.relSel, encodeUint256(big.NewInt(taskID)))
	return c.sendAndWait(ctx, "release", map[string]string{
		"from": from,
		"to":   c.cfg.ContractAddress,
		"data": data,
	})
}

// verifyTarget confirms the node is on the expected network and that the
// configured address actually carries contract code, instead of letting a
// doomed transaction be sent.
func (c *Client) verifyTarget(ctx context.Context) error {
	var chainHex string
	if err := c.rpc.call(ctx, "eth_chainId", &chainHex); err != nil {
		return c.classify("chain id", err)
	}
	chainID, err := hexQuantity(chainHex)
	if err != nil {
		return &core.ChainError{Kind: core.ChainUnavailable, Detail: "chain id", Err: err}
	}
	if chainID != c.cfg.ChainID {
		return &core.ChainError{
			Kind:   core.WrongNetwork,
			Detail: fmt.Sprintf("connected to chain %d, expected %d", chainID, c.cfg.ChainID),
		}
	}

	var code string
	if err := c.rpc.call(ctx, "eth_getCode", &code, c.cfg.ContractAddress, "latest"); err != nil {
		return c.classify("contract code", err)
	}
	if code == "" || code == "0x" {
		return &core.ChainError{
			Kind:   core.NoContractCode,
			Detail: fmt.Sprintf("no contract code at %s on chain %d", c.cfg.ContractAddress, chainID),
		}
	}
	return nil
}

func (c *Client) sendAndWait(ctx context.Context, op string, tx map[string]string) (core.TxReceipt, error) {
	var txHash string
	if err := c.rpc.call(ctx, "eth_sendTransaction", &txHash, tx); err != nil {
		return core.TxReceipt{}, c.classify(op, err)
	}
	return c.waitReceipt(ctx, op, txHash)
}

// waitReceipt polls until the transaction is included. There is no revoking
// a submitted transaction, so the deadline only bounds how long we watch.
func (c *Client) waitReceipt(ctx context.Context, op, txHash string) (core.TxReceipt, error) {
	deadline := time.Now().Add(c.cfg.ReceiptTimeout)
	ticker := time.NewTicker(c.cfg.ReceiptInterval)
	defer ticker.Stop()

	for {
		var raw *struct {
			Status      string `json:"status"`
			BlockNumber string `json:"blockNumber"`
			TxHash      string `json:"transactionHash"`
		}
		if err := c.rpc.call(ctx, "eth_getTransactionReceipt", &raw, txHash); err != nil {
			return core.TxReceipt{}, c.classify(op+" receipt", err)
		}
		if raw != nil {
			status, err := hexQuantity(raw.Status)
			if err != nil {
				return core.TxReceipt{}, &core.ChainError{Kind: core.ChainUnavailable, Detail: op + " receipt", Err: err}
			}
			block, _ := hexQuantity(raw.BlockNumber)
			receipt := core.TxReceipt{TxHash: txHash, BlockNumber: block, Status: status}
			if status == 0 {
				return receipt, &core.ChainError{
					Kind:   core.ChainRejected,
					Detail: fmt.Sprintf("%s transaction %s reverted", op, txHash),
				}
			}
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return core.TxReceipt{}, &core.ChainError{
				Kind:   core.ChainUnavailable,
				Detail: fmt.Sprintf("%s transaction %s not confirmed within %s", op, txHash, c.cfg.ReceiptTimeout),
			}
		}
		select {
		case <-ctx.Done():
			return core.TxReceipt{}, &core.ChainError{Kind: core.ChainUnavailable, Detail: op, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// classify maps transport failures to ChainUnavailable and node-reported
// rejections (reverts, bad params) to ChainRejected.
func (c *Client) classify(op string, err error) error {
	var node *rpcError
	if errors.As(err, &node) {
		return &core.ChainError{Kind: core.ChainRejected, Detail: op, Err: node}
	}
	return &core.ChainError{Kind: core.ChainUnavailable, Detail: op, Err: err}
}

func hexQuantity(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	return strconv.ParseUint(s, 16, 64)
}

// ContractAddress exposes the configured deployment address for payment URIs.
func (c *Client) ContractAddress() string { return c.cfg.ContractAddress }

// ChainID exposes the expected network id for payment URIs.
func (c *Client) ChainID() uint64 { return c.cfg.ChainID }
