package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/server"

	"taskmap-backend/chain"
	"taskmap-backend/lifecycle"
	"taskmap-backend/mcp"
	"taskmap-backend/storage"
)

type config struct {
	StoreDriver     string
	PGDSN           string
	Seed            bool
	ChainRPCURL     string
	ChainID         uint64
	ContractAddress string
	EscrowAccessor  string
}

func loadConfig() config {
	storeDriver := os.Getenv("MCP_STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "memory"
	}

	seed := true
	if raw := os.Getenv("MCP_SEED_FIXTURES"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			seed = v
		}
	}

	chainID := uint64(31337)
	if raw := os.Getenv("MCP_CHAIN_ID"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			chainID = v
		}
	}

	return config{
		StoreDriver:     storeDriver,
		PGDSN:           os.Getenv("MCP_PG_DSN"),
		Seed:            seed,
		ChainRPCURL:     envDefault("MCP_CHAIN_RPC_URL", "http://localhost:8545"),
		ChainID:         chainID,
		ContractAddress: os.Getenv("MCP_ESCROW_ADDRESS"),
		EscrowAccessor:  os.Getenv("MCP_ESCROW_ACCESSOR"),
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := loadConfig()

	ctx := context.Background()
	var store storage.Store
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.PGDSN == "" {
			log.Fatal("MCP_PG_DSN required when MCP_STORE_DRIVER=postgres")
		}
		pg, err := storage.NewPGStore(ctx, cfg.PGDSN, cfg.Seed)
		if err != nil {
			log.Fatalf("failed to init store: %v", err)
		}
		store = pg
	default:
		mem := storage.NewMemoryStore()
		if cfg.Seed {
			if err := storage.SeedMemory(ctx, mem); err != nil {
				log.Fatalf("failed to seed store: %v", err)
			}
		}
		store = mem
	}
	defer store.Close()

	escrow, err := chain.NewClient(chain.Config{
		RPCURL:          cfg.ChainRPCURL,
		ChainID:         cfg.ChainID,
		ContractAddress: cfg.ContractAddress,
		Accessor:        cfg.EscrowAccessor,
	})
	if err != nil {
		log.Fatalf("failed to init escrow client: %v", err)
	}

	ctrl := lifecycle.NewController(store, escrow)
	mcpServer := mcp.NewMCPServer(ctrl, escrow)

	log.Printf("Taskmap MCP server starting (driver=%s)", cfg.StoreDriver)

	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
