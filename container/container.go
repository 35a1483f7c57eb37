package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskmap-backend/chain"
	"taskmap-backend/handlers"
	"taskmap-backend/lifecycle"
	"taskmap-backend/storage"
	"taskmap-backend/wallet"
)

// Config carries everything the container needs to wire the service.
type Config struct {
	StoreDriver string // "memory" or "postgres"
	PostgresDSN string
	SeedDemo    bool

	ChainRPCURL     string
	ChainID         uint64
	ContractAddress string
	EscrowAccessor  string

	FundingWatchInterval time.Duration
}

// Container holds all application dependencies
type Container struct {
	Store      storage.Store
	Escrow     *chain.Client
	Controller *lifecycle.Controller
	Wallets    wallet.Provider

	HealthHandler *handlers.HealthHandler
	TaskHandler   *handlers.TaskHandler
	EscrowHandler *handlers.EscrowHandler
}

// NewContainer creates a new dependency container
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	var store storage.Store
	switch cfg.StoreDriver {
	case "", "memory":
		mem := storage.NewMemoryStore()
		if cfg.SeedDemo {
			if err := storage.SeedMemory(ctx, mem); err != nil {
				return nil, fmt.Errorf("seed memory store: %w", err)
			}
		}
		store = mem
		log.Println("Using in-memory task store")
	case "postgres":
		pg, err := storage.NewPGStore(ctx, cfg.PostgresDSN, cfg.SeedDemo)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		store = pg
		log.Println("Using Postgres task store")
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	escrow, err := chain.NewClient(chain.Config{
		RPCURL:          cfg.ChainRPCURL,
		ChainID:         cfg.ChainID,
		ContractAddress: cfg.ContractAddress,
		Accessor:        cfg.EscrowAccessor,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("escrow client: %w", err)
	}

	ctrl := lifecycle.NewController(store, escrow)
	wallets := wallet.HeaderProvider{}

	return &Container{
		Store:      store,
		Escrow:     escrow,
		Controller: ctrl,
		Wallets:    wallets,

		HealthHandler: handlers.NewHealthHandler(),
		TaskHandler:   handlers.NewTaskHandler(ctrl, wallets),
		EscrowHandler: handlers.NewEscrowHandler(ctrl, escrow, escrow.ContractAddress(), escrow.ChainID()),
	}, nil
}

// Close releases the container's resources.
func (c *Container) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}
