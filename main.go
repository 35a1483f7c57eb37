package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskmap-backend/container"
	"taskmap-backend/lifecycle"
	"taskmap-backend/middleware"
)

type serverConfig struct {
	Addr           string
	RequestTimeout time.Duration
	RateLimit      int
	RateWindow     time.Duration

	Container container.Config
}

func loadConfig() serverConfig {
	addr := os.Getenv("TASKMAP_ADDR")
	if addr == "" {
		addr = ":3001"
	}

	requestTimeout := 30 * time.Second
	if raw := os.Getenv("TASKMAP_REQUEST_TIMEOUT_SEC"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			requestTimeout = time.Duration(v) * time.Second
		}
	}

	rateLimit := 120
	if raw := os.Getenv("TASKMAP_RATE_LIMIT"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			rateLimit = v
		}
	}

	storeDriver := os.Getenv("TASKMAP_STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "memory"
	}

	seed := false
	if raw := os.Getenv("TASKMAP_SEED_FIXTURES"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			seed = v
		}
	}

	rpcURL := os.Getenv("TASKMAP_CHAIN_RPC_URL")
	if rpcURL == "" {
		rpcURL = "http://localhost:8545"
	}

	chainID := uint64(31337)
	if raw := os.Getenv("TASKMAP_CHAIN_ID"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			chainID = v
		}
	}

	fundingInterval := 60 * time.Second
	if raw := os.Getenv("TASKMAP_FUNDING_WATCH_INTERVAL_SEC"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			fundingInterval = time.Duration(v) * time.Second
		}
	}

	return serverConfig{
		Addr:           addr,
		RequestTimeout: requestTimeout,
		RateLimit:      rateLimit,
		RateWindow:     time.Minute,
		Container: container.Config{
			StoreDriver:          storeDriver,
			PostgresDSN:          os.Getenv("TASKMAP_PG_DSN"),
			SeedDemo:             seed,
			ChainRPCURL:          rpcURL,
			ChainID:              chainID,
			ContractAddress:      os.Getenv("TASKMAP_ESCROW_ADDRESS"),
			EscrowAccessor:       os.Getenv("TASKMAP_ESCROW_ACCESSOR"),
			FundingWatchInterval: fundingInterval,
		},
	}
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	c, err := container.NewContainer(ctx, cfg.Container)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer c.Close()

	// Background reconciliation of on-chain funding against submitted tasks.
	lifecycle.StartFundingWatch(ctx, c.Store, c.Controller.Funding(), cfg.Container.FundingWatchInterval)

	mux := http.NewServeMux()

	handler := middleware.Recovery(
		middleware.RequestID(
			middleware.Logging(
				middleware.Metrics(
					middleware.CORS(
						middleware.SecurityHeaders(
							middleware.RateLimit(cfg.RateLimit, cfg.RateWindow)(
								middleware.Timeout(cfg.RequestTimeout)(
									setupRoutes(mux, c),
								),
							),
						),
					),
				),
			),
		),
	)

	log.Printf("Server starting on %s", cfg.Addr)
	log.Printf("Task API at http://localhost%s/api/tasks", cfg.Addr)
	log.Printf("Escrow API at http://localhost%s/api/escrow/", cfg.Addr)

	log.Fatal(http.ListenAndServe(cfg.Addr, handler))
}

func setupRoutes(mux *http.ServeMux, c *container.Container) http.Handler {
	mux.HandleFunc("/api/health", c.HealthHandler.Health)

	mux.HandleFunc("/api/tasks", c.TaskHandler.Tasks)
	mux.HandleFunc("/api/tasks/", c.TaskHandler.Tasks)

	mux.HandleFunc("/api/escrow/", c.EscrowHandler.Escrow)

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
