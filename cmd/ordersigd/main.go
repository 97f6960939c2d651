// Command ordersigd serves typed-data digests, signature recovery and
// exchange order validation over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	ordersig "github.com/exchangev2/ordersig"
	ordersighttp "github.com/exchangev2/ordersig/http"
	"github.com/exchangev2/ordersig/internal/config"
	"github.com/exchangev2/ordersig/internal/logger"
	"github.com/exchangev2/ordersig/mechanisms/evm"
	"github.com/exchangev2/ordersig/mechanisms/evm/order"
	"github.com/exchangev2/ordersig/mechanisms/evm/order/validator"
	evmsigners "github.com/exchangev2/ordersig/signers/evm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ordersigd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("ORDERSIG_CONFIG"), "path to the YAML config file")
	flag.Parse()

	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	domain, err := cfg.Domain.TypedDataDomain()
	if err != nil {
		return err
	}

	reg := evm.NewTypeRegistry(evm.WithRegistryLogger(log.Named("registry")))
	if err := order.Register(reg); err != nil {
		return err
	}
	if err := cfg.RegisterSchemas(reg); err != nil {
		return err
	}
	engine, err := ordersig.NewEngine(reg, ordersig.WithLogger(log.Named("engine")))
	if err != nil {
		return fmt.Errorf("invalid schemas: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Contract makers are only checked when a ledger endpoint is configured
	var ledger evm.LedgerReader
	if cfg.Ledger.RPCURL != "" {
		client, err := connectLedger(ctx, cfg.Ledger.RPCURL, domain, log)
		if err != nil {
			return err
		}
		defer client.Close()
		ledger = client
	}

	orders := validator.NewOrderScheme(reg, ledger, &validator.OrderSchemeConfig{
		AllowUndeployedWallets: cfg.Ledger.AllowUndeployedWallets,
	}, log.Named("orders"))

	gin.SetMode(gin.ReleaseMode)
	server := ordersighttp.NewServer(engine,
		ordersighttp.WithLogger(log.Named("http")),
		ordersighttp.WithOrderValidator(orders),
		ordersighttp.WithDefaultDomain(domain),
	)

	log.Info("ordersigd starting",
		zap.String("version", ordersig.Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("chainId", domain.ChainID.String()),
		zap.String("exchange", domain.VerifyingContract.Hex()),
		zap.Strings("types", reg.Names()),
	)
	return server.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout())
}

// connectLedger dials the RPC endpoint and checks that it serves the
// configured chain
func connectLedger(ctx context.Context, rpcURL string, domain evm.TypedDataDomain, log *zap.Logger) (*evmsigners.LedgerClient, error) {
	client, err := evmsigners.DialLedger(rpcURL)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if chainID.Cmp(domain.ChainID) != 0 {
		client.Close()
		return nil, fmt.Errorf("rpc endpoint serves chain %s, domain expects %s", chainID, domain.ChainID)
	}

	log.Info("ledger connected", zap.String("chainId", chainID.String()))
	return client, nil
}
