package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-block-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-block-ledger/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-block-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-block-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-block-ledger/internal/config"
	"github.com/JoeShih716/go-block-ledger/pkg/log"
	"github.com/JoeShih716/go-block-ledger/pkg/mysql"
)

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Run the settlement worker with the gRPC and HTTP front ends",
	Args:  cobra.NoArgs,
	Run:   serve,
}

var flagServe struct {
	Interval   time.Duration
	GRPCAddr   string
	HTTPAddr   string
	Reflection bool
}

const shutdownTimeout = 10 * time.Second

func init() {
	cmdMain.AddCommand(cmdServe)

	cmdServe.Flags().DurationVar(&flagServe.Interval, "interval", 0, "Override settlement.interval from the config file")
	cmdServe.Flags().StringVar(&flagServe.GRPCAddr, "grpc-addr", "", "Override grpc.addr from the config file")
	cmdServe.Flags().StringVar(&flagServe.HTTPAddr, "http-addr", "", "Override http.addr from the config file")
	cmdServe.Flags().BoolVar(&flagServe.Reflection, "reflection", false, "Register the gRPC reflection service")
}

func serve(cmd *cobra.Command, _ []string) {
	// 1. 載入設定
	cfg, err := config.Load(flagMain.Config, !cmd.Flags().Changed("config"))
	check(err)
	if flagServe.Interval > 0 {
		cfg.Settlement.Interval = flagServe.Interval
	}
	if flagServe.GRPCAddr != "" {
		cfg.GRPC.Addr = flagServe.GRPCAddr
	}
	if flagServe.HTTPAddr != "" {
		cfg.HTTP.Addr = flagServe.HTTPAddr
	}

	logger, err := log.New(log.Options{Level: cfg.Log.Level, Format: log.Format(cfg.Log.Format)})
	checkf(err, "init logger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 啟動結算 worker，worker 有自己的 context，要等前端都關掉之後才停
	ledger := memory_adapter.NewSettlementLedger(
		memory_adapter.WithInterval(cfg.Settlement.Interval),
		memory_adapter.WithLogger(logger),
	)
	ledgerCtx, stopLedger := context.WithCancel(context.Background())
	ledger.Start(ledgerCtx)
	defer func() {
		stopLedger()
		ledger.Wait()
		logger.Info().Uint64("height", ledger.Height()).Msg("ledger stopped")
	}()

	core := usecase.NewCoreUseCase(ledger, logger)

	// 3. 建立創世帳戶
	accounts, err := genesisAccounts(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load genesis accounts")
		return
	}
	if _, err := core.SeedAccounts(ctx, accounts); err != nil {
		logger.Error().Err(err).Msg("failed to seed genesis accounts")
		return
	}

	// 4. 啟動 gRPC / HTTP
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", cfg.GRPC.Addr).Msg("failed to listen")
		return
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.LoggingInterceptor(logger)))
	grpc_adapter.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(core))
	if flagServe.Reflection {
		reflection.Register(grpcServer)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           http_adapter.NewServer(core, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.GRPC.Addr).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
}

// genesisAccounts 合併設定檔與 MySQL 的創世帳戶，設定檔優先
func genesisAccounts(ctx context.Context, cfg config.Config, logger zerolog.Logger) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(cfg.Genesis.Accounts))
	seen := make(map[string]struct{}, len(cfg.Genesis.Accounts))
	for _, acc := range cfg.Genesis.Accounts {
		accounts = append(accounts, domain.Account{ID: acc.ID, Balance: acc.Balance})
		seen[acc.ID] = struct{}{}
	}
	if !cfg.Genesis.MySQL.Enabled {
		return accounts, nil
	}

	client, err := mysql.NewClient(ctx, cfg.Genesis.MySQL.Config, logger)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	rows, err := mysql_adapter.NewGenesisLoader(client).LoadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, acc := range rows {
		if _, ok := seen[acc.ID]; ok {
			logger.Warn().Str("account", acc.ID).Msg("genesis account defined in both config and MySQL, keeping config")
			continue
		}
		accounts = append(accounts, acc)
	}
	logger.Info().Int("accounts", len(rows)).Msg("loaded genesis accounts from MySQL")
	return accounts, nil
}
