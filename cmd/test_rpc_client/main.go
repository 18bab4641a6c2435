package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-block-ledger/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-block-ledger/pkg/grpc"
	"github.com/JoeShih716/go-block-ledger/pkg/log"
)

var cmdMain = &cobra.Command{
	Use:   "test_rpc_client",
	Short: "Load test a ledger node with random transfers and verify conservation",
	Args:  cobra.NoArgs,
	Run:   loadTest,
}

var flagLoadTest struct {
	Server      string
	Accounts    int
	Balance     uint64
	Transfers   int
	Concurrency int
	MaxAmount   uint64
	Timeout     time.Duration
}

func init() {
	cmdMain.Flags().StringVarP(&flagLoadTest.Server, "server", "s", "localhost:50051", "gRPC address of the ledger node")
	cmdMain.Flags().IntVar(&flagLoadTest.Accounts, "accounts", 10, "Number of generated accounts")
	cmdMain.Flags().Uint64Var(&flagLoadTest.Balance, "balance", 1000, "Initial balance of each generated account")
	cmdMain.Flags().IntVarP(&flagLoadTest.Transfers, "transfers", "n", 10000, "Number of random transfers")
	cmdMain.Flags().IntVarP(&flagLoadTest.Concurrency, "concurrency", "c", 100, "Number of in-flight requests")
	cmdMain.Flags().Uint64Var(&flagLoadTest.MaxAmount, "max-amount", 50, "Largest amount of a single transfer")
	cmdMain.Flags().DurationVar(&flagLoadTest.Timeout, "timeout", 2*time.Minute, "Overall timeout")
}

func main() {
	_ = cmdMain.Execute()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func checkf(err error, format string, otherArgs ...interface{}) {
	if err != nil {
		fatalf(format+": %v", append(otherArgs, err)...)
	}
}

// isRejection 帳本拒絕的轉帳 (餘額不足等)，其他錯誤代表連線或伺服器有問題
func isRejection(err error) bool {
	switch status.Code(err) {
	case codes.FailedPrecondition, codes.NotFound, codes.InvalidArgument:
		return true
	default:
		return false
	}
}

func loadTest(_ *cobra.Command, _ []string) {
	if flagLoadTest.Accounts < 2 {
		fatalf("need at least 2 accounts, got %d", flagLoadTest.Accounts)
	}
	if flagLoadTest.MaxAmount == 0 {
		fatalf("--max-amount must be positive")
	}

	logger, err := log.New(log.Options{Level: "info"})
	checkf(err, "init logger")

	pool := grpcpool.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(flagLoadTest.Server)
	checkf(err, "connect to %s", flagLoadTest.Server)
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), flagLoadTest.Timeout)
	defer cancel()

	// 1. 建立測試帳戶，每次執行都用新的名字避免撞到既有帳戶
	run := uuid.NewString()[:8]
	accounts := make([]string, flagLoadTest.Accounts)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("load-%s-%d", run, i)
		_, err := client.CreateAccount(ctx, accounts[i], flagLoadTest.Balance)
		checkf(err, "create account %s", accounts[i])
	}
	expected := flagLoadTest.Balance * uint64(len(accounts))
	logger.Info().Int("accounts", len(accounts)).Uint64("total", expected).Msg("accounts created")

	// 2. 隨機轉帳，餘額不足是預期中的結果
	var applied, rejected atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flagLoadTest.Concurrency)

	start := time.Now()
	for i := 0; i < flagLoadTest.Transfers; i++ {
		from := rand.IntN(len(accounts))
		to := rand.IntN(len(accounts))
		amount := rand.Uint64N(flagLoadTest.MaxAmount) + 1
		g.Go(func() error {
			if _, err := client.Transfer(gctx, accounts[from], accounts[to], amount); err != nil {
				if !isRejection(err) {
					return err
				}
				rejected.Add(1)
				logger.Debug().Err(err).Msg("transfer rejected")
				return nil
			}
			applied.Add(1)
			return nil
		})
	}
	checkf(g.Wait(), "load test aborted")

	elapsed := time.Since(start)
	logger.Info().
		Int64("applied", applied.Load()).
		Int64("rejected", rejected.Load()).
		Dur("elapsed", elapsed).
		Float64("tps", float64(flagLoadTest.Transfers)/elapsed.Seconds()).
		Msg("transfers completed")

	// 3. 總額必須不變
	var total uint64
	for _, id := range accounts {
		balance, err := client.GetBalance(ctx, id)
		checkf(err, "query balance of %s", id)
		total += balance
	}
	if total != expected {
		logger.Error().Uint64("expected", expected).Uint64("actual", total).Msg("balances are not conserved")
		os.Exit(1)
	}
	logger.Info().Uint64("total", total).Msg("balances conserved")
}
