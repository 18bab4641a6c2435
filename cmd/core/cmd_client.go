package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	grpc_adapter "github.com/JoeShih716/go-block-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
	grpcpool "github.com/JoeShih716/go-block-ledger/pkg/grpc"
)

var cmdBalance = &cobra.Command{
	Use:   "balance [account]",
	Short: "Query the balance of an account",
	Args:  cobra.ExactArgs(1),
	Run:   balance,
}

var cmdCreateAccount = &cobra.Command{
	Use:   "create-account [account] [balance]",
	Short: "Create an account with an initial balance",
	Args:  cobra.RangeArgs(1, 2),
	Run:   createAccount,
}

var cmdTransfer = &cobra.Command{
	Use:   "transfer [from] [to] [amount]",
	Short: "Transfer funds between two accounts",
	Args:  cobra.ExactArgs(3),
	Run:   transfer,
}

var cmdBlock = &cobra.Command{
	Use:   "block [height]",
	Short: "Show a sealed block, or the latest one when no height is given",
	Args:  cobra.MaximumNArgs(1),
	Run:   block,
}

var cmdTick = &cobra.Command{
	Use:   "tick",
	Short: "Ask the node to seal the current block if the interval has elapsed",
	Args:  cobra.NoArgs,
	Run:   tick,
}

var flagClient struct {
	Server  string
	Timeout time.Duration
}

func init() {
	cmdMain.AddCommand(cmdBalance, cmdCreateAccount, cmdTransfer, cmdBlock, cmdTick)

	for _, cmd := range []*cobra.Command{cmdBalance, cmdCreateAccount, cmdTransfer, cmdBlock, cmdTick} {
		cmd.Flags().StringVarP(&flagClient.Server, "server", "s", "localhost:50051", "gRPC address of the ledger node")
		cmd.Flags().DurationVar(&flagClient.Timeout, "timeout", 30*time.Second, "Request timeout")
	}
}

// withClient 建立連線後執行 fn，連線關閉之後才處理錯誤
func withClient(fn func(ctx context.Context, client *grpc_adapter.Client) error) {
	check(callClient(fn))
}

func callClient(fn func(ctx context.Context, client *grpc_adapter.Client) error) error {
	pool := grpcpool.NewPool()
	defer pool.Close()

	conn, err := pool.GetConnection(flagClient.Server)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", flagClient.Server, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flagClient.Timeout)
	defer cancel()
	return fn(ctx, grpc_adapter.NewClient(conn))
}

func balance(_ *cobra.Command, args []string) {
	withClient(func(ctx context.Context, client *grpc_adapter.Client) error {
		amount, err := client.GetBalance(ctx, args[0])
		if err != nil {
			return fmt.Errorf("query balance of %s: %w", args[0], err)
		}
		fmt.Println(amount)
		return nil
	})
}

func createAccount(_ *cobra.Command, args []string) {
	var initial uint64
	if len(args) > 1 {
		var err error
		initial, err = strconv.ParseUint(args[1], 10, 64)
		checkf(err, "invalid balance %q", args[1])
	}
	withClient(func(ctx context.Context, client *grpc_adapter.Client) error {
		ref, err := client.CreateAccount(ctx, args[0], initial)
		if err != nil {
			return fmt.Errorf("create account %s: %w", args[0], err)
		}
		fmt.Printf("Account %s created with balance %d (ref %s)\n", args[0], initial, ref)
		return nil
	})
}

func transfer(_ *cobra.Command, args []string) {
	amount, err := strconv.ParseUint(args[2], 10, 64)
	checkf(err, "invalid amount %q", args[2])
	withClient(func(ctx context.Context, client *grpc_adapter.Client) error {
		ref, err := client.Transfer(ctx, args[0], args[1], amount)
		if err != nil {
			return fmt.Errorf("transfer: %w", err)
		}
		fmt.Printf("Transferred %d from %s to %s (ref %s)\n", amount, args[0], args[1], ref)
		return nil
	})
}

func block(_ *cobra.Command, args []string) {
	var height uint64
	if len(args) > 0 && args[0] != "latest" {
		var err error
		height, err = strconv.ParseUint(args[0], 10, 64)
		checkf(err, "invalid height %q", args[0])
		if height == 0 {
			fatalf("block heights start at 1")
		}
	}
	withClient(func(ctx context.Context, client *grpc_adapter.Client) error {
		b, err := client.GetBlock(ctx, height)
		if err != nil {
			return fmt.Errorf("get block: %w", err)
		}
		return printBlock(os.Stdout, b)
	})
}

func tick(_ *cobra.Command, _ []string) {
	withClient(func(ctx context.Context, client *grpc_adapter.Client) error {
		b, err := client.Tick(ctx)
		if err != nil {
			return err
		}
		if b == nil {
			fmt.Println("Settlement interval has not elapsed, nothing sealed")
			return nil
		}
		return printBlock(os.Stdout, *b)
	})
}

func printBlock(w io.Writer, b domain.Block) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}
