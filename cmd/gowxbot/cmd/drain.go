package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kamir/gowxbot/internal/config"
	"github.com/kamir/gowxbot/internal/gateway"
	"github.com/kamir/gowxbot/internal/queue"
	"github.com/spf13/cobra"
)

var drainMax int

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver pending outbound requests once, without the loop",
	Run:   runDrain,
}

func init() {
	drainCmd.Flags().IntVarP(&drainMax, "max", "n", 0, "Maximum deliveries (0 = until empty)")
	rootCmd.AddCommand(drainCmd)
}

func runDrain(cmd *cobra.Command, args []string) {
	printHeader("📤 GoWxBot Drain")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	tokens := gateway.NewStaticTokenSource(cfg.Gateway.Token)
	q, err := queue.New(cfg.Paths.QueueDB, tokens, queue.Options{Timeout: cfg.Drain.Timeout()}, nil)
	if err != nil {
		fmt.Printf("Failed to open queue: %v\n", err)
		os.Exit(1)
	}
	defer q.Close()

	ctx := context.Background()
	pending, err := q.Pending(ctx)
	if err != nil {
		fmt.Printf("Failed to count pending: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d request(s) pending\n", pending)

	delivered := 0
	for {
		out, err := q.DrainOnce(ctx)
		if err != nil {
			fmt.Printf("Drain aborted: %v\n", err)
			os.Exit(1)
		}
		if out.Reason == "empty" {
			break
		}
		if out.Delivered {
			delivered++
			fmt.Printf("✅ Delivered request %d\n", out.RequestID)
		} else {
			fmt.Printf("❌ Request %d failed: %s\n", out.RequestID, out.Reason)
			break
		}
		if drainMax > 0 && delivered >= drainMax {
			break
		}
	}
	fmt.Printf("Done: %d delivered\n", delivered)
}
