package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/pkg/client"
)

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Start a session and collect today's top-up",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := apiClient.Account().Session(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(session)
			}

			switch session.Outcome {
			case "created":
				fmt.Printf("Welcome! Your account starts with %d coins.\n", session.Account.Coins)
			case "granted":
				fmt.Printf("Daily top-up: +%d coins.\n", session.Granted)
			default:
				fmt.Println("Already topped up today.")
			}
			printAccount(session.Account)
			return nil
		},
	}
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show coins, reward counters and tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := apiClient.Account().Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get account: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(acct)
			}
			printAccount(acct)
			return nil
		},
	}
}

func printAccount(a *client.Account) {
	fmt.Printf("Coins:      %d\n", a.Coins)
	fmt.Printf("Tier:       %s", formatTier(a.Tier()))
	if a.ProTierExpiry != nil {
		fmt.Printf(" (until %s)", formatTime(a.ProTierExpiry))
	}
	fmt.Println()
	fmt.Printf("Top-up day: %s\n", a.LastCoinRewardDate)
	fmt.Printf("Ads today:  %d/10\n", countOn(a.AdsWatchedToday, a.LastCoinRewardDate))
	fmt.Printf("Shares:     %d/5\n", countOn(a.SharesToday, a.LastCoinRewardDate))
	fmt.Printf("History:    %d saved, %d favorites\n", len(a.History), len(a.Favorites))
}

// countOn hides counters left over from a previous day
func countOn(c client.DailyCounter, day string) int {
	if c.Date != day {
		return 0
	}
	return c.Count
}

func newRewardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reward",
		Short: "Claim rewards",
	}

	claim := func(name, short string, fn func(*client.AccountService, context.Context) (*client.RewardResult, error)) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				result, err := fn(apiClient.Account(), cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to claim reward: %w", err)
				}
				if getOutputFormat() != "table" {
					return printOutput(result)
				}
				fmt.Printf("%s, balance %d coins\n", formatGranted(result.Granted), result.Coins)
				return nil
			},
		}
	}

	cmd.AddCommand(claim("ad", "Claim the ad reward (+10, 10 per day)", (*client.AccountService).WatchAd))
	cmd.AddCommand(claim("share", "Claim the share reward (+15, 5 per day)", (*client.AccountService).ShareReward))

	return cmd
}

func newSpendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spend <amount>",
		Short: "Spend coins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer")
			}

			acct, err := apiClient.Account().Spend(cmd.Context(), amount)
			if err != nil {
				if apiErr, ok := err.(*client.APIError); ok && apiErr.IsInsufficientFunds() {
					return fmt.Errorf("not enough coins: %s", apiErr.Message)
				}
				return fmt.Errorf("failed to spend: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(acct)
			}
			fmt.Printf("Spent %d coins, balance %d\n", amount, acct.Coins)
			return nil
		},
	}
}

func newTransactionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List recent ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := apiClient.Account().Transactions(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(txs)
			}

			table := NewTable("ID", "KIND", "AMOUNT", "BALANCE", "REFERENCE", "WHEN")
			for _, tx := range txs {
				t := tx.CreatedAt
				table.AddRow(
					strconv.FormatInt(tx.ID, 10),
					tx.Kind,
					fmt.Sprintf("%+d", tx.Amount),
					strconv.FormatInt(tx.BalanceAfter, 10),
					truncate(tx.Reference, 28),
					formatTime(&t),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries (max 100)")

	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow balance changes live until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			format := getOutputFormat()
			return apiClient.Account().Watch(ctx, func(a *client.Account) {
				if format != "table" {
					_ = printOutput(a)
					return
				}
				fmt.Printf("v%-4d coins %-8d ads %d/10  shares %d/5  tier %s\n",
					a.Version, a.Coins,
					countOn(a.AdsWatchedToday, a.LastCoinRewardDate),
					countOn(a.SharesToday, a.LastCoinRewardDate),
					formatTier(a.Tier()))
			})
		},
	}
}
