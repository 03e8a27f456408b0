package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/pkg/client"
)

func newSubscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Show or activate subscriptions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := apiClient.Subscriptions().Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get subscription: %w", err)
			}
			return renderSubscription(sub)
		},
	})

	var req client.ActivateRequest
	activate := &cobra.Command{
		Use:         "activate <user-id> <plan>",
		Short:       "Activate a plan after a confirmed payment (requires the API key)",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{annotationInternal: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UserID, req.Plan = args[0], args[1]
			sub, err := apiClient.Internal().Activate(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to activate subscription: %w", err)
			}
			return renderSubscription(sub)
		},
	}
	activate.Flags().StringVar(&req.OrderID, "order", "", "payment order id; repeated ids are ignored")
	cmd.AddCommand(activate)

	return cmd
}

func renderSubscription(sub *client.Subscription) error {
	if getOutputFormat() != "table" {
		return printOutput(sub)
	}

	if !sub.Active {
		fmt.Println("Plan:    free (no active subscription)")
		return nil
	}
	fmt.Printf("Plan:    %s\n", sub.Plan)
	fmt.Printf("Started: %s\n", formatTime(sub.StartAt))
	fmt.Printf("Ends:    %s\n", formatTime(sub.EndAt))
	if sub.OrderID != "" {
		fmt.Printf("Order:   %s\n", sub.OrderID)
	}
	return nil
}

func newEntitlementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entitlement",
		Short: "Show what the current plan allows",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := apiClient.Subscriptions().Entitlement(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get entitlement: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(e)
			}

			table := NewTable("PLAN", "PREMIUM", "ADS", "DAILY", "UNLIMITED", "EXPIRES")
			table.AddRow(e.Plan, yesNo(e.IsPremium), yesNo(e.ShowAds),
				fmt.Sprintf("%d", e.DailyAllowance), yesNo(e.UnlimitedSpend), formatTime(e.ExpiresAt))
			table.Render()
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
