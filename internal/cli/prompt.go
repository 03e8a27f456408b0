package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/pkg/client"
)

func newGenerateCmd() *cobra.Command {
	var (
		req      client.GenerationRequest
		settings string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Record a generated prompt (image 10, video 20, text 30 coins)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings != "" {
				if !json.Valid([]byte(settings)) {
					return fmt.Errorf("--settings must be valid JSON")
				}
				req.Settings = json.RawMessage(settings)
			}

			gen, err := apiClient.Prompts().Generate(cmd.Context(), req)
			if err != nil {
				if apiErr, ok := err.(*client.APIError); ok && apiErr.IsInsufficientFunds() {
					return fmt.Errorf("not enough coins for a %s prompt", req.Mode)
				}
				return fmt.Errorf("failed to record generation: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(gen)
			}
			fmt.Printf("Saved %s, balance %d coins\n", gen.Prompt.ID, gen.Coins)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Mode, "mode", "image", "image, video or text")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "generated prompt text")
	cmd.Flags().StringVar(&req.BaseIdea, "idea", "", "the idea the prompt was built from")
	cmd.Flags().StringVar(&req.PlatformName, "platform", "", "target platform name")
	cmd.Flags().StringVar(&req.PlatformURL, "platform-url", "", "target platform URL")
	cmd.Flags().StringVar(&settings, "settings", "", "generation settings as JSON")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage generated prompts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := apiClient.Prompts().History(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}
			return renderPrompts(prompts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Prompts().DeleteHistory(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete history entry: %w", err)
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func newFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage favorites",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorites, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := apiClient.Prompts().Favorites(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list favorites: %w", err)
			}
			return renderPrompts(prompts)
		},
	})

	var name string
	add := &cobra.Command{
		Use:   "add <history-id>",
		Short: "Copy a history entry into favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fav, err := apiClient.Prompts().AddFavorite(cmd.Context(), args[0], name)
			if err != nil {
				return fmt.Errorf("failed to add favorite: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(fav)
			}
			fmt.Printf("Added %q\n", fav.Name)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (default: derived from the idea)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Prompts().DeleteFavorite(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete favorite: %w", err)
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func renderPrompts(prompts []client.SavedPrompt) error {
	if getOutputFormat() != "table" {
		return printOutput(prompts)
	}

	table := NewTable("ID", "MODE", "PLATFORM", "NAME", "PROMPT", "CREATED")
	for _, p := range prompts {
		table.AddRow(p.ID, p.Mode, p.PlatformName, truncate(p.Name, 24), truncate(p.Prompt, 48), formatMillis(p.Timestamp))
	}
	table.Render()
	return nil
}
