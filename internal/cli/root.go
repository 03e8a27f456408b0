package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/pkg/client"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	apiClient    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "pm",
	Short: "Prompt Master CLI - coins, rewards and prompt history",
	Long: `pm talks to the Prompt Master API: start a session to collect the daily
top-up, claim rewards, record generations, manage history and favorites,
and inspect subscriptions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case cmd.Parent() != nil && cmd.Parent().Name() == "config":
			return nil
		case cmd.Name() == "login" || cmd.Name() == "logout":
			return nil
		case cmd.Annotations[annotationPublic] == "true":
			return initClient()
		case cmd.Annotations[annotationInternal] == "true":
			return initInternalClient()
		}
		return initAuthenticatedClient()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

const (
	// annotationInternal marks commands that authenticate with the API key
	annotationInternal = "internal"
	// annotationPublic marks commands that need no credentials
	annotationPublic = "public"
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.promptmaster.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides config)")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newBalanceCmd())
	rootCmd.AddCommand(newRewardCmd())
	rootCmd.AddCommand(newSpendCmd())
	rootCmd.AddCommand(newTransactionsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newFavoritesCmd())
	rootCmd.AddCommand(newSubscriptionCmd())
	rootCmd.AddCommand(newEntitlementCmd())
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".promptmaster.yaml"), nil
}

func initConfig() {
	path, err := configPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("PM")
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func initClient() error {
	url := viper.GetString("server_url")
	if serverURL != "" {
		url = serverURL
	}

	apiClient = client.NewClient(client.Config{
		BaseURL: url,
	})
	return nil
}

func initAuthenticatedClient() error {
	if err := initClient(); err != nil {
		return err
	}

	token := viper.GetString("auth.token")
	if token == "" {
		return fmt.Errorf("not authenticated. Run 'pm auth login' first")
	}

	apiClient.SetToken(token)
	return nil
}

func initInternalClient() error {
	if err := initClient(); err != nil {
		return err
	}

	key := viper.GetString("api_key")
	if key == "" {
		return fmt.Errorf("no API key configured. Run 'pm config set api_key <key>' or set PM_API_KEY")
	}

	apiClient.SetAPIKey(key)
	return nil
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	return viper.GetString("output")
}
