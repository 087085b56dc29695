package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"launtel-backend/lib/configutil"
	"launtel-backend/lib/scrapers/launtel"
	"launtel-backend/lib/serviceutil"
)

type Config struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

var rootCmd = &cobra.Command{
	Use:   "launtel-cli",
	Short: "launtel-cli inspects and changes Launtel residential services.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createClient() *launtel.Client {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv("LAUNTEL_USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("LAUNTEL_PASSWORD")
	}

	client, err := launtel.NewClient(launtel.ClientOptions{
		BaseUrl:  cfg.BaseUrl,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		serviceutil.Fatal("failed to create client", err)
	}
	return client
}
