package commands

import (
	"context"
	"fmt"
	"os"

	"spotdetector/lib/configutil"
	"spotdetector/lib/scrapers/stackexchange"
	"spotdetector/lib/serviceutil"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spotdetector-cli",
	Short: "spotdetector-cli runs one-shot scrapes against a review queue or post timeline.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Host     string `json:"host"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// createBrowser logs a scraping session in from config.json5. Anonymous
// sessions work for public timelines, so missing credentials only warn.
func createBrowser(ctx context.Context) *stackexchange.Browser {
	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Host == "" {
		config.Host = "https://stackoverflow.com"
	}

	browser, err := stackexchange.NewBrowser(stackexchange.BrowserOptions{
		Host: config.Host,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize browser", err)
	}

	if config.Email != "" {
		err = browser.Login(ctx, config.Email, config.Password)
		if err != nil {
			serviceutil.Fatal("failed to login", err)
		}
	}
	return browser
}
