// Package commands implements the negmarket command line.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/celerix-dev/negmarket/internal/config"
	"github.com/celerix-dev/negmarket/internal/i18n"
	"github.com/celerix-dev/negmarket/internal/logger"
	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
	"github.com/celerix-dev/negmarket/pkg/sdk"
)

var (
	configPath string
	accountID  string
	lang       string
	verbose    bool

	cfg     config.Config
	mkt     sdk.Market
	out     io.Writer
	catalog *i18n.Catalog
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	out = os.Stdout
	catalog = i18n.New()

	root := &cobra.Command{
		Use:   "negmarket",
		Short: "Browse, buy and upload negative-result datasets",
		Long: "negmarket talks to the daemon at NEGMARKET_STORE_ADDR. Without it, each\n" +
			"invocation runs against a freshly seeded in-process market.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			out = cmd.OutOrStdout()

			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}

			log := logger.NewNop()
			if verbose {
				if log, err = logger.New(logger.Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}}); err != nil {
					return err
				}
			}

			mkt, err = sdk.New(cfg, log)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if mkt == nil {
				return nil
			}
			return mkt.Close()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("NEGMARKET_CONFIG"), "YAML config file")
	root.PersistentFlags().StringVarP(&accountID, "account", "a", engine.DefaultAccount, "account to act as")
	root.PersistentFlags().StringVar(&lang, "lang", "", "message language (default: market.locale)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		searchCmd(),
		showCmd(),
		featuredCmd(),
		buyCmd(),
		accountCmd(),
		uploadCmd(),
		notificationCmd(),
	)
	return root
}

// messageLang resolves --lang, falling back to the configured locale.
func messageLang() language.Tag {
	if lang != "" {
		return catalog.Match(lang)
	}
	return catalog.Match(cfg.Market.Locale)
}

// printNotification renders the current notification, if any.
func printNotification(ctx context.Context) error {
	n, ok, err := mkt.Notification(ctx)
	if err != nil || !ok {
		return err
	}
	prefix := "✓"
	if n.Severity == schema.SeverityError {
		prefix = "✗"
	}
	fmt.Fprintln(out, prefix, catalog.Render(messageLang(), n))
	return nil
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(out, v)
		return
	}
	fmt.Fprintln(out, string(bytes))
}
