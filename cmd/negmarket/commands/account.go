package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

func buyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <listing>",
		Short: "Purchase a dataset with account credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := mkt.For(accountID).Purchase(cmd.Context(), args[0])

			var ice *engine.InsufficientCreditsError
			if errors.As(err, &ice) {
				_ = printNotification(cmd.Context())
				l := messageLang()
				return fmt.Errorf("%s %d %s", catalog.T(l, "common.need_more"), ice.Price-ice.Balance, catalog.T(l, "common.more_credits"))
			}
			if err != nil {
				return err
			}

			if err := printNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Receipt: %s %q on %s for %d credits. Balance: %d\n",
				res.Record.ListingID, res.Record.Title, res.Record.Date, res.Record.Price, res.Account.Credits)
			return nil
		},
	}
}

func accountCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show the account, its purchases and uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := mkt.For(accountID)
			if summary {
				sum, err := scope.Summary(cmd.Context())
				if err != nil {
					return err
				}
				printJSON(sum)
				return nil
			}
			acct, err := scope.Account(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(acct)
			return nil
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print dashboard totals only")
	return cmd
}

func uploadCmd() *cobra.Command {
	var draft schema.UploadDraft
	var category, stage string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Submit a negative-result experiment for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.Category = schema.Category(category)
			draft.Stage = schema.FailureStage(stage)

			fmt.Fprintln(out, "Processing...")
			res, err := mkt.For(accountID).Upload(cmd.Context(), draft)
			if err != nil {
				return err
			}
			if err := printNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Listing %s (%s) added to your uploads. Next: %s\n", res.Listing.ID, res.Listing.Verification, res.NextView)
			return nil
		},
	}
	cmd.Flags().StringVar(&draft.Title, "title", "", "experiment title")
	cmd.Flags().StringVar(&category, "category", "", "research category")
	cmd.Flags().StringVar(&stage, "stage", "", "failure stage")
	cmd.Flags().StringVar(&draft.Summary, "summary", "", "what was tried and why it failed")
	cmd.Flags().Int64Var(&draft.Price, "price", 0, "requested price (set by review)")
	cmd.Flags().BoolVar(&draft.Anonymize, "anonymize", true, "strip institution and author details")
	return cmd
}

func notificationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notification",
		Short: "Print the current status message, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, ok, err := mkt.Notification(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "(none)")
				return nil
			}
			fmt.Fprintln(out, catalog.Render(messageLang(), n))
			return nil
		},
	}
}
