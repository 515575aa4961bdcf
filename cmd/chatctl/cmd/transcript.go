package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/atelier/internal/widget"
	"github.com/spf13/cobra"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Inspect or reset the stored chat transcript",
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored transcript",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.close()

		rec, err := c.storage.Load(context.Background(), widget.StorageKey)
		if err != nil {
			printError(cmd.ErrOrStderr(), "load transcript", err)
			return err
		}
		out := cmd.OutOrStdout()
		if rec == nil || len(rec.Messages) == 0 {
			fmt.Fprintln(out, "No stored chat.")
			return nil
		}
		fmt.Fprintf(out, "Locale: %s, last saved %s\n\n", rec.Locale,
			time.UnixMilli(rec.Timestamp).Format(time.RFC3339))
		printMessages(out, rec.Messages, c.locale)
		return nil
	},
}

var transcriptResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored transcript",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.close()

		if err := c.storage.Remove(context.Background(), widget.StorageKey); err != nil {
			printError(cmd.ErrOrStderr(), "reset transcript", err)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Transcript removed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.AddCommand(transcriptShowCmd, transcriptResetCmd)
}
