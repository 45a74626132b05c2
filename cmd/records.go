package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest-guardian/regen-insights/internal/notification"
	"github.com/forest-guardian/regen-insights/internal/storage"
	"github.com/forest-guardian/regen-insights/internal/ui"
)

type listOptions struct {
	area  string
	since string
	limit int
}

func (o *listOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.area, "area", "", "only records of this area")
	cmd.Flags().StringVar(&o.since, "since", "", "only records computed on or after this day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&o.limit, "limit", 0, "maximum number of records")
}

func (o *listOptions) filter() (storage.ListFilter, error) {
	f := storage.ListFilter{AreaName: o.area, Limit: o.limit}
	if o.since != "" {
		since, err := time.Parse("2006-01-02", o.since)
		if err != nil {
			return f, fmt.Errorf("invalid --since %q: %w", o.since, err)
		}
		f.Since = since
	}
	return f, nil
}

func newRecordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect stored regeneration records",
	}

	var list listOptions
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := list.filter()
			if err != nil {
				return err
			}
			records, err := openRecordStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer records.Close()

			rs, err := records.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(rs) == 0 {
				ui.PrintWarning("no records found")
				return nil
			}
			ui.PrintRecords(os.Stdout, rs)
			return nil
		},
	}
	list.register(listCmd)

	var (
		export listOptions
		out    string
		notify bool
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write records as CSV, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.filter()
			if err != nil {
				return err
			}
			records, err := openRecordStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer records.Close()

			rs, err := records.List(cmd.Context(), f)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer file.Close()
				w = file
			}
			if err := storage.ExportCSV(w, rs); err != nil {
				return err
			}
			if out == "" || out == "-" {
				return nil
			}
			msg := fmt.Sprintf("Exported %d records to %s", len(rs), out)
			ui.PrintSuccess(msg)
			if notify {
				discord := notification.NewDiscord(a.cfg.DiscordErrorNotificationURL, a.cfg.DiscordSuccessNotificationURL)
				if err := discord.SendSuccessNotification(cmd.Context(), msg); err != nil {
					a.logger.Warn("failed to send notification", "error", err)
				}
			}
			return nil
		},
	}
	export.register(exportCmd)
	exportCmd.Flags().StringVarP(&out, "output", "o", "-", "CSV file, - for stdout")
	exportCmd.Flags().BoolVar(&notify, "notify", false, "announce a file export on the Discord success webhook")

	cmd.AddCommand(listCmd, exportCmd)
	return cmd
}
