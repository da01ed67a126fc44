package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/slotkeeper/internal/config"
	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/schedule"
)

type slotsOptions struct {
	tenant     string
	date       string
	configPath string
	all        bool
	debug      bool
}

func newSlotsCmd() *cobra.Command {
	var opts slotsOptions

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print a tenant's slots for one day",
		Long: `Print the appointment slots of a tenant for one day.

The tenant is taken from the configuration file when listed there and is
otherwise created with the default business hours. Busy times come from
the tenant's Google Calendar when credentials are available.`,
		Example: `  slotkeeper slots --tenant salon-1 --date 2026-03-02
  slotkeeper slots --tenant salon-1 --all --config slotkeeper.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlots(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Tenant identifier (required)")
	cmd.Flags().StringVar(&opts.date, "date", "", "Date to inspect, YYYY-MM-DD (default: today in the tenant's time zone)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Also list blocked slots")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runSlots(ctx context.Context, out, errOut io.Writer, opts slotsOptions) error {
	if opts.date != "" {
		if _, err := time.Parse(schedule.DateLayout, opts.date); err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", opts.date)
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger := newLogger(errOut, opts.debug)
	rt, err := newRuntime(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Warn("error during shutdown", "error", err)
		}
	}()

	summary, err := rt.registry.GetSlots(ctx, opts.tenant, opts.date)
	if err != nil {
		return err
	}
	day, err := rt.registry.GetSlotsForDate(ctx, opts.tenant, summary.Date)
	if err != nil {
		return err
	}

	return printSlots(out, summary, day, opts.all)
}

// printSlots writes the summary line followed by a slot table.
func printSlots(out io.Writer, summary connector.SlotsSummary, day connector.DaySlots, all bool) error {
	source := summary.Source
	if summary.Degraded {
		source += " (degraded)"
	}
	fmt.Fprintf(out, "%s\n", summary.Text)
	fmt.Fprintf(out, "date: %s  source: %s  available: %d\n\n", summary.Date, source, summary.AvailableCount)

	slots := day.Slots
	if !all {
		slots = day.Available()
	}
	if len(slots) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEND\tSTATUS\tSERVICES")
	for _, s := range slots {
		status := "available"
		if !s.Available {
			status = string(s.BlockedReason)
		}
		services := "-"
		if len(s.ServiceIDs) > 0 {
			services = strings.Join(s.ServiceIDs, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Time, s.End.Format("15:04"), status, services)
	}
	return tw.Flush()
}
