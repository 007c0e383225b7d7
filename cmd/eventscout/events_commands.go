package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"eventscout/internal/api"
	"eventscout/internal/config"
	"eventscout/internal/daemonrun"
	"eventscout/internal/events"
	"eventscout/internal/ingestion"
	"eventscout/internal/services"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Query, ingest, verify, and prune stored events",
	}

	eventsCmd.AddCommand(newEventsListCommand(ctx))
	eventsCmd.AddCommand(newEventsSyncCommand(ctx))
	eventsCmd.AddCommand(newEventsVerifyCommand(ctx))
	eventsCmd.AddCommand(newEventsPruneCommand(ctx))

	return eventsCmd
}

func newEventsListCommand(ctx *commandContext) *cobra.Command {
	var filter events.Filter
	var eventType string
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored events with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			filter.Type = events.Type(strings.ToLower(strings.TrimSpace(eventType)))
			return ctx.withComponents(func(_ *config.Config, c *daemonrun.Components) error {
				svc := api.NewEventService(c.Store, nil, nil)
				page, err := svc.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if format != outputTable {
					return writeStructured(cmd, format, page)
				}
				printEventPage(cmd.OutOrStdout(), page)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&eventType, "type", "t", "", "Filter by type (expo or concert)")
	cmd.Flags().StringVar(&filter.City, "city", "", "Filter by exact city")
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "Case-insensitive match on title, venue, or address")
	cmd.Flags().StringVar(&filter.From, "from", "", "Events still running on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.To, "to", "", "Events starting on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", events.DefaultPageSize, "Results per page")
	addOutputFlag(cmd, &output)
	return cmd
}

func newEventsSyncCommand(ctx *commandContext) *cobra.Command {
	var city string
	var date string
	var weeks int
	var output string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch, verify, and store events for a city",
		Long: "Fetch, verify, and store events for a city.\n\n" +
			"Without --weeks a single target date is processed (today by default).\n" +
			"With --weeks N the target date and the following N-1 weeks are processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			return ctx.withComponents(func(cfg *config.Config, c *daemonrun.Components) error {
				runCtx := services.WithTrigger(cmd.Context(), ingestion.TriggerCLI)
				if weeks <= 1 {
					svc := api.NewEventService(c.Store, c.Orchestrator, c.Verifier,
						api.WithDefaultCity(cfg.Ingest.DefaultCity),
						api.WithLocation(cfg.Location()),
					)
					resp, err := svc.Sync(runCtx, api.SyncRequest{City: city, TargetDate: date})
					if err != nil {
						return err
					}
					if format != outputTable {
						return writeStructured(cmd, format, resp)
					}
					printSyncResponse(cmd.OutOrStdout(), resp)
					return nil
				}

				target, cityName, err := resolveSyncTarget(cfg, city, date)
				if err != nil {
					return err
				}
				result, err := c.Orchestrator.Sync(runCtx, cityName, ingestion.WindowDates(target, weeks))
				if err != nil {
					return err
				}
				if format != outputTable {
					return writeStructured(cmd, format, result)
				}
				printSyncResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "City to ingest (default: ingest.default_city)")
	cmd.Flags().StringVar(&date, "date", "", "Target date YYYY-MM-DD (default: today in ingest.timezone)")
	cmd.Flags().IntVar(&weeks, "weeks", 1, "Number of weekly target dates starting at --date")
	addOutputFlag(cmd, &output)
	return cmd
}

func newEventsVerifyCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "verify <id>...",
		Short: "Re-run verification for stored events without modifying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withComponents(func(_ *config.Config, c *daemonrun.Components) error {
				svc := api.NewEventService(c.Store, nil, c.Verifier)
				resp, err := svc.Verify(cmd.Context(), api.VerifyRequest{IDs: ids})
				if err != nil {
					return err
				}
				if format != outputTable {
					return writeStructured(cmd, format, resp)
				}
				rows := make([][]string, 0, len(resp.Results))
				for _, r := range resp.Results {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						yesNo(r.Verified),
						strconv.FormatFloat(r.Confidence, 'f', 2, 64),
						r.Reason,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Verified", "Confidence", "Reason"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func newEventsPruneCommand(ctx *commandContext) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete events whose last day is before a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			before = strings.TrimSpace(before)
			if before == "" {
				return fmt.Errorf("--before is required")
			}
			return ctx.withComponents(func(_ *config.Config, c *daemonrun.Components) error {
				removed, err := c.Store.Prune(cmd.Context(), before)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d event(s) that ended before %s\n", removed, before)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "Cutoff date YYYY-MM-DD (required)")
	return cmd
}

func resolveSyncTarget(cfg *config.Config, city, date string) (time.Time, string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		city = cfg.Ingest.DefaultCity
	}
	if city == "" {
		return time.Time{}, "", fmt.Errorf("--city is required when ingest.default_city is unset")
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return ingestion.Today(time.Now(), cfg.Location()), city, nil
	}
	target, err := ingestion.ParseDate(date, cfg.Location())
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", date)
	}
	return target, city, nil
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid event id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printEventPage(out io.Writer, page api.EventPage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No events found")
		return
	}
	rows := make([][]string, 0, len(page.Items))
	for _, ev := range page.Items {
		rows = append(rows, []string{
			strconv.FormatInt(ev.ID, 10),
			ev.Type,
			ev.Title,
			ev.City,
			events.Deref(ev.Venue),
			dateRange(ev.StartDate, ev.EndDate),
			events.Deref(ev.PriceRange),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"ID", "Type", "Title", "City", "Venue", "Dates", "Price"},
		rows,
		[]columnAlignment{alignRight},
	))
	fmt.Fprintf(out, "\nPage %d of %d (%d events)\n", page.Page, page.TotalPages, page.Total)
}

func printSyncResponse(out io.Writer, resp api.SyncResponse) {
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
		return
	}
	fmt.Fprintf(out, "%s %s: %d inserted, %d updated\n", resp.City, resp.TargetDate, resp.Inserted, resp.Updated)
}

func printSyncResult(out io.Writer, result ingestion.SyncResult) {
	rows := make([][]string, 0, len(result.Dates))
	for _, d := range result.Dates {
		rows = append(rows, []string{
			d.TargetDate,
			strconv.Itoa(d.Fetched),
			strconv.Itoa(d.Rejected),
			strconv.Itoa(d.Verified),
			d.Error,
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Target", "Fetched", "Rejected", "Verified", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "\n%s: %d inserted, %d updated\n", result.City, result.Inserted, result.Updated)
}

func dateRange(start string, end *string) string {
	if end == nil || *end == start {
		return start
	}
	return start + " → " + *end
}
