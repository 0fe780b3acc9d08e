package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akolanti/ComplianceGPT/internal/adapter"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
	"github.com/akolanti/ComplianceGPT/internal/mcpServer"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Crawl the source site and ingest new or changed documents now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Scheduler.RunOnce(cmd.Context())
		if summary.StartedAt.IsZero() {
			return err
		}
		if flagJSON {
			if perr := printJSON(cmd.OutOrStdout(), summary); perr != nil {
				return perr
			}
			return err
		}
		printCycle(cmd.OutOrStdout(), summary)
		return err
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a compliance question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Rag.Answer(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("%s: %w", adapter.ToJobError(err, "").Message, err)
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), adapter.ToAnswerResponse(result, ""))
		}
		printAnswer(cmd.OutOrStdout(), result)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the update scheduler state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Scheduler.Load(cmd.Context()); err != nil {
			return err
		}
		res := adapter.ToUpdateStatusResponse(a.Scheduler.Status(cmd.Context()), time.Now())
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "phase:           %s\n", res.Phase)
		if res.LastSuccess != nil {
			fmt.Fprintf(w, "last success:    %s (%s ago)\n", res.LastSuccess.Format(time.RFC3339), res.TimeSinceLastSuccess)
		} else {
			fmt.Fprintln(w, "last success:    never")
		}
		fmt.Fprintf(w, "next scheduled:  %s\n", res.NextScheduledTime.Format(time.RFC3339))
		fmt.Fprintf(w, "interval:        %s\n", res.Interval)
		fmt.Fprintf(w, "documents added: %d\n", res.DocumentsAdded)
		if res.LastError != "" {
			fmt.Fprintf(w, "last error:      %s\n", res.LastError)
		}
		return nil
	},
}

var flagCategory string

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List tracked documents, or per-category counts with --stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if stats, _ := cmd.Flags().GetBool("stats"); stats {
			s, err := tracker.Stats(cmd.Context(), a.Tracker)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), adapter.ToDocumentStatsResponse(s))
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tTOTAL\tINGESTED\tPENDING\tFAILED\tCHUNKS")
			for _, c := range s {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", c.Category, c.Total, c.Ingested, c.Pending, c.Failed, c.Chunks)
			}
			return tw.Flush()
		}

		categories := documentModel.Categories
		if flagCategory != "" {
			c, err := documentModel.ParseCategory(flagCategory)
			if err != nil {
				return err
			}
			categories = []documentModel.Category{c}
		}
		var records []documentModel.DocumentRecord
		for _, c := range categories {
			found, err := a.Tracker.ListByCategory(cmd.Context(), c)
			if err != nil {
				return err
			}
			records = append(records, found...)
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), adapter.ToDocumentListResponse(records))
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCATEGORY\tSTATUS\tCHUNKS\tTITLE")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Category, r.Status, r.ChunkCount, r.DisplayName())
		}
		return tw.Flush()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// keeps the corpus fresh while the session lasts and serves trigger_update
		if err := a.Scheduler.Start(cmd.Context()); err != nil {
			return err
		}
		defer a.Scheduler.Wait()

		s, err := mcpServer.NewServer(&mcpServer.Ports{
			Answerer:  a.Rag,
			Scheduler: a.Scheduler,
			Tracker:   a.Tracker,
		})
		if err != nil {
			return err
		}
		return s.Run(cmd.Context())
	},
}

func init() {
	documentsCmd.Flags().StringVar(&flagCategory, "category", "", "regulation, circular, notification or guideline")
	documentsCmd.Flags().Bool("stats", false, "print per-category counts")
	rootCmd.AddCommand(updateCmd, askCmd, statusCmd, documentsCmd, mcpCmd)
}

func printCycle(w io.Writer, s schedulerModel.CycleSummary) {
	fmt.Fprintf(w, "cycle finished in %s\n", s.FinishedAt.Sub(s.StartedAt).Truncate(time.Millisecond))
	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tDISCOVERED\tNEW\tCHANGED\tUNCHANGED\tFAILED")
	for _, name := range names {
		c := s.Categories[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", name, c.Discovered, c.New, c.Changed, c.Unchanged, c.Failed)
	}
	tw.Flush()
	fmt.Fprintf(w, "ingested %d (repaired %d), failed %d, chunks written %d\n", s.Ingested, s.Repaired, s.IngestFailed, s.ChunksWritten)
}

func printAnswer(w io.Writer, r queryModel.QueryResult) {
	fmt.Fprintln(w, r.Answer)
	if len(r.Citations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, c := range r.Citations {
		fmt.Fprintf(w, "  [%d] %s, page %d", i+1, c.Source, c.Page)
		if c.SourceURL != "" {
			fmt.Fprintf(w, " (%s)", c.SourceURL)
		}
		fmt.Fprintln(w)
	}
}
