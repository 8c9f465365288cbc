// xranking scrapes X.com for video posts, ranks them by engagement, and
// replies to the top-ranked posts with their current ranking position.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siomako12099999999999999999/XRANKING/internal/app"
	"github.com/siomako12099999999999999999/XRANKING/internal/config"
	"github.com/siomako12099999999999999999/XRANKING/internal/scheduler"
	"github.com/siomako12099999999999999999/XRANKING/internal/store"
)

var verbose bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setup opens the store and builds the App. The caller closes the store.
func setup() (*app.App, *store.Store, *config.Config, error) {
	cfg := config.LoadOrDefault()

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	return app.New(cfg, st, newLogger()), st, cfg, nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xranking",
		Short:         "Scrape X video posts, rank them, and reply with their ranking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		searchCmd(),
		refreshCmd(),
		replyCmd(),
		flushCmd(),
		serveCmd(),
		loginCmd(),
		dbcheckCmd(),
	)
	return root
}

func searchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Scrape video posts matching a keyword and store them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, st, _, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := a.RunIngestion(cmd.Context(), args[0], limit)
			fmt.Printf("ingested: %d succeeded, %d failed, %d pending\n",
				counts.Succeeded, counts.Failed, counts.Pending)
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum posts to ingest (0 = config default)")
	return cmd
}

func refreshCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Revisit stored posts and refresh their engagement metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, st, _, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := a.RunRefresh(cmd.Context(), all)
			fmt.Printf("refreshed: %d succeeded, %d failed, %d pending\n",
				counts.Succeeded, counts.Failed, counts.Pending)
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also re-resolve media URLs and author fields")
	return cmd
}

func replyCmd() *cobra.Command {
	var appURL string
	var testMode bool

	cmd := &cobra.Command{
		Use:   "reply",
		Short: "Reply to the top-ranked posts with their ranking position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, st, _, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			sum, err := a.RunRankingReplies(cmd.Context(), appURL, testMode)
			fmt.Printf("replies: %d succeeded, %d failed\n", sum.Succeeded, sum.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&appURL, "url", "", "application URL included in each reply (default from config)")
	cmd.Flags().BoolVar(&testMode, "test", false, "compose but never submit replies")
	return cmd
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Retry persisting records left over from earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, st, _, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := a.FlushPending(cmd.Context())
			fmt.Printf("flushed: %d succeeded, %d pending\n", counts.Succeeded, counts.Pending)
			return err
		},
	}
}

func serveCmd() *cobra.Command {
	var testMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled ingestion and reply jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, st, cfg, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			if cfg.Schedule.IngestKeyword == "" {
				return fmt.Errorf("schedule.ingest_keyword is not configured")
			}

			sched, err := scheduler.New(cfg.Schedule.Timezone, newLogger())
			if err != nil {
				return err
			}

			err = sched.AddIngestJob(cfg.Schedule.IngestEveryHours, func(ctx context.Context) error {
				_, err := a.RunIngestion(ctx, cfg.Schedule.IngestKeyword, 0)
				return err
			})
			if err != nil {
				return err
			}

			if cfg.Schedule.ReplyAt != "" {
				err = sched.AddReplyJob(cfg.Schedule.ReplyAt, func(ctx context.Context) error {
					_, err := a.RunRankingReplies(ctx, "", testMode)
					return err
				})
				if err != nil {
					return err
				}
			}

			sched.Start()
			for _, job := range sched.ListJobs() {
				fmt.Printf("scheduled %s, next run %s\n", job.Name, job.NextRun)
			}

			<-cmd.Context().Done()
			<-sched.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&testMode, "test", false, "scheduled reply runs compose but never submit")
	return cmd
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to X and store the session cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, st, _, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := a.Login(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("logged in, session cookies stored")
			return nil
		},
	}
}

func dbcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dbcheck",
		Short: "Verify the database with an insert/read/delete round trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, st, cfg, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := a.CheckDatabase(cmd.Context()); err != nil {
				return err
			}
			dbPath, _ := cfg.DatabasePath()
			fmt.Printf("database ok: %s\n", dbPath)
			return nil
		},
	}
}
