package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/SanjayB2005/TaskManagement/internal/config"
	internal_http "github.com/SanjayB2005/TaskManagement/internal/http"
	"github.com/SanjayB2005/TaskManagement/internal/log"
	internal_storage "github.com/SanjayB2005/TaskManagement/internal/storage"
	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/SanjayB2005/TaskManagement/pkg/service"
	"github.com/SanjayB2005/TaskManagement/pkg/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// SetupCLI registers the kanban commands and their flags on rootCmd.
func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("db", "", "Database connection string (DATABASE_URL)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: postgres, sqlite3 or memory (DB_DRIVER)")
	rootCmd.PersistentFlags().Bool("migrate", false, "Apply schema migrations on startup (AUTO_MIGRATE)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the background timeout sweep",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := initStore(cfg)
			defer store.Close()
			// not bound to ctx: svc.Close stops the pool after the server drains
			svc := service.NewTaskService(context.Background(), store, log.GetLogger(), service.WithWorkers(cfg.Sweep.Workers))
			defer svc.Close()

			sweeper := service.NewSweeper(svc, cfg.Sweep.Interval, cfg.Sweep.ThresholdMinutes, log.GetLogger())
			go sweeper.Run(ctx)

			handler := internal_http.NewHandler(svc, cfg.Server.RequestTimeout)
			if err := internal_http.StartServer(ctx, cfg.Addr(), handler, cfg.Server.ShutdownTimeout); err != nil {
				log.GetLogger().Errorf("Server stopped: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "", "HTTP listen port (PORT)")
	serveCmd.Flags().Duration("interval", time.Minute, "Background sweep interval, 0 disables it (SWEEP_INTERVAL)")
	serveCmd.Flags().Int("threshold", service.DefaultThresholdMinutes, "Minutes On Progress before a task times out (SWEEP_THRESHOLD_MINUTES)")
	serveCmd.Flags().Int("workers", 0, "Parallel sweep writers, 0 means one per CPU (WORKERS)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			status, _ := cmd.Flags().GetString("status")
			query, _ := cmd.Flags().GetString("query")
			output, _ := cmd.Flags().GetString("output")

			store := initStore(cfg)
			defer store.Close()
			svc := service.NewTaskService(cmd.Context(), store, log.GetLogger())
			defer svc.Close()

			tasks, err := svc.ListTasks(cmd.Context(), service.Filter{Status: status, Query: query})
			if err != nil {
				fail("failed to list tasks", err)
			}
			if err := printTasks(tasks, output); err != nil {
				fail("failed to print tasks", err)
			}
		},
	}
	listCmd.Flags().String("status", "", "Only tasks in this status")
	listCmd.Flags().StringP("query", "q", "", "Case-insensitive search over title and description")
	listCmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one timeout sweep and print the summary",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(cfg)
			defer store.Close()
			svc := service.NewTaskService(cmd.Context(), store, log.GetLogger(), service.WithWorkers(cfg.Sweep.Workers))
			defer svc.Close()

			sweep, verb := svc.RunTimeoutSweep, "timed out"
			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				sweep, verb = svc.PreviewTimeoutSweep, "would time out"
			}
			summary, err := sweep(cmd.Context(), cfg.Sweep.ThresholdMinutes)
			if err != nil {
				fail("sweep failed", err)
			}
			fmt.Fprintf(os.Stdout, "Checked %d tasks, %d %s\n", summary.Checked, summary.TimedOut, verb)
			for _, id := range summary.TaskIDs {
				fmt.Fprintf(os.Stdout, "- %s\n", id)
			}
		},
	}
	sweepCmd.Flags().Int("threshold", service.DefaultThresholdMinutes, "Minutes On Progress before a task times out")
	sweepCmd.Flags().Int("workers", 0, "Parallel sweep writers, 0 means one per CPU")
	sweepCmd.Flags().Bool("dry-run", false, "Report what would time out without writing anything")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard counters",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(cfg)
			defer store.Close()
			svc := service.NewTaskService(cmd.Context(), store, log.GetLogger())
			defer svc.Close()

			stats, err := svc.Stats(cmd.Context())
			if err != nil {
				fail("failed to compute stats", err)
			}
			fmt.Fprintf(os.Stdout, "Total: %d\nActive: %d\nCompleted: %d\nTimed out: %d\nExpired: %d\n",
				stats.Total, stats.Active, stats.Completed, stats.TimedOut, stats.Expired)
		},
	}

	rootCmd.AddCommand(serveCmd, listCmd, sweepCmd, statsCmd)
}

func printTasks(tasks []models.Task, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(tasks)
	case "table":
		if len(tasks) == 0 {
			fmt.Fprintln(os.Stdout, "No tasks found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tDEADLINE\tDURATION")
		for _, t := range tasks {
			deadline := "-"
			if t.Deadline != nil {
				deadline = *t.Deadline
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dm\n", t.ID, t.Title, t.Status, deadline, t.Duration)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)
	log.GetLogger().Debugf("Running %s with driver %s", cmd.Name(), cfg.Database.Driver)
	return cfg
}

func initStore(cfg *config.Config) storage.Store {
	store, err := internal_storage.InitStore(cfg.Database.Driver, cfg.Database.URL, cfg.Database.AutoMigrate)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}

func fail(msg string, err error) {
	log.GetLogger().Errorf("%s: %v", msg, err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
