package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leads/postback/internal/app"
	"github.com/leads/postback/internal/config"
	"github.com/leads/postback/internal/domain"
	"github.com/leads/postback/internal/logger"
	"github.com/leads/postback/internal/rotation"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "postbackctl",
		Short:         "Run ledger rotation jobs by hand",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(jobCmd(rotation.UploadJobName, "upload", "Archive a day's ledger to object storage"))
	rootCmd.AddCommand(jobCmd(rotation.DispatchJobName, "dispatch", "Send a day's ledger to the chat"))
	rootCmd.AddCommand(jobCmd(rotation.RetentionJobName, "prune", "Delete ledgers older than the retention window"))
	rootCmd.AddCommand(jobsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func jobCmd(job, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Without --date the job works on the same day the scheduler would pick at
this moment. A job that already succeeded for that day is skipped unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			force, _ := cmd.Flags().GetBool("force")
			return runJob(cmd.Context(), job, date, force)
		},
	}

	cmd.Flags().StringP("date", "d", "", "Ledger day as DD.MM.YYYY")
	cmd.Flags().BoolP("force", "f", false, "Run even if the job already succeeded for the day")

	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show recent job runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("job")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.JobRuns.List(cmd.Context(), name, limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Printf("%-10s %s  %-9s %s  %s\n",
					r.Job, r.Day, r.Status, r.StartedAt.In(a.Config.Location).Format(domain.TimestampLayout), r.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringP("job", "j", "", "Only show runs of this job")
	cmd.Flags().IntP("limit", "n", 20, "Maximum runs")

	return cmd
}

func open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	return app.Build(ctx, cfg, log)
}

func runJob(ctx context.Context, name, date string, force bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	job, ok := a.Jobs[name]
	if !ok {
		return fmt.Errorf("%s is not configured", name)
	}

	day, err := resolveDay(job, date, a.Config.Now(), a.Config.Location)
	if err != nil {
		return err
	}

	status, err := a.Runner.Run(ctx, job, day, force)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %s\n", name, day.Format(domain.DayLayout), status)
	return nil
}

func resolveDay(job rotation.Job, date string, now time.Time, loc *time.Location) (time.Time, error) {
	if date == "" {
		return job.Day(now), nil
	}
	day, err := time.ParseInLocation(domain.DayLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected DD.MM.YYYY", date)
	}
	return day, nil
}
