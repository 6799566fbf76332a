package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking-scheduling/internal/api"
	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
	"github.com/hackgods/clinic-booking-scheduling/internal/config"
	"github.com/hackgods/clinic-booking-scheduling/internal/db"
	"github.com/hackgods/clinic-booking-scheduling/internal/directory"
	"github.com/hackgods/clinic-booking-scheduling/internal/observability"
	"github.com/hackgods/clinic-booking-scheduling/internal/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stats-report",
		Short: "Print clinic dashboard and monthly statistics as JSON",
	}

	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(monthlyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Compute the dashboard snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("as-of")
			asOf := time.Now()
			if raw != "" {
				parsed, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return fmt.Errorf("--as-of must be RFC3339: %w", err)
				}
				asOf = parsed
			}

			return withEngine(cmd.Context(), func(ctx context.Context, engine *stats.Engine) error {
				snap, err := engine.ComputeDashboard(ctx, asOf)
				if err != nil {
					return err
				}
				return printJSON(api.NewDashboardResponse(snap))
			})
		},
	}
	cmd.Flags().String("as-of", "", "reference instant (RFC3339), defaults to now")
	return cmd
}

func monthlyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Compute the per-month series for a calendar year",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")

			return withEngine(cmd.Context(), func(ctx context.Context, engine *stats.Engine) error {
				series, err := engine.ComputeMonthly(ctx, year)
				if err != nil {
					return err
				}
				return printJSON(api.NewMonthlyResponse(series))
			})
		},
	}
	cmd.Flags().Int("year", time.Now().Year(), "calendar year")
	return cmd
}

// withEngine wires a read-only stats engine straight onto Postgres. The
// report runs once, so names are resolved without the Redis cache.
func withEngine(parent context.Context, fn func(context.Context, *stats.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger("stats-report", cfg.Env, cfg.LogLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	engine := newEngine(pool, cfg, logger)
	if err := fn(ctx, engine); err != nil {
		logger.Error().Err(err).Msg("report failed")
		return err
	}
	return nil
}

func newEngine(pool *pgxpool.Pool, cfg config.Config, logger zerolog.Logger) *stats.Engine {
	dir := directory.NewPgDirectory(pool)
	source := stats.NewPgSource(pool, booking.NewPgRepository(pool))
	return stats.NewEngine(source, dir, dir, cfg.Location, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
