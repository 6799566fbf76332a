package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking-scheduling/internal/auth"
	"github.com/hackgods/clinic-booking-scheduling/internal/config"
	"github.com/hackgods/clinic-booking-scheduling/internal/db"
	"github.com/hackgods/clinic-booking-scheduling/internal/observability"
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the clinic database with fake users and doctors",
		RunE:  runSeed,
	}
	rootCmd.Flags().Int("patients", 2000, "number of patient accounts")
	rootCmd.Flags().Int("staff", 5, "number of staff accounts")
	rootCmd.Flags().Int("doctors", 50, "number of doctors")
	rootCmd.Flags().Bool("print-token", false, "print a bearer token for the first staff account")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	patients, _ := cmd.Flags().GetInt("patients")
	staff, _ := cmd.Flags().GetInt("staff")
	doctors, _ := cmd.Flags().GetInt("doctors")
	printToken, _ := cmd.Flags().GetBool("print-token")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger("seed", cfg.Env, cfg.LogLevel)
	logger.Info().Int("patients", patients).Int("staff", staff).Int("doctors", doctors).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	ctx = context.Background()
	if _, err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := seedDoctors(ctx, pool, logger, doctors); err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}
	if _, err := seedUsers(ctx, pool, logger, auth.RolePatient, patients); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	staffIDs, err := seedUsers(ctx, pool, logger, auth.RoleStaff, staff)
	if err != nil {
		return fmt.Errorf("seed staff: %w", err)
	}

	if printToken && len(staffIDs) > 0 {
		tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
		token, err := tokens.Issue(auth.Actor{ID: staffIDs[0], Role: auth.RoleStaff})
		if err != nil {
			return fmt.Errorf("issue staff token: %w", err)
		}
		fmt.Println(token)
	}

	logger.Info().Msg("seed complete")
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, count int) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		fee := decimal.NewFromFloat(gofakeit.Price(200, 2000)).Round(2)
		// roughly one in ten doctors is not taking bookings
		active := gofakeit.Number(1, 10) > 1

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, department, consultation_fee, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, uuid.New(), "Dr. "+gofakeit.Name(), spec, spec, fee.String(), active)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, role auth.Role, count int) ([]uuid.UUID, error) {
	logger.Info().Str("role", string(role)).Int("count", count).Msg("seeding users")

	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, username, email, role, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, gofakeit.Username(), gofakeit.Email(), string(role))
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		logger.Info().Str("role", string(role)).Msgf("users seeded: %d/%d", end, count)
	}

	return ids, nil
}
