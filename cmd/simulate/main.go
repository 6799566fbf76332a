package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-booking-scheduling/internal/auth"
	"github.com/hackgods/clinic-booking-scheduling/internal/config"
	"github.com/hackgods/clinic-booking-scheduling/internal/db"
	"github.com/hackgods/clinic-booking-scheduling/internal/observability"
)

type SimConfig struct {
	APIBaseURL string
	Rounds     int
	Contenders int
	DaysAhead  int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return p50, p95, latencies[len(latencies)-1]
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	tokens   []string
	doctorID uuid.UUID
	date     string
	metrics  OperationMetrics
	winners  []int64
	log      zerolog.Logger
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Race concurrent patients for the same doctor slots and verify no slot is double booked",
		RunE:  runSimulate,
	}
	rootCmd.Flags().String("api", "http://localhost:8080", "API base URL")
	rootCmd.Flags().Int("rounds", 20, "number of distinct slots to contend for")
	rootCmd.Flags().Int("contenders", 25, "concurrent patients per slot")
	rootCmd.Flags().Int("days-ahead", 1, "book this many days after today")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	simCfg := SimConfig{}
	simCfg.APIBaseURL, _ = cmd.Flags().GetString("api")
	simCfg.Rounds, _ = cmd.Flags().GetInt("rounds")
	simCfg.Contenders, _ = cmd.Flags().GetInt("contenders")
	simCfg.DaysAhead, _ = cmd.Flags().GetInt("days-ahead")
	if simCfg.Rounds < 1 || simCfg.Contenders < 2 {
		return fmt.Errorf("need at least 1 round and 2 contenders")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger("simulate", cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	doctorID, patients, err := loadParticipants(ctx, pool, simCfg.Contenders)
	if err != nil {
		return err
	}

	manager := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	tokens := make([]string, 0, len(patients))
	for _, id := range patients {
		token, err := manager.Issue(auth.Actor{ID: id, Role: auth.RolePatient})
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		tokens = append(tokens, token)
	}

	sim := &Simulator{
		config:   simCfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		tokens:   tokens,
		doctorID: doctorID,
		date:     time.Now().In(cfg.Location).AddDate(0, 0, simCfg.DaysAhead).Format(time.DateOnly),
		winners:  make([]int64, simCfg.Rounds),
		log:      logger,
	}

	logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("date", sim.date).
		Int("rounds", simCfg.Rounds).
		Int("contenders", len(tokens)).
		Msg("simulation starting")

	if err := sim.Run(ctx); err != nil {
		return err
	}

	duplicates, err := countDuplicateSlots(ctx, pool)
	if err != nil {
		return fmt.Errorf("verify slots: %w", err)
	}

	sim.Report(duplicates)
	if duplicates > 0 {
		return fmt.Errorf("%d slots hold more than one active appointment", duplicates)
	}
	return nil
}

func loadParticipants(ctx context.Context, pool *pgxpool.Pool, contenders int) (uuid.UUID, []uuid.UUID, error) {
	var doctorID uuid.UUID
	err := pool.QueryRow(ctx, `
		SELECT id FROM doctors WHERE is_active ORDER BY created_at LIMIT 1
	`).Scan(&doctorID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("load doctor (run seed first): %w", err)
	}

	rows, err := pool.Query(ctx, `
		SELECT id FROM users WHERE role = 'patient' ORDER BY random() LIMIT $1
	`, contenders)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	var patients []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return uuid.Nil, nil, err
		}
		patients = append(patients, id)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, nil, err
	}
	if len(patients) < 2 {
		return uuid.Nil, nil, fmt.Errorf("need at least 2 patients, found %d", len(patients))
	}
	return doctorID, patients, nil
}

// Run fires every contender at each slot at once, one slot per round.
func (s *Simulator) Run(ctx context.Context) error {
	start := time.Now().Truncate(24 * time.Hour).Add(9 * time.Hour)

	for round := 0; round < s.config.Rounds; round++ {
		slot := start.Add(time.Duration(round) * 15 * time.Minute).Format("03:04 PM")

		g, gctx := errgroup.WithContext(ctx)
		gate := make(chan struct{})
		for _, token := range s.tokens {
			g.Go(func() error {
				<-gate
				return s.book(gctx, round, token, slot)
			})
		}
		close(gate)
		if err := g.Wait(); err != nil {
			return err
		}

		s.log.Debug().Str("slot", slot).Int64("winners", s.winners[round]).Msg("round complete")
	}
	return nil
}

func (s *Simulator) book(ctx context.Context, round int, token, slot string) error {
	body, err := json.Marshal(map[string]string{
		"doctor_id":        s.doctorID.String(),
		"appointment_date": s.date,
		"time_slot":        slot,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)
	if err != nil {
		s.metrics.Record(latency, false, false)
		s.log.Warn().Err(err).Msg("request failed")
		return nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&s.winners[round], 1)
		s.metrics.Record(latency, true, false)
	case http.StatusConflict:
		s.metrics.Record(latency, false, true)
	default:
		s.metrics.Record(latency, false, false)
		s.log.Warn().Int("status", resp.StatusCode).Str("slot", slot).Msg("unexpected response")
	}
	return nil
}

func countDuplicateSlots(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT doctor_id, appointment_date, time_slot
			FROM appointments
			WHERE status IN ('pending', 'confirmed')
			GROUP BY doctor_id, appointment_date, time_slot
			HAVING COUNT(*) > 1
		) dup
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Report(duplicates int) {
	p50, p95, maxLatency := s.metrics.Percentiles()

	contested := 0
	for _, w := range s.winners {
		if w > 1 {
			contested++
		}
	}

	s.log.Info().
		Int64("requests", atomic.LoadInt64(&s.metrics.Total)).
		Int64("booked", atomic.LoadInt64(&s.metrics.Success)).
		Int64("conflicts", atomic.LoadInt64(&s.metrics.Conflict)).
		Int64("errors", atomic.LoadInt64(&s.metrics.Error)).
		Dur("p50", p50).
		Dur("p95", p95).
		Dur("max", maxLatency).
		Int("rounds_with_multiple_winners", contested).
		Int("duplicate_active_slots", duplicates).
		Msg("simulation finished")
}
