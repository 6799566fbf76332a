package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.ConsultationFee,
		&d.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func (p *PgDirectory) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, specialization, consultation_fee, is_active
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (p *PgDirectory) DoctorsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Doctor, error) {
	ids = uniqueIDs(ids)
	result := make(map[uuid.UUID]Doctor, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, name, specialization, consultation_fee, is_active
		FROM doctors
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result[d.ID] = *d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (p *PgDirectory) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	ids = uniqueIDs(ids)
	result := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := p.pool.Query(ctx, `SELECT id, username FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		result[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
