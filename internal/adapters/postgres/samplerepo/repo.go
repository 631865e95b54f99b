package samplerepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/fieldtrace/presence-api/internal/adapters/postgres"
	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
)

// Repo is a Postgres implementation of samplerepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Append(ctx context.Context, s samplerepo.Sample) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO location_samples (
			id, subject_id, latitude, longitude, accuracy, address, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		string(s.ID),
		string(s.SubjectID),
		s.Latitude,
		s.Longitude,
		s.Accuracy,
		s.Address,
		s.RecordedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok {
			switch pe.Code {
			case postgres.UniqueViolationCode:
				return samplerepo.ErrAlreadyExists
			case postgres.ForeignKeyViolationCode:
				return samplerepo.ErrUnknownSubject
			}
		}
		return err
	}
	return nil
}

func (r *Repo) ListBySubject(ctx context.Context, id domain.SubjectID, limit int) ([]samplerepo.Sample, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	q := selectSample + `
		WHERE subject_id = $1
		ORDER BY recorded_at DESC, id DESC
	`
	args := []any{string(id)}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSamples(rows)
}

func (r *Repo) LatestPerSubject(ctx context.Context) (map[domain.SubjectID]samplerepo.Sample, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (subject_id)
			id, subject_id, latitude, longitude, accuracy, address, recorded_at
		FROM location_samples
		ORDER BY subject_id, recorded_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLatest(rows)
}

func (r *Repo) LatestPerSubjectSince(ctx context.Context, cutoff time.Time) (map[domain.SubjectID]samplerepo.Sample, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	// Strict comparison: a sample recorded exactly at the cutoff is out.
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (subject_id)
			id, subject_id, latitude, longitude, accuracy, address, recorded_at
		FROM location_samples
		WHERE recorded_at > $1
		ORDER BY subject_id, recorded_at DESC, id DESC
	`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLatest(rows)
}

const selectSample = `
	SELECT id, subject_id, latitude, longitude, accuracy, address, recorded_at
	FROM location_samples
`

func scanSample(row interface {
	Scan(dest ...any) error
}) (samplerepo.Sample, error) {
	var (
		id         string
		subjectID  string
		latitude   float64
		longitude  float64
		accuracy   *float64
		address    *string
		recordedAt time.Time
	)
	if err := row.Scan(&id, &subjectID, &latitude, &longitude, &accuracy, &address, &recordedAt); err != nil {
		return samplerepo.Sample{}, err
	}
	return samplerepo.Sample{
		ID:         domain.SampleID(id),
		SubjectID:  domain.SubjectID(subjectID),
		Latitude:   latitude,
		Longitude:  longitude,
		Accuracy:   accuracy,
		Address:    address,
		RecordedAt: recordedAt.UTC(),
	}, nil
}

func collectSamples(rows pgx.Rows) ([]samplerepo.Sample, error) {
	out := make([]samplerepo.Sample, 0)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func collectLatest(rows pgx.Rows) (map[domain.SubjectID]samplerepo.Sample, error) {
	out := make(map[domain.SubjectID]samplerepo.Sample)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out[s.SubjectID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
