package samplerepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqliteadapter "github.com/fieldtrace/presence-api/internal/adapters/sqlite"
	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
)

// Repo is a sqlite implementation of samplerepo.Repository.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Append(ctx context.Context, s samplerepo.Sample) error {
	if r.db == nil {
		return errors.New("nil sqlite handle")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO location_samples (
			id, subject_id, latitude, longitude, accuracy, address, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(s.ID),
		string(s.SubjectID),
		s.Latitude,
		s.Longitude,
		s.Accuracy,
		s.Address,
		s.RecordedAt.UnixNano(),
	)
	if err != nil {
		switch {
		case sqliteadapter.IsPrimaryKeyConstraint(err):
			return samplerepo.ErrAlreadyExists
		case sqliteadapter.IsForeignKeyConstraint(err):
			return samplerepo.ErrUnknownSubject
		}
		return err
	}
	return nil
}

func (r *Repo) ListBySubject(ctx context.Context, id domain.SubjectID, limit int) ([]samplerepo.Sample, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite handle")
	}
	q := selectSample + `
		WHERE subject_id = ?
		ORDER BY recorded_at DESC, id DESC
	`
	args := []any{string(id)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSamples(rows)
}

func (r *Repo) LatestPerSubject(ctx context.Context) (map[domain.SubjectID]samplerepo.Sample, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite handle")
	}
	rows, err := r.db.QueryContext(ctx, latestSelect+`
		WHERE NOT EXISTS (`+newerExists+`)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLatest(rows)
}

func (r *Repo) LatestPerSubjectSince(ctx context.Context, cutoff time.Time) (map[domain.SubjectID]samplerepo.Sample, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite handle")
	}
	// Strict comparison: a sample recorded exactly at the cutoff is out.
	rows, err := r.db.QueryContext(ctx, latestSelect+`
		WHERE s.recorded_at > ?
		  AND NOT EXISTS (`+newerExists+`)
	`, cutoff.UnixNano())
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

const latestSelect = `
	SELECT s.id, s.subject_id, s.latitude, s.longitude, s.accuracy, s.address, s.recorded_at
	FROM location_samples s
`

// newerExists matches any row for the same subject that beats s as "latest":
// later recorded_at, or equal recorded_at with a greater id.
const newerExists = `
	SELECT 1 FROM location_samples n
	WHERE n.subject_id = s.subject_id
	  AND (n.recorded_at > s.recorded_at
	       OR (n.recorded_at = s.recorded_at AND n.id > s.id))
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
		recordedAt int64
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
		RecordedAt: time.Unix(0, recordedAt).UTC(),
	}, nil
}

func collectSamples(rows *sql.Rows) ([]samplerepo.Sample, error) {
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

func collectLatest(rows *sql.Rows) (map[domain.SubjectID]samplerepo.Sample, error) {
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
