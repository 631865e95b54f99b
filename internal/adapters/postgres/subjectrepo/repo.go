package subjectrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/fieldtrace/presence-api/internal/adapters/postgres"
	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

// Repo is a Postgres implementation of subjectrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, s subjectrepo.Subject) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subjects (id, name, email, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		string(s.ID),
		s.Name,
		s.Email,
		string(s.Role),
		s.Active,
		s.CreatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "subjects_email_unique":
				return subjectrepo.ErrEmailInUse
			case "subjects_pkey":
				return subjectrepo.ErrAlreadyExists
			default:
				return err
			}
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.SubjectID) (subjectrepo.Subject, error) {
	if r.pool == nil {
		return subjectrepo.Subject{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, selectSubject+` WHERE id = $1`, string(id))
	return scanSubject(row)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (subjectrepo.Subject, error) {
	if r.pool == nil {
		return subjectrepo.Subject{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, selectSubject+` WHERE email = $1`, email)
	return scanSubject(row)
}

func (r *Repo) List(ctx context.Context, role domain.Role) ([]subjectrepo.Subject, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	where := ""
	args := []any{}
	if role != "" {
		where = "WHERE role = $1"
		args = append(args, string(role))
	}

	rows, err := r.pool.Query(ctx, selectSubject+`
		`+where+`
		ORDER BY lower(name) ASC, id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]subjectrepo.Subject, 0)
	for rows.Next() {
		s, err := scanSubject(rows)
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

const selectSubject = `
	SELECT id, name, email, role, is_active, created_at
	FROM subjects
`

func scanSubject(row interface {
	Scan(dest ...any) error
}) (subjectrepo.Subject, error) {
	var (
		id        string
		name      string
		email     string
		role      string
		isActive  bool
		createdAt time.Time
	)
	if err := row.Scan(&id, &name, &email, &role, &isActive, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return subjectrepo.Subject{}, subjectrepo.ErrNotFound
		}
		return subjectrepo.Subject{}, err
	}
	return subjectrepo.Subject{
		ID:        domain.SubjectID(id),
		Name:      name,
		Email:     email,
		Role:      domain.Role(role),
		Active:    isActive,
		CreatedAt: createdAt.UTC(),
	}, nil
}
