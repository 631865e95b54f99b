package subjectrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqliteadapter "github.com/fieldtrace/presence-api/internal/adapters/sqlite"
	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

// Repo is a sqlite implementation of subjectrepo.Repository.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, s subjectrepo.Subject) error {
	if r.db == nil {
		return errors.New("nil sqlite handle")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects (id, name, email, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(s.ID),
		s.Name,
		s.Email,
		string(s.Role),
		s.Active,
		s.CreatedAt.UnixNano(),
	)
	if err != nil {
		switch {
		case sqliteadapter.IsPrimaryKeyConstraint(err):
			return subjectrepo.ErrAlreadyExists
		case sqliteadapter.IsUniqueConstraint(err):
			return subjectrepo.ErrEmailInUse
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.SubjectID) (subjectrepo.Subject, error) {
	if r.db == nil {
		return subjectrepo.Subject{}, errors.New("nil sqlite handle")
	}
	row := r.db.QueryRowContext(ctx, selectSubject+` WHERE id = ?`, string(id))
	return scanSubject(row)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (subjectrepo.Subject, error) {
	if r.db == nil {
		return subjectrepo.Subject{}, errors.New("nil sqlite handle")
	}
	row := r.db.QueryRowContext(ctx, selectSubject+` WHERE email = ?`, email)
	return scanSubject(row)
}

func (r *Repo) List(ctx context.Context, role domain.Role) ([]subjectrepo.Subject, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite handle")
	}
	where := ""
	args := []any{}
	if role != "" {
		where = "WHERE role = ?"
		args = append(args, string(role))
	}

	rows, err := r.db.QueryContext(ctx, selectSubject+`
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
		createdAt int64
	)
	if err := row.Scan(&id, &name, &email, &role, &isActive, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}
