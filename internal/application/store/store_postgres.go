package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"onboard/internal/application/models"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// schemaLockID serializes schema creation across replicas starting together.
const schemaLockID = 7_310_442

// EnsureSchema creates the applications table when it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	return tx.RunInTx(ctx, db, func(ctx context.Context) error {
		conn := tx.Conn(ctx, db)
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
			return fmt.Errorf("lock applications schema: %w", err)
		}
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("ensure applications schema: %w", err)
		}
		return nil
	})
}

// PostgresStore persists applications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `
	id, full_name, email_address, signature_base64, id_card_filepath,
	certificate_subject_name, certificate_issuer_name, certificate_serial_number,
	certificate_valid_from, certificate_valid_to,
	certificate_subject_attributes, certificate_issuer_attributes, created_at`

// Insert stores sub and returns the generated identifier.
func (s *PostgresStore) Insert(ctx context.Context, sub models.Submission) (int64, error) {
	query := `
		INSERT INTO applications (
			full_name, email_address, signature_base64, id_card_filepath,
			certificate_subject_name, certificate_issuer_name, certificate_serial_number,
			certificate_valid_from, certificate_valid_to,
			certificate_subject_attributes, certificate_issuer_attributes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	var id int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		sub.FullName,
		sub.EmailAddress,
		sub.SignatureBase64,
		sub.IDCardPath,
		sub.SubjectCN,
		sub.IssuerCN,
		sub.SerialNumber,
		sub.ValidFrom,
		sub.ValidTo,
		pq.Array(nonNil(sub.SubjectAttributes)),
		pq.Array(nonNil(sub.IssuerAttributes)),
	).Scan(&id)
	if err != nil {
		return 0, classify("insert application", err)
	}
	return id, nil
}

// FindByID loads one application. Missing rows yield sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Application, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+selectColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, classify("find application by id", err)
	}
	return app, nil
}

// ListRecent returns up to limit applications, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.Application, error) {
	if limit <= 0 {
		return []*models.Application{}, nil
	}
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+selectColumns+` FROM applications ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify("list applications", err)
	}
	defer rows.Close()

	apps := make([]*models.Application, 0, limit)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate applications", err)
	}
	return apps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*models.Application, error) {
	var app models.Application
	err := row.Scan(
		&app.ID,
		&app.FullName,
		&app.EmailAddress,
		&app.SignatureBase64,
		&app.IDCardPath,
		&app.SubjectCN,
		&app.IssuerCN,
		&app.SerialNumber,
		&app.ValidFrom,
		&app.ValidTo,
		pq.Array(&app.SubjectAttributes),
		pq.Array(&app.IssuerAttributes),
		&app.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// classify tags driver errors with the sentinel that describes them so the
// service layer never imports lib/pq.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrConflict, err)
		case "08", "53", "57":
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
