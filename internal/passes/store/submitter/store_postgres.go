package submitter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
	"mountpass/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists submitters in PostgreSQL. Calls join the
// transaction carried by ctx when there is one. A duplicate email on Create
// is reported without aborting the transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed submitter store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const submitterColumns = `id, email, fam, name, otc, phone`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submitter) error {
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO submitters (email, fam, name, otc, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
		RETURNING id`,
		sub.Email, sub.FamilyName, sub.GivenName, sub.Patronymic, sub.Phone,
	).Scan(&sub.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("create submitter %q: %w", sub.Email, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create submitter: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, sub *models.Submitter) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE submitters
		SET email = $2, fam = $3, name = $4, otc = $5, phone = $6
		WHERE id = $1`,
		sub.ID, sub.Email, sub.FamilyName, sub.GivenName, sub.Patronymic, sub.Phone,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update submitter: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("update submitter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submitter: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update submitter %d: %w", sub.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Submitter, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+submitterColumns+` FROM submitters WHERE id = $1`, id)
	sub, err := scanSubmitter(row)
	if err != nil {
		return nil, fmt.Errorf("find submitter by id: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Submitter, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+submitterColumns+` FROM submitters WHERE email = $1`, email)
	sub, err := scanSubmitter(row)
	if err != nil {
		return nil, fmt.Errorf("find submitter by email: %w", err)
	}
	return sub, nil
}

func scanSubmitter(row *sql.Row) (*models.Submitter, error) {
	var sub models.Submitter
	if err := row.Scan(&sub.ID, &sub.Email, &sub.FamilyName, &sub.GivenName, &sub.Patronymic, &sub.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
