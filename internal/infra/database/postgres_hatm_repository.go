// internal/infra/database/postgres_hatm_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hatm_bot/internal/domain/hatm"
)

type PostgresHatmRepository struct {
	db *sql.DB
}

func NewPostgresHatmRepository(db *sql.DB) *PostgresHatmRepository {
	return &PostgresHatmRepository{db: db}
}

const hatmColumns = `id, group_id, duration_days, participants_count, status, started_at, ends_at, created_at`

func scanHatm(row interface{ Scan(...any) error }) (*hatm.Hatm, error) {
	h := &hatm.Hatm{}
	err := row.Scan(&h.ID, &h.GroupID, &h.DurationDays, &h.ParticipantsCount, &h.Status, &h.StartedAt, &h.EndsAt, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// --- Hatm methods ---

func (r *PostgresHatmRepository) Create(ctx context.Context, h *hatm.Hatm) error {
	query := `INSERT INTO hatms (group_id, duration_days, participants_count, status)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, h.GroupID, h.DurationDays, h.ParticipantsCount, h.Status).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating hatm: %w", err)
	}
	return nil
}

func (r *PostgresHatmRepository) GetByID(ctx context.Context, id int64) (*hatm.Hatm, error) {
	query := `SELECT ` + hatmColumns + ` FROM hatms WHERE id = $1`
	h, err := scanHatm(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHatmNotFound
		}
		return nil, fmt.Errorf("error getting hatm by ID: %w", err)
	}
	return h, nil
}

func (r *PostgresHatmRepository) ListByGroup(ctx context.Context, groupID int64) ([]*hatm.Hatm, error) {
	query := `SELECT ` + hatmColumns + ` FROM hatms WHERE group_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing hatms by group: %w", err)
	}
	defer rows.Close()
	return scanHatms(rows)
}

func (r *PostgresHatmRepository) GetActiveByGroup(ctx context.Context, groupID int64) (*hatm.Hatm, error) {
	query := `SELECT ` + hatmColumns + ` FROM hatms WHERE group_id = $1 AND status = $2 LIMIT 1`
	h, err := scanHatm(r.db.QueryRowContext(ctx, query, groupID, hatm.StatusActive))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHatmNotFound
		}
		return nil, fmt.Errorf("error getting active hatm by group: %w", err)
	}
	return h, nil
}

func (r *PostgresHatmRepository) ListActiveEndingBefore(ctx context.Context, before time.Time) ([]*hatm.Hatm, error) {
	query := `SELECT ` + hatmColumns + ` FROM hatms
               WHERE status = $1 AND ends_at IS NOT NULL AND ends_at < $2
               ORDER BY ends_at ASC`
	rows, err := r.db.QueryContext(ctx, query, hatm.StatusActive, before)
	if err != nil {
		return nil, fmt.Errorf("error listing active hatms ending before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanHatms(rows)
}

func scanHatms(rows *sql.Rows) ([]*hatm.Hatm, error) {
	hatms := make([]*hatm.Hatm, 0)
	for rows.Next() {
		h, err := scanHatm(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning hatm row: %w", err)
		}
		hatms = append(hatms, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hatm rows: %w", err)
	}
	return hatms, nil
}

// Start activates the hatm and inserts the full assignment batch in one
// transaction.
func (r *PostgresHatmRepository) Start(ctx context.Context, h *hatm.Hatm, assignments []*hatm.JuzAssignment) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for hatm start: %w", err)
	}
	defer txn.Rollback()

	res, err := txn.ExecContext(ctx,
		`UPDATE hatms SET status = $1, started_at = $2, ends_at = $3 WHERE id = $4 AND status = $5`,
		h.Status, h.StartedAt, h.EndsAt, h.ID, hatm.StatusPending)
	if err != nil {
		return fmt.Errorf("error activating hatm %d: %w", h.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking hatm activation: %w", err)
	}
	if affected == 0 {
		return ErrHatmNotFound
	}

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO juz_assignments (hatm_id, user_id, juz_number, status, is_debt)
                                         VALUES ($1, $2, $3, $4, FALSE)
                                         RETURNING id`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for assignment batch: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if err := stmt.QueryRowContext(ctx, a.HatmID, a.UserID, a.JuzNumber, a.Status).Scan(&a.ID); err != nil {
			return fmt.Errorf("error inserting assignment (hatm %d, juz %d): %w", a.HatmID, a.JuzNumber, err)
		}
	}

	return txn.Commit()
}

// ClaimForNewMember binds unassigned juzs to userID inside one transaction.
// The FOR UPDATE lock on the hatm row serializes concurrent claims, so the
// distinct-owner count read below cannot go stale before the binding.
func (r *PostgresHatmRepository) ClaimForNewMember(ctx context.Context, hatmID, userID int64) ([]*hatm.JuzAssignment, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for juz claim: %w", err)
	}
	defer txn.Rollback()

	h, err := scanHatm(txn.QueryRowContext(ctx, `SELECT `+hatmColumns+` FROM hatms WHERE id = $1 FOR UPDATE`, hatmID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHatmNotFound
		}
		return nil, fmt.Errorf("error locking hatm %d for claim: %w", hatmID, err)
	}
	if h.Status != hatm.StatusActive {
		return nil, txn.Commit()
	}

	var owned int
	err = txn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM juz_assignments WHERE hatm_id = $1 AND user_id = $2`,
		hatmID, userID).Scan(&owned)
	if err != nil {
		return nil, fmt.Errorf("error checking existing juzs of user %d: %w", userID, err)
	}
	if owned > 0 {
		return nil, txn.Commit()
	}

	var owners int
	err = txn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM juz_assignments WHERE hatm_id = $1 AND user_id IS NOT NULL`,
		hatmID).Scan(&owners)
	if err != nil {
		return nil, fmt.Errorf("error counting distinct owners of hatm %d: %w", hatmID, err)
	}
	if owners >= h.ParticipantsCount {
		return nil, txn.Commit()
	}

	// The Nth joiner gets the Nth slot's size, by arrival order.
	want := hatm.SlotSize(h.ParticipantsCount, owners)

	rows, err := txn.QueryContext(ctx,
		`UPDATE juz_assignments SET user_id = $1
           WHERE id IN (
               SELECT id FROM juz_assignments
                WHERE hatm_id = $2 AND user_id IS NULL
                ORDER BY juz_number
                LIMIT $3)
           RETURNING `+juzColumns,
		userID, hatmID, want)
	if err != nil {
		return nil, fmt.Errorf("error binding juzs to user %d in hatm %d: %w", userID, hatmID, err)
	}
	claimed, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit juz claim: %w", err)
	}
	return claimed, nil
}

func (r *PostgresHatmRepository) Complete(ctx context.Context, hatmID int64) (*hatm.Hatm, error) {
	query := `UPDATE hatms SET status = $1 WHERE id = $2 RETURNING ` + hatmColumns
	h, err := scanHatm(r.db.QueryRowContext(ctx, query, hatm.StatusCompleted, hatmID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHatmNotFound
		}
		return nil, fmt.Errorf("error completing hatm %d: %w", hatmID, err)
	}
	return h, nil
}

func (r *PostgresHatmRepository) CompleteWithDebts(ctx context.Context, hatmID int64) (*hatm.Hatm, []*hatm.JuzAssignment, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction for debt conversion: %w", err)
	}
	defer txn.Rollback()

	h, err := scanHatm(txn.QueryRowContext(ctx,
		`UPDATE hatms SET status = $1 WHERE id = $2 RETURNING `+hatmColumns,
		hatm.StatusCompleted, hatmID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrHatmNotFound
		}
		return nil, nil, fmt.Errorf("error completing hatm %d: %w", hatmID, err)
	}

	rows, err := txn.QueryContext(ctx,
		`UPDATE juz_assignments SET status = $1, is_debt = TRUE
           WHERE hatm_id = $2 AND status = $3
           RETURNING `+juzColumns,
		hatm.JuzDebt, hatmID, hatm.JuzPending)
	if err != nil {
		return nil, nil, fmt.Errorf("error converting pending juzs of hatm %d to debt: %w", hatmID, err)
	}
	converted, err := scanAssignments(rows)
	if err != nil {
		return nil, nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit debt conversion: %w", err)
	}
	return h, converted, nil
}

// CompleteIfAllRead is a single conditional UPDATE, so a completion racing
// with another juz's completion can never leave a fully-read hatm active.
func (r *PostgresHatmRepository) CompleteIfAllRead(ctx context.Context, hatmID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE hatms SET status = $1
           WHERE id = $2 AND status = $3
             AND NOT EXISTS (
               SELECT 1 FROM juz_assignments WHERE hatm_id = $2 AND status = $4)`,
		hatm.StatusCompleted, hatmID, hatm.StatusActive, hatm.JuzPending)
	if err != nil {
		return false, fmt.Errorf("error auto-completing hatm %d: %w", hatmID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking auto-completion of hatm %d: %w", hatmID, err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM hatms WHERE id = $1)`, hatmID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking hatm %d existence: %w", hatmID, err)
	}
	if !exists {
		return false, ErrHatmNotFound
	}
	return false, nil
}

// --- JuzAssignment methods ---

const juzColumns = `id, hatm_id, user_id, juz_number, status, completed_at, is_debt`

func scanAssignment(row interface{ Scan(...any) error }) (*hatm.JuzAssignment, error) {
	a := &hatm.JuzAssignment{}
	err := row.Scan(&a.ID, &a.HatmID, &a.UserID, &a.JuzNumber, &a.Status, &a.CompletedAt, &a.IsDebt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanAssignments(rows *sql.Rows) ([]*hatm.JuzAssignment, error) {
	defer rows.Close()
	assignments := make([]*hatm.JuzAssignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning juz assignment row: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating juz assignment rows: %w", err)
	}
	return assignments, nil
}

func (r *PostgresHatmRepository) GetAssignmentByID(ctx context.Context, id int64) (*hatm.JuzAssignment, error) {
	query := `SELECT ` + juzColumns + ` FROM juz_assignments WHERE id = $1`
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJuzNotFound
		}
		return nil, fmt.Errorf("error getting juz assignment by ID: %w", err)
	}
	return a, nil
}

func (r *PostgresHatmRepository) ListAssignmentsByHatm(ctx context.Context, hatmID int64) ([]*hatm.JuzAssignment, error) {
	query := `SELECT ` + juzColumns + ` FROM juz_assignments WHERE hatm_id = $1 ORDER BY juz_number`
	rows, err := r.db.QueryContext(ctx, query, hatmID)
	if err != nil {
		return nil, fmt.Errorf("error listing assignments by hatm: %w", err)
	}
	return scanAssignments(rows)
}

func (r *PostgresHatmRepository) ListPendingByHatm(ctx context.Context, hatmID int64) ([]*hatm.JuzAssignment, error) {
	query := `SELECT ` + juzColumns + ` FROM juz_assignments
               WHERE hatm_id = $1 AND status = $2 ORDER BY juz_number`
	rows, err := r.db.QueryContext(ctx, query, hatmID, hatm.JuzPending)
	if err != nil {
		return nil, fmt.Errorf("error listing pending assignments by hatm: %w", err)
	}
	return scanAssignments(rows)
}

func (r *PostgresHatmRepository) ListByUser(ctx context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	query := `SELECT ` + juzColumns + ` FROM juz_assignments WHERE user_id = $1 ORDER BY hatm_id, juz_number`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing assignments by user: %w", err)
	}
	return scanAssignments(rows)
}

func (r *PostgresHatmRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	query := `SELECT a.id, a.hatm_id, a.user_id, a.juz_number, a.status, a.completed_at, a.is_debt
               FROM juz_assignments a
               JOIN hatms h ON h.id = a.hatm_id
               WHERE a.user_id = $1 AND a.status = $2 AND h.status = $3
               ORDER BY a.juz_number`
	rows, err := r.db.QueryContext(ctx, query, userID, hatm.JuzPending, hatm.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("error listing active assignments by user: %w", err)
	}
	return scanAssignments(rows)
}

func (r *PostgresHatmRepository) ListDebtsByUser(ctx context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	query := `SELECT ` + juzColumns + ` FROM juz_assignments
               WHERE user_id = $1 AND is_debt = TRUE ORDER BY juz_number`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing debts by user: %w", err)
	}
	return scanAssignments(rows)
}

func (r *PostgresHatmRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) (*hatm.JuzAssignment, error) {
	query := `UPDATE juz_assignments
               SET status = $1, completed_at = $2, is_debt = FALSE
               WHERE id = $3
               RETURNING ` + juzColumns
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, hatm.JuzCompleted, at, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJuzNotFound
		}
		return nil, fmt.Errorf("error marking juz assignment %d completed: %w", id, err)
	}
	return a, nil
}

func (r *PostgresHatmRepository) CountByStatus(ctx context.Context, hatmID int64, status hatm.JuzStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM juz_assignments WHERE hatm_id = $1 AND status = $2`,
		hatmID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting assignments by status: %w", err)
	}
	return count, nil
}

func (r *PostgresHatmRepository) CountDistinctOwners(ctx context.Context, hatmID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM juz_assignments WHERE hatm_id = $1 AND user_id IS NOT NULL`,
		hatmID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting distinct owners: %w", err)
	}
	return count, nil
}
