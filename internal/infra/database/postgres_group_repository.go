// internal/infra/database/postgres_group_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hatm_bot/internal/domain/group"
)

type PostgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) *PostgresGroupRepository {
	return &PostgresGroupRepository{db: db}
}

func (r *PostgresGroupRepository) Create(ctx context.Context, g *group.Group) error {
	query := `INSERT INTO groups (name, invite_code, creator_id)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, g.Name, g.InviteCode, g.CreatorID).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "groups_invite_code_key") {
			return ErrDuplicateInviteCode
		}
		return fmt.Errorf("error creating group: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	query := `SELECT id, name, invite_code, creator_id, created_at FROM groups WHERE id = $1`
	g := &group.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.InviteCode, &g.CreatorID, &g.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("error getting group by ID: %w", err)
	}
	return g, nil
}

func (r *PostgresGroupRepository) GetByInviteCode(ctx context.Context, code string) (*group.Group, error) {
	query := `SELECT id, name, invite_code, creator_id, created_at FROM groups WHERE invite_code = $1`
	g := &group.Group{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(&g.ID, &g.Name, &g.InviteCode, &g.CreatorID, &g.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("error getting group by invite code: %w", err)
	}
	return g, nil
}

func (r *PostgresGroupRepository) ListByUser(ctx context.Context, userID int64) ([]*group.Group, error) {
	query := `SELECT g.id, g.name, g.invite_code, g.creator_id, g.created_at
               FROM groups g
               JOIN group_members m ON m.group_id = g.id
               WHERE m.user_id = $1
               ORDER BY g.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing groups by user: %w", err)
	}
	defer rows.Close()

	groups := make([]*group.Group, 0)
	for rows.Next() {
		g := &group.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.InviteCode, &g.CreatorID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

func (r *PostgresGroupRepository) AddMember(ctx context.Context, m *group.Member) error {
	query := `INSERT INTO group_members (group_id, user_id)
               VALUES ($1, $2)
               RETURNING id, joined_at`
	err := r.db.QueryRowContext(ctx, query, m.GroupID, m.UserID).Scan(&m.ID, &m.JoinedAt)
	if err != nil {
		if strings.Contains(err.Error(), "group_members_group_id_user_id_key") {
			return ErrDuplicateMember
		}
		return fmt.Errorf("error adding group member: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) GetMember(ctx context.Context, groupID, userID int64) (*group.Member, error) {
	query := `SELECT id, group_id, user_id, joined_at FROM group_members WHERE group_id = $1 AND user_id = $2`
	m := &group.Member{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(&m.ID, &m.GroupID, &m.UserID, &m.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting group member: %w", err)
	}
	return m, nil
}

func (r *PostgresGroupRepository) ListMembers(ctx context.Context, groupID int64) ([]*group.Member, error) {
	query := `SELECT id, group_id, user_id, joined_at FROM group_members WHERE group_id = $1 ORDER BY joined_at`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing group members: %w", err)
	}
	defer rows.Close()

	members := make([]*group.Member, 0)
	for rows.Next() {
		m := &group.Member{}
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("error scanning group member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group member rows: %w", err)
	}
	return members, nil
}

func (r *PostgresGroupRepository) CountMembers(ctx context.Context, groupID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting group members: %w", err)
	}
	return count, nil
}

func (r *PostgresGroupRepository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("error removing group member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking group member removal: %w", err)
	}
	if affected == 0 {
		return ErrMemberNotFound
	}
	return nil
}
