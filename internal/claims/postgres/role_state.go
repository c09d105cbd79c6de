package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/frahmantamala/securemind/internal/claims"
	"github.com/jmoiron/sqlx"
)

const listRoleStatesQuery = `
SELECT a.id AS uid, a.custom_claims, u.role AS profile_role
FROM identity_accounts a
JOIN users u ON u.id = a.id
ORDER BY a.id`

type RoleStateRepository struct {
	db *sqlx.DB
}

func NewRoleStateRepository(db *sqlx.DB) claims.RoleStateSource {
	return &RoleStateRepository{db: db}
}

type roleStateRow struct {
	UID          string         `db:"uid"`
	CustomClaims sql.NullString `db:"custom_claims"`
	ProfileRole  sql.NullString `db:"profile_role"`
}

func (r *RoleStateRepository) ListRoleStates(ctx context.Context) ([]claims.RoleState, error) {
	var rows []roleStateRow
	if err := r.db.SelectContext(ctx, &rows, listRoleStatesQuery); err != nil {
		return nil, fmt.Errorf("list role states: %w", err)
	}

	states := make([]claims.RoleState, len(rows))
	for i, row := range rows {
		states[i] = claims.RoleState{
			UID:          row.UID,
			CustomClaims: row.CustomClaims.String,
			ProfileRole:  row.ProfileRole.String,
		}
	}
	return states, nil
}
