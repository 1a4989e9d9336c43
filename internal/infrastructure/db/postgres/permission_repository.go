package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
)

// PermissionRepository reads effective permissions and manages the role
// catalogue. Reads go straight to the database on every call.
type PermissionRepository struct {
	db *sql.DB
}

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// PermissionNames returns the distinct names granted through any of the
// account's roles, sorted.
func (r *PermissionRepository) PermissionNames(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	query :=
		`SELECT DISTINCT p.name
		 FROM account_roles ar
		 JOIN role_permissions rp ON rp.role_id = ar.role_id
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE ar.account_id = $1
		 ORDER BY p.name`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return names, nil
}

// EnsurePermission creates the permission or refreshes its description.
func (r *PermissionRepository) EnsurePermission(ctx context.Context, name, description string) (*domain.Permission, error) {
	query :=
		`INSERT INTO permissions (name, description)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		 RETURNING id, name, description`

	var p domain.Permission
	if err := r.db.QueryRowContext(ctx, query, name, description).Scan(&p.ID, &p.Name, &p.Description); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

// EnsureRole creates the role or refreshes its description.
func (r *PermissionRepository) EnsureRole(ctx context.Context, name, description string) (*domain.Role, error) {
	query :=
		`INSERT INTO roles (name, description)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		 RETURNING id, name, description`

	var role domain.Role
	if err := r.db.QueryRowContext(ctx, query, name, description).Scan(&role.ID, &role.Name, &role.Description); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &role, nil
}

// GrantPermission adds permName to roleName. Granting twice is a no-op.
func (r *PermissionRepository) GrantPermission(ctx context.Context, roleName, permName string) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		roleID, err := roleIDByName(ctx, tx, roleName)
		if err != nil {
			return err
		}

		var permID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM permissions WHERE name = $1`, permName).Scan(&permID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPermissionNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		insert :=
			`INSERT INTO role_permissions (role_id, permission_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, insert, roleID, permID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

// AssignRole gives the account roleName. Assigning twice is a no-op.
func (r *PermissionRepository) AssignRole(ctx context.Context, accountID uuid.UUID, roleName string) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		roleID, err := roleIDByName(ctx, tx, roleName)
		if err != nil {
			return err
		}

		insert :=
			`INSERT INTO account_roles (account_id, role_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, insert, accountID, roleID); err != nil {
			if pgCode(err) == codeForeignKeyViolation {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func roleIDByName(ctx context.Context, tx DBTX, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
