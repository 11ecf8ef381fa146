package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"enterprise-api/backend/internal/db"
	"enterprise-api/backend/internal/rbac/domain"
)

// roleGraph selects roles joined with their permissions; callers append FROM/WHERE clauses.
const roleGraph = `SELECT r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at,
	p.id, p.name, p.description, p.resource, p.action, p.created_at`

const roleJoins = ` LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an RBAC repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// ListRoles returns all roles ordered by name.
func (r *PostgresRepository) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	return r.queryRoles(ctx, roleGraph+` FROM roles r`+roleJoins+` ORDER BY r.name, p.name`)
}

// GetRole returns the role for id, or nil if not found.
func (r *PostgresRepository) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	return r.queryOne(ctx, roleGraph+` FROM roles r`+roleJoins+` WHERE r.id = $1 ORDER BY p.name`, id)
}

// GetRoleByName returns the role with name, or nil if not found.
func (r *PostgresRepository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.queryOne(ctx, roleGraph+` FROM roles r`+roleJoins+` WHERE r.name = $1 ORDER BY p.name`, name)
}

// ListRolesForUser returns the roles assigned to userID.
func (r *PostgresRepository) ListRolesForUser(ctx context.Context, userID string) ([]*domain.Role, error) {
	return r.queryRoles(ctx, roleGraph+` FROM user_roles ur JOIN roles r ON r.id = ur.role_id`+roleJoins+`
		WHERE ur.user_id = $1 ORDER BY r.name, p.name`, userID)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, arg string) (*domain.Role, error) {
	roles, err := r.queryRoles(ctx, query, arg)
	if err != nil || len(roles) == 0 {
		return nil, err
	}
	return roles[0], nil
}

// queryRoles folds the role/permission join into roles. Rows must be ordered by role.
func (r *PostgresRepository) queryRoles(ctx context.Context, query string, args ...any) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Role
	var cur *domain.Role
	for rows.Next() {
		var role domain.Role
		var roleDesc sql.NullString
		var pID, pName, pDesc, pResource, pAction sql.NullString
		var pCreated sql.NullTime
		if err := rows.Scan(&role.ID, &role.Name, &roleDesc, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
			&pID, &pName, &pDesc, &pResource, &pAction, &pCreated); err != nil {
			return nil, err
		}
		if cur == nil || cur.ID != role.ID {
			role.Description = roleDesc.String
			role.Permissions = []domain.Permission{}
			cur = &role
			out = append(out, cur)
		}
		if pID.Valid {
			cur.Permissions = append(cur.Permissions, domain.Permission{
				ID:          pID.String,
				Name:        pName.String,
				Description: pDesc.String,
				Resource:    pResource.String,
				Action:      pAction.String,
				CreatedAt:   pCreated.Time,
			})
		}
	}
	return out, rows.Err()
}

// CreateRole persists r. The role must have ID set.
func (r *PostgresRepository) CreateRole(ctx context.Context, role *domain.Role) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO roles (id, name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		role.ID, role.Name, db.NullString(role.Description), role.IsSystem, role.CreatedAt, role.UpdatedAt)
	return db.TranslateError(err)
}

// UpdateRole saves name and description.
func (r *PostgresRepository) UpdateRole(ctx context.Context, role *domain.Role) error {
	_, err := r.db.ExecContext(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		role.ID, role.Name, db.NullString(role.Description), role.UpdatedAt)
	return db.TranslateError(err)
}

// DeleteRole removes the role; its assignments cascade.
func (r *PostgresRepository) DeleteRole(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	return err
}

// ListPermissions returns all permissions ordered by name.
func (r *PostgresRepository) ListPermissions(ctx context.Context) ([]*domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, resource, action, created_at
		FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPermissionByName returns the permission, or nil if not found.
func (r *PostgresRepository) GetPermissionByName(ctx context.Context, name string) (*domain.Permission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, description, resource, action, created_at
		FROM permissions WHERE name = $1`, name)
	p, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermission(s rowScanner) (*domain.Permission, error) {
	var p domain.Permission
	var desc sql.NullString
	if err := s.Scan(&p.ID, &p.Name, &desc, &p.Resource, &p.Action, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

// CreatePermission persists p. The permission must have ID set.
func (r *PostgresRepository) CreatePermission(ctx context.Context, p *domain.Permission) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO permissions (id, name, description, resource, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, p.ID, p.Name, db.NullString(p.Description), p.Resource, p.Action, p.CreatedAt)
	return db.TranslateError(err)
}

// AssignPermission grants permissionID to roleID. A duplicate grant is a Conflict.
func (r *PostgresRepository) AssignPermission(ctx context.Context, roleID, permissionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO role_permissions (role_id, permission_id, created_at)
		VALUES ($1, $2, $3)`, roleID, permissionID, at)
	return db.TranslateError(err)
}

// RemovePermission revokes permissionID from roleID.
func (r *PostgresRepository) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID)
	return err
}

// AssignRole grants roleID to userID. Assigning a role the user already holds is a no-op.
func (r *PostgresRepository) AssignRole(ctx context.Context, userID, roleID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID, at)
	return db.TranslateError(err)
}

// RemoveRole revokes roleID from userID.
func (r *PostgresRepository) RemoveRole(ctx context.Context, userID, roleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}
