package db

import (
	"context"

	"github.com/google/uuid"
)

// CreateTenant inserts a new tenant.
func (q *Queries) CreateTenant(ctx context.Context, id uuid.UUID, name string) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO tenants (id, name) VALUES ($1, $2) RETURNING id, name, created_at
	`, id, name)
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	return t, err
}

// GetTenant returns a tenant by id.
func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, `SELECT id, name, created_at FROM tenants WHERE id = $1`, id)
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	return t, err
}

// ListTenants returns every tenant.
func (q *Queries) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, created_at FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
