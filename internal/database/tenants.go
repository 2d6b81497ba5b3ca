package database

import (
	"context"
	"database/sql"
	"fmt"

	"wpconn/internal/models"

	"github.com/google/uuid"
)

func (d *Database) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}

	_, err := d.q.ExecContext(ctx, InsertTenantQuery,
		tenant.ID,
		tenant.Name,
		tenant.WabaID,
		tenant.PhoneNumberID,
		tenant.Token,
		tenant.APIKey,
		tenant.WebhookURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	tenant.IsActive = true
	return nil
}

// GetTenantByPhoneNumberID resolves the owning tenant for an inbound webhook.
// Returns nil, nil when no tenant matches: an unknown phone_number_id is a
// no-op event, not an error.
func (d *Database) GetTenantByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Tenant, error) {
	return d.getTenant(ctx, SelectTenantByPhoneNumberIDQuery, phoneNumberID)
}

func (d *Database) GetTenantByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	return d.getTenant(ctx, SelectTenantByAPIKeyQuery, apiKey)
}

func (d *Database) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	return d.getTenant(ctx, SelectTenantByIDQuery, id)
}

func (d *Database) getTenant(ctx context.Context, query, arg string) (*models.Tenant, error) {
	tenant, err := scanTenant(d.q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tenant, err
}

func (d *Database) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := d.q.QueryContext(ctx, SelectAllTenantsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *tenant)
	}
	return tenants, rows.Err()
}

func (d *Database) DeleteTenant(ctx context.Context, id string) (bool, error) {
	res, err := d.q.ExecContext(ctx, DeleteTenantQuery, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete tenant: %w", err)
	}
	return affected > 0, nil
}

func scanTenant(s rowScanner) (*models.Tenant, error) {
	var tenant models.Tenant
	var webhookURL sql.NullString

	err := s.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.WabaID,
		&tenant.PhoneNumberID,
		&tenant.Token,
		&tenant.APIKey,
		&webhookURL,
		&tenant.IsActive,
		&tenant.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}

	tenant.WebhookURL = nullableString(webhookURL)
	return &tenant, nil
}
