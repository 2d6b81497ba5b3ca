package database

import (
	"context"
	"database/sql"
	"fmt"

	"wpconn/internal/models"

	"github.com/google/uuid"
)

func (d *Database) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = "user"
	}

	_, err := d.q.ExecContext(ctx, InsertUserQuery,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.IsActive = true
	return nil
}

func (d *Database) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(d.q.QueryRowContext(ctx, SelectUserByEmailQuery, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (d *Database) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := d.q.QueryContext(ctx, SelectUsersQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (d *Database) DeleteUser(ctx context.Context, id string) (bool, error) {
	res, err := d.q.ExecContext(ctx, DeleteUserQuery, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return affected > 0, nil
}

func scanUser(s rowScanner) (*models.User, error) {
	var user models.User
	err := s.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
