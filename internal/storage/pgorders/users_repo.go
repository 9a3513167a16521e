package pgorders

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
)

func (s *Storage) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `SELECT id, name, email, phone, role FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrUserNotFound, "user %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	out := *u
	err := s.db.QueryRow(ctx, `
INSERT INTO users (name, email, phone, role) VALUES ($1,$2,$3,$4) RETURNING id
`, u.Name, u.Email, u.Phone, u.Role).Scan(&out.ID)
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return &out, nil
}
