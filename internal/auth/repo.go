package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"academy/internal/store"
)

// Repository stores operators in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ OperatorStore = (*Repository)(nil)

const operatorColumns = `id, username, password_hash, name, role, is_active, created_at`

func (r *Repository) CreateOperator(ctx context.Context, op Operator) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operators (`+operatorColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, op.ID, op.Username, op.PasswordHash, op.Name, op.Role, op.Active, op.CreatedAt)
	if store.IsUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

func (r *Repository) OperatorByUsername(ctx context.Context, username string) (*Operator, error) {
	return r.one(ctx, `SELECT `+operatorColumns+` FROM operators WHERE username = $1`, username)
}

func (r *Repository) OperatorByID(ctx context.Context, id string) (*Operator, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.one(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id)
}

func (r *Repository) one(ctx context.Context, query string, arg any) (*Operator, error) {
	var op Operator
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&op.ID, &op.Username, &op.PasswordHash, &op.Name, &op.Role, &op.Active, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}
