package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Operator roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidOperator    = errors.New("username and a password of at least 8 characters are required")
)

const minPasswordLen = 8

// Operator is a staff account allowed to open sessions and read logs.
type Operator struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// OperatorStore persists operators. ByUsername returns (nil, nil) when missing.
type OperatorStore interface {
	CreateOperator(ctx context.Context, op Operator) error
	OperatorByUsername(ctx context.Context, username string) (*Operator, error)
	OperatorByID(ctx context.Context, id string) (*Operator, error)
}

// HashPassword returns the bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Authenticator logs operators in and refreshes their tokens.
type Authenticator struct {
	store  OperatorStore
	signer Signer
}

func NewAuthenticator(store OperatorStore, signer Signer) *Authenticator {
	return &Authenticator{store: store, signer: signer}
}

// Signer exposes the token signer for middleware wiring.
func (a *Authenticator) Signer() Signer { return a.signer }

// Login checks credentials and issues a token pair.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Operator, TokenPair, error) {
	op, err := a.store.OperatorByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return Operator{}, TokenPair{}, fmt.Errorf("lookup operator: %w", err)
	}
	if op == nil || !op.Active || !CheckPassword(op.PasswordHash, password) {
		return Operator{}, TokenPair{}, ErrInvalidCredentials
	}
	tokens, err := a.signer.Issue(*op)
	if err != nil {
		return Operator{}, TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	return *op, tokens, nil
}

// Refresh exchanges a refresh token for a new pair if the operator is still active.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := a.signer.Parse(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	op, err := a.store.OperatorByID(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup operator: %w", err)
	}
	if op == nil || !op.Active {
		return TokenPair{}, ErrInvalidCredentials
	}
	return a.signer.Issue(*op)
}

// CreateOperator hashes the password and stores a new active operator.
func (a *Authenticator) CreateOperator(ctx context.Context, username, password, name, role string) (Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < minPasswordLen {
		return Operator{}, ErrInvalidOperator
	}
	if role == "" {
		role = RoleStaff
	}
	if role != RoleStaff && role != RoleAdmin {
		return Operator{}, fmt.Errorf("unknown role %q", role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Operator{}, fmt.Errorf("hash password: %w", err)
	}
	op := Operator{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Active:       true,
		CreatedAt:    a.signer.now(),
	}
	if err := a.store.CreateOperator(ctx, op); err != nil {
		return Operator{}, err
	}
	return op, nil
}
