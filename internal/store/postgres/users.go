package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/example/mealbook/internal/db"
	"github.com/example/mealbook/internal/domain/user"
	"github.com/example/mealbook/internal/store"
)

var userCols = []any{"id", "username", "password_bcrypt", "email", "telegram_chat_id", "role", "created_at", "updated_at", "last_login_at"}

type UserStore struct{ db *db.DB }

func NewUserStore(d *db.DB) *UserStore { return &UserStore{db: d} }

func scanUser(r db.Row) (user.User, error) {
	var u user.User
	var role string
	if err := r.Scan(&u.ID, &u.Username, &u.PasswordBcrypt, &u.Email, &u.TelegramChatID, &role, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt); err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

func (s *UserStore) list(ctx context.Context, where ...goqu.Expression) ([]user.User, error) {
	sql, args, err := build(dialect.From(tableUsers).Prepared(true).Select(userCols...).Where(where...).Order(goqu.C("username").Asc()))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *UserStore) one(ctx context.Context, where goqu.Ex) (user.User, error) {
	sql, args, err := build(dialect.From(tableUsers).Prepared(true).Select(userCols...).Where(where))
	if err != nil {
		return user.User{}, err
	}
	u, err := scanUser(s.db.QueryRow(ctx, sql, args...))
	if db.IsNotFound(err) {
		return user.User{}, store.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("db: %w", err)
	}
	return u, nil
}

func (s *UserStore) FindAll(ctx context.Context) ([]user.User, error) { return s.list(ctx) }

func (s *UserStore) FindByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	return s.list(ctx, goqu.Ex{"role": string(role)})
}

func (s *UserStore) FindByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, store.ErrNotFound
	}
	return s.one(ctx, goqu.Ex{"id": id})
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (user.User, error) {
	return s.one(ctx, goqu.Ex{"username": username})
}

func (s *UserStore) Create(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = user.RoleUser
	}
	sql, args, err := build(dialect.Insert(tableUsers).Prepared(true).Rows(goqu.Record{
		"id":               u.ID,
		"username":         u.Username,
		"password_bcrypt":  u.PasswordBcrypt,
		"email":            u.Email,
		"telegram_chat_id": u.TelegramChatID,
		"role":             string(u.Role),
	}).Returning("created_at", "updated_at"))
	if err != nil {
		return user.User{}, err
	}
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return user.User{}, store.ErrConflict
		}
		return user.User{}, fmt.Errorf("db: %w", err)
	}
	return u, nil
}

func (s *UserStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	n, err := affected(ctx, s.db, dialect.Update(tableUsers).Prepared(true).
		Set(goqu.Record{"last_login_at": at, "updated_at": at}).
		Where(goqu.Ex{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.UserStore = (*UserStore)(nil)
