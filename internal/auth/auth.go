package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/user"
	"github.com/example/mealbook/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	cookieName = "mealbook_session"
	sessionTTL = 14 * 24 * time.Hour
)

type Store struct {
	sc    *securecookie.SecureCookie
	users store.UserStore
	clock clock.Clock
}

type ctxKey string

const userKey ctxKey = "user"

func NewStore(users store.UserStore, hashKey, blockKey []byte, clk clock.Clock) *Store {
	sc := securecookie.New(hashKey, blockKey)
	// keep cookie small and secure
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, users: users, clock: clk}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

type NewUser struct {
	Username       string
	Password       string
	Email          string
	Role           user.Role
	TelegramChatID *int64
}

func (s *Store) CreateUser(ctx context.Context, nu NewUser) (user.User, error) {
	if nu.Username == "" || nu.Password == "" {
		return user.User{}, errors.New("username and password are required")
	}
	if nu.Role == "" {
		nu.Role = user.RoleUser
	}
	if !nu.Role.Valid() {
		return user.User{}, fmt.Errorf("unknown role %q", nu.Role)
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return user.User{}, err
	}
	now := s.clock.Now()
	return s.users.Create(ctx, user.User{
		Username:       nu.Username,
		PasswordBcrypt: hash,
		Email:          nu.Email,
		Role:           nu.Role,
		TelegramChatID: nu.TelegramChatID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// Authenticate checks the password and records the login time.
func (s *Store) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return user.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return user.User{}, err
	}
	if !CheckPassword(u.PasswordBcrypt, password) {
		return user.User{}, ErrInvalidCredentials
	}
	if err := s.users.TouchLogin(ctx, u.ID, s.clock.Now()); err != nil {
		return user.User{}, fmt.Errorf("touch login: %w", err)
	}
	return u, nil
}

type Session struct {
	UserID string
	V      int
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, userID string) error {
	encoded, err := s.sc.Encode(cookieName, Session{UserID: userID, V: 1})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	var sess Session
	if err := s.sc.Decode(cookieName, c.Value, &sess); err != nil || sess.UserID == "" {
		return Session{}, false
	}
	return sess, true
}

// RequireAuth resolves the session to a user or answers 401.
func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		u, err := s.users.FindByID(r.Context(), sess.UserID)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAdmin must be wrapped by RequireAuth.
func (s *Store) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok || !u.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}
