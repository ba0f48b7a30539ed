// Package memory keeps every store in process memory. It backs the test
// suites and the STORE=memory development mode.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/domain/location"
	"github.com/example/mealbook/internal/domain/notification"
	"github.com/example/mealbook/internal/domain/user"
	"github.com/example/mealbook/internal/store"
)

type bookingKey struct {
	userID string
	date   time.Time
}

type BookingStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]booking.MealBooking
	byKey  map[bookingKey]int64
}

func NewBookingStore() *BookingStore {
	return &BookingStore{rows: map[int64]booking.MealBooking{}, byKey: map[bookingKey]int64{}}
}

func (s *BookingStore) FindByUserAndDate(_ context.Context, userID string, date time.Time) (booking.MealBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[bookingKey{userID, date}]
	if !ok {
		return booking.MealBooking{}, store.ErrNotFound
	}
	return s.rows[id], nil
}

func (s *BookingStore) ExistsByUserAndDate(ctx context.Context, userID string, date time.Time) (bool, error) {
	_, err := s.FindByUserAndDate(ctx, userID, date)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *BookingStore) ExistsByUserInDateRange(_ context.Context, userID string, from, to time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.byKey {
		if k.userID == userID && !k.date.Before(from) && !k.date.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (s *BookingStore) Save(ctx context.Context, w store.BookingWrite) (booking.MealBooking, error) {
	out, err := s.SaveAll(ctx, []store.BookingWrite{w})
	if err != nil {
		return booking.MealBooking{}, err
	}
	return out[0], nil
}

func (s *BookingStore) SaveAll(_ context.Context, ws []store.BookingWrite) ([]booking.MealBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// check every precondition before touching anything
	seen := map[bookingKey]bool{}
	for _, w := range ws {
		k := bookingKey{w.Booking.UserID, w.Booking.Date}
		if seen[k] {
			return nil, store.ErrConflict
		}
		seen[k] = true
		if w.Booking.ID == 0 {
			if _, exists := s.byKey[k]; exists {
				return nil, store.ErrConflict
			}
			continue
		}
		cur, ok := s.rows[w.Booking.ID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if cur.Status != w.Expect {
			return nil, store.ErrConflict
		}
	}

	out := make([]booking.MealBooking, 0, len(ws))
	for _, w := range ws {
		b := w.Booking
		if b.ID == 0 {
			s.nextID++
			b.ID = s.nextID
			s.byKey[bookingKey{b.UserID, b.Date}] = b.ID
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = b.BookedAt
		}
		s.rows[b.ID] = b
		out = append(out, b)
	}
	return out, nil
}

func (s *BookingStore) FindByDateAndStatus(_ context.Context, date time.Time, status booking.Status) ([]booking.MealBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []booking.MealBooking
	for _, b := range s.rows {
		if b.Date.Equal(date) && b.Status == status {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *BookingStore) FindAllBookedToday(ctx context.Context, today time.Time) ([]booking.MealBooking, error) {
	return s.FindByDateAndStatus(ctx, today, booking.StatusBooked)
}

func (s *BookingStore) UpdateStatus(_ context.Context, id int64, from, to booking.Status, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = at
	s.rows[id] = b
	return true, nil
}

func (s *BookingStore) SetAvailableForLunch(_ context.Context, id int64, available bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	b.AvailableForLunch = available
	b.UpdatedAt = at
	s.rows[id] = b
	return nil
}

// All returns every stored booking ordered by id.
func (s *BookingStore) All() []booking.MealBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]booking.MealBooking, 0, len(s.rows))
	for _, b := range s.rows {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type UserStore struct {
	mu    sync.Mutex
	users []user.User
}

func NewUserStore(us ...user.User) *UserStore {
	return &UserStore{users: append([]user.User(nil), us...)}
}

func (s *UserStore) FindAll(_ context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]user.User(nil), s.users...), nil
}

func (s *UserStore) FindByRole(_ context.Context, role user.Role) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []user.User
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *UserStore) FindByID(_ context.Context, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return user.User{}, store.ErrNotFound
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, store.ErrNotFound
}

func (s *UserStore) Create(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.users {
		if x.Username == u.Username {
			return user.User{}, store.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users = append(s.users, u)
	return u, nil
}

func (s *UserStore) TouchLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].LastLoginAt = &at
			s.users[i].UpdatedAt = at
			return nil
		}
	}
	return store.ErrNotFound
}

type LocationStore struct {
	mu   sync.Mutex
	byID map[string]location.UserLocation
}

func NewLocationStore() *LocationStore {
	return &LocationStore{byID: map[string]location.UserLocation{}}
}

func (s *LocationStore) FindLatestByUser(_ context.Context, userID string) (location.UserLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byID[userID]
	if !ok {
		return location.UserLocation{}, store.ErrNotFound
	}
	return l, nil
}

func (s *LocationStore) Upsert(_ context.Context, l location.UserLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[l.UserID] = l
	return nil
}

type NotificationStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []notification.Notification
}

func NewNotificationStore() *NotificationStore { return &NotificationStore{} }

func (s *NotificationStore) Save(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = n.ScheduledAt
	}
	s.rows = append(s.rows, n)
	return n, nil
}

func (s *NotificationStore) ExistsByUserTypeScheduledBetween(_ context.Context, userID string, typ notification.Type, from, to time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.rows {
		if n.UserID == userID && n.Type == typ && !n.ScheduledAt.Before(from) && !n.ScheduledAt.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (s *NotificationStore) FindUnsentDue(_ context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for _, n := range s.rows {
		if n.Sent || n.ScheduledAt.After(now) {
			continue
		}
		if n.NextAttemptAt != nil && n.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Attempts != out[j].Attempts {
			return out[i].Attempts < out[j].Attempts
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NotificationStore) MarkSent(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			if s.rows[i].Sent {
				return false, nil
			}
			s.rows[i].Sent = true
			s.rows[i].SentAt = &at
			return true, nil
		}
	}
	return false, store.ErrNotFound
}

func (s *NotificationStore) MarkFailed(_ context.Context, id int64, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows[i].Attempts++
			s.rows[i].NextAttemptAt = &retryAt
			return nil
		}
	}
	return store.ErrNotFound
}

// All returns every stored notification in insertion order.
func (s *NotificationStore) All() []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Notification(nil), s.rows...)
}

type CutoffStore struct {
	mu   sync.Mutex
	rows []booking.CutoffTime
}

func NewCutoffStore(cs ...booking.CutoffTime) *CutoffStore {
	return &CutoffStore{rows: append([]booking.CutoffTime(nil), cs...)}
}

func (s *CutoffStore) Latest(_ context.Context) (booking.CutoffTime, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return booking.CutoffTime{}, false, nil
	}
	return s.rows[len(s.rows)-1], true, nil
}

func (s *CutoffStore) Insert(_ context.Context, c booking.CutoffTime, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, c)
	return nil
}

var (
	_ store.BookingStore      = (*BookingStore)(nil)
	_ store.UserStore         = (*UserStore)(nil)
	_ store.LocationStore     = (*LocationStore)(nil)
	_ store.NotificationStore = (*NotificationStore)(nil)
	_ store.CutoffConfigStore = (*CutoffStore)(nil)
)
