package bookings

import (
	"context"
	"strings"
	"sync"

	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/logger"
)

type MineBackend interface {
	MyBookings(ctx context.Context, userID string) ([]domain.Booking, error)
}

// MyBookings is the read-only list of one staff member's bookings.
type MyBookings struct {
	backend MineBackend

	mu     sync.Mutex
	gen    uint64
	userID string
	rows   []domain.Booking
}

func NewMyBookings(backend MineBackend) *MyBookings {
	return &MyBookings{backend: backend}
}

// SetUserID switches the list to userID and fetches it when the id changed.
// An empty id clears the list without a round trip.
func (l *MyBookings) SetUserID(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)

	l.mu.Lock()
	if userID == l.userID {
		l.mu.Unlock()
		return nil
	}
	l.userID = userID
	l.rows = nil
	l.mu.Unlock()

	return l.Reload(ctx)
}

// Load switches the list to userID and fetches it, also when the id did not
// change.
func (l *MyBookings) Load(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)

	l.mu.Lock()
	if userID != l.userID {
		l.userID = userID
		l.rows = nil
	}
	l.mu.Unlock()

	return l.Reload(ctx)
}

// Reload fetches the current user's bookings again. On failure the rows are
// left as they were and the error is returned for the caller to show.
func (l *MyBookings) Reload(ctx context.Context) error {
	l.mu.Lock()
	userID := l.userID
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	if userID == "" {
		return nil
	}

	rows, err := l.backend.MyBookings(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("user", userID).Msg("failed to load bookings")
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.gen {
		l.rows = rows
	}
	return nil
}

func (l *MyBookings) UserID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userID
}

func (l *MyBookings) Rows() []domain.Booking {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Booking(nil), l.rows...)
}

// Find returns the row with id from the last successful load.
func (l *MyBookings) Find(id string) (domain.Booking, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range l.rows {
		if row.ID == id {
			return row, true
		}
	}
	return domain.Booking{}, false
}
