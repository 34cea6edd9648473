package bookings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/kafka"
	"github.com/Domenick1991/smartaccess/internal/logger"
)

var ErrInvalidAction = errors.New("invalid admin action")

type AdminBackend interface {
	AdminBookings(ctx context.Context) ([]domain.Booking, error)
	AdminAct(ctx context.Context, bookingID string, action domain.AdminAction) (*domain.Booking, error)
}

type AdminView struct {
	Loading bool             `json:"loading"`
	Error   string           `json:"error,omitempty"`
	Rows    []domain.Booking `json:"rows"`
}

type AdminOption func(*AdminPanel)

func WithPublisher(publisher kafka.Publisher, topic string) AdminOption {
	return func(p *AdminPanel) {
		p.publisher = publisher
		p.topic = topic
	}
}

// AdminPanel lists every booking and applies approve/reject actions. Rows are
// only ever replaced by a full reload, never edited in place.
type AdminPanel struct {
	backend   AdminBackend
	publisher kafka.Publisher
	topic     string

	mu      sync.Mutex
	gen     uint64
	loading bool
	err     string
	rows    []domain.Booking
}

func NewAdminPanel(backend AdminBackend, opts ...AdminOption) *AdminPanel {
	p := &AdminPanel{backend: backend, loading: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AdminPanel) Load(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.loading = true
	p.err = ""
	p.mu.Unlock()

	rows, err := p.backend.AdminBookings(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return err
	}
	p.loading = false
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("failed to load admin bookings")
		p.err = backend.Message(err)
		return err
	}
	p.rows = rows
	return nil
}

// Act applies action to booking id and then reloads the whole list. Whatever
// the action call returned, the rows shown afterwards are the reload's.
func (p *AdminPanel) Act(ctx context.Context, id string, action domain.AdminAction) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	updated, err := p.backend.AdminAct(ctx, id, action)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("booking", id).Str("action", string(action)).Msg("admin action failed")
		return err
	}

	logger.FromContext(ctx).Info().Str("booking", id).Str("action", string(action)).Msg("admin action applied")
	p.publish(ctx, id, action, updated)

	return p.Load(ctx)
}

func (p *AdminPanel) publish(ctx context.Context, id string, action domain.AdminAction, updated *domain.Booking) {
	if p.publisher == nil || p.topic == "" {
		return
	}

	booking := *updated
	if booking.ID == "" {
		booking.ID = id
	}
	if booking.Status == "" {
		booking.Status = action.Status()
	}

	eventType := kafka.EventBookingRejected
	if action == domain.AdminActionApprove {
		eventType = kafka.EventBookingApproved
	}
	if err := p.publisher.Publish(ctx, p.topic, booking.ID, kafka.NewBookingEvent(eventType, &booking)); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("booking", booking.ID).Msgf("failed to publish %s", eventType)
	}
}

func (p *AdminPanel) View() AdminView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return AdminView{
		Loading: p.loading,
		Error:   p.err,
		Rows:    append([]domain.Booking(nil), p.rows...),
	}
}

// Pending returns the rows that still offer approve/reject.
func (p *AdminPanel) Pending() []domain.Booking {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Booking
	for _, row := range p.rows {
		if row.Status == domain.BookingStatusPending {
			out = append(out, row)
		}
	}
	return out
}
