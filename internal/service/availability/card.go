package availability

import (
	"context"
	"strings"
	"sync"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/logger"
)

type State string

const (
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

const (
	DefaultStart = "08:00"
	DefaultEnd   = "09:00"
)

// Backend is the part of the booking backend a card talks to.
type Backend interface {
	Availability(ctx context.Context, facilityCode, date string) (*domain.Availability, error)
	CreateBooking(ctx context.Context, req backend.CreateBookingRequest) (*domain.Booking, error)
}

// Notifier is told about every accepted booking request.
type Notifier interface {
	BookingSubmitted(ctx context.Context, facility domain.Facility, booking *domain.Booking)
}

type NotifierFunc func(ctx context.Context, facility domain.Facility, booking *domain.Booking)

func (f NotifierFunc) BookingSubmitted(ctx context.Context, facility domain.Facility, booking *domain.Booking) {
	f(ctx, facility, booking)
}

// Key identifies what an availability snapshot was fetched for.
type Key struct {
	FacilityCode string `json:"facility_code"`
	Date         string `json:"date"`
}

// Token is handed out by Begin and must match the card's generation for a
// result to be applied.
type Token struct {
	gen uint64
	key Key
}

func (t Token) Key() Key {
	return t.key
}

// Form is the booking form of a card.
type Form struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Purpose string `json:"purpose"`
}

// View is a copy of a card's state safe to render.
type View struct {
	Facility       domain.Facility      `json:"facility"`
	Key            Key                  `json:"key"`
	State          State                `json:"state"`
	Availability   *domain.Availability `json:"availability,omitempty"`
	Error          string               `json:"error,omitempty"`
	Form           Form                 `json:"form"`
	SubmitError    string               `json:"submit_error,omitempty"`
	SubmitDisabled bool                 `json:"submit_disabled"`
}

// Card holds the availability and booking form of one facility.
type Card struct {
	backend  Backend
	notifier Notifier
	facility domain.Facility

	mu       sync.Mutex
	gen      uint64
	key      Key
	state    State
	snapshot *domain.Availability
	loadErr  string
	form     Form
	formErr  string
}

func NewCard(facility domain.Facility, backend Backend, notifier Notifier) *Card {
	return &Card{
		backend:  backend,
		notifier: notifier,
		facility: facility,
		state:    StateLoading,
		key:      Key{FacilityCode: facility.Code},
		form:     Form{Start: DefaultStart, End: DefaultEnd},
	}
}

func (c *Card) Facility() domain.Facility {
	return c.facility
}

// Begin starts a new availability request for date. Any request started
// earlier becomes stale and its result will be dropped by Resolve.
func (c *Card) Begin(date string) Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.beginLocked(date)
}

func (c *Card) beginLocked(date string) Token {
	c.gen++
	c.key = Key{FacilityCode: c.facility.Code, Date: date}
	c.state = StateLoading
	c.snapshot = nil
	c.loadErr = ""

	return Token{gen: c.gen, key: c.key}
}

// Resolve applies the outcome of the request identified by token. It reports
// false and leaves the card untouched when a newer request has been started.
func (c *Card) Resolve(token Token, snapshot *domain.Availability, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token.gen != c.gen || token.key != c.key {
		return false
	}

	if err != nil {
		c.state = StateError
		c.loadErr = backend.Message(err)
		return true
	}

	if snapshot == nil {
		snapshot = &domain.Availability{}
	}
	snapshot.FacilityCode = token.key.FacilityCode
	snapshot.Date = token.key.Date
	c.state = StateLoaded
	c.snapshot = snapshot
	return true
}

// Load fetches availability for date and applies it unless superseded. An
// empty date leaves the card loading without a round trip.
func (c *Card) Load(ctx context.Context, date string) bool {
	return c.Fetch(ctx, c.Begin(date))
}

// Refresh reloads the date the card currently shows.
func (c *Card) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	token := c.beginLocked(c.key.Date)
	c.mu.Unlock()

	return c.Fetch(ctx, token)
}

// Fetch performs the round trip for token and resolves it.
func (c *Card) Fetch(ctx context.Context, token Token) bool {
	if token.key.Date == "" {
		return false
	}

	snapshot, err := c.backend.Availability(ctx, token.key.FacilityCode, token.key.Date)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("facility", token.key.FacilityCode).
			Str("date", token.key.Date).
			Msg("availability fetch failed")
	}

	applied := c.Resolve(token, snapshot, err)
	if !applied {
		logger.FromContext(ctx).Debug().
			Str("facility", token.key.FacilityCode).
			Str("date", token.key.Date).
			Msg("stale availability dropped")
	}
	return applied
}

// Close makes any in-flight response stale.
func (c *Card) Close() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

func (c *Card) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Facility:    c.facility,
		Key:         c.key,
		State:       c.state,
		Error:       c.loadErr,
		Form:        c.form,
		SubmitError: c.formErr,
	}
	if c.snapshot != nil {
		snapshot := *c.snapshot
		snapshot.Unavailable = append([]domain.Interval(nil), c.snapshot.Unavailable...)
		v.Availability = &snapshot
		v.SubmitDisabled = snapshot.FullyOccupied
	}
	return v
}

// Submit sends a booking request for the card's facility. The displayed
// availability is never touched: the backend decides about conflicts and the
// next load shows the outcome. On success the purpose is cleared and the
// notifier is called once; on failure the form keeps its values.
func (c *Card) Submit(ctx context.Context, identity domain.Identity, form Form) (*domain.Booking, error) {
	c.mu.Lock()
	date := c.key.Date
	c.form = form
	c.formErr = ""
	c.mu.Unlock()

	req := backend.CreateBookingRequest{
		FacilityCode: c.facility.Code,
		UserID:       strings.TrimSpace(identity.ID),
		UserName:     strings.TrimSpace(identity.Name),
		Date:         date,
		StartTime:    strings.TrimSpace(form.Start),
		EndTime:      strings.TrimSpace(form.End),
		Purpose:      strings.TrimSpace(form.Purpose),
	}

	if err := validate(req); err != nil {
		c.fail(err.Error())
		return nil, err
	}

	booking, err := c.backend.CreateBooking(ctx, req)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("facility", req.FacilityCode).
			Str("date", req.Date).
			Msg("booking request rejected")
		c.fail(backend.Message(err))
		return nil, err
	}

	c.mu.Lock()
	c.form.Purpose = ""
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.BookingSubmitted(ctx, c.facility, booking)
	}
	return booking, nil
}

func (c *Card) fail(msg string) {
	c.mu.Lock()
	c.formErr = msg
	c.mu.Unlock()
}
