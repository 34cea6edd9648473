package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/kafka"
	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/Domenick1991/smartaccess/internal/notice"
	"github.com/Domenick1991/smartaccess/internal/service/availability"
	"golang.org/x/sync/errgroup"
)

const (
	SubmittedNotice  = "Your booking request has been submitted and awaits admin approval."
	DefaultNoticeTTL = 4 * time.Second
	clearTimeout     = 2 * time.Second
	dateLayout       = "2006-01-02"
)

// Backend is the part of the booking backend the shell and its cards use.
type Backend interface {
	availability.Backend
	ListFacilities(ctx context.Context) ([]domain.Facility, error)
	SeedFacilities(ctx context.Context) ([]domain.Facility, error)
}

type GroupView struct {
	Key   string              `json:"key"`
	Label string              `json:"label"`
	Cards []availability.View `json:"cards"`
}

type View struct {
	Date    string      `json:"date"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
	Notice  string      `json:"notice,omitempty"`
	Groups  []GroupView `json:"groups"`
}

type Option func(*Shell)

func WithNoticeTTL(ttl time.Duration) Option {
	return func(s *Shell) {
		s.noticeTTL = ttl
	}
}

func WithPublisher(publisher kafka.Publisher, topic string) Option {
	return func(s *Shell) {
		s.publisher = publisher
		s.topic = topic
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Shell) {
		s.now = now
	}
}

// Shell owns the facility catalog of one session, the selected date, one card
// per facility and the session's notice.
type Shell struct {
	backend   Backend
	notices   notice.Board
	scope     string
	noticeTTL time.Duration
	publisher kafka.Publisher
	topic     string
	now       func() time.Time

	mu         sync.RWMutex
	date       string
	loading    bool
	loadErr    string
	facilities []domain.Facility
	groups     Groups
	cards      map[string]*availability.Card
	closed     bool
}

// NewShell builds a shell whose notices are posted to board under scope.
func NewShell(backend Backend, board notice.Board, scope string, opts ...Option) *Shell {
	s := &Shell{
		backend:   backend,
		notices:   board,
		scope:     scope,
		noticeTTL: DefaultNoticeTTL,
		now:       time.Now,
		loading:   true,
		cards:     make(map[string]*availability.Card),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.date = s.now().Format(dateLayout)
	s.groups = GroupByType(nil)
	return s
}

// Init loads the catalog. An empty catalog is seeded and fetched once more;
// it is never retried beyond that.
func (s *Shell) Init(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.loadErr = ""
	s.mu.Unlock()

	list, err := s.fetchCatalog(ctx)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("session", s.scope).Msg("failed to load facilities")

		s.mu.Lock()
		s.loading = false
		s.loadErr = backend.Message(err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	for _, card := range s.cards {
		card.Close()
	}
	s.facilities = list
	s.groups = GroupByType(list)
	s.cards = make(map[string]*availability.Card, len(list))
	for _, f := range list {
		s.cards[f.Code] = availability.NewCard(f, s.backend, s)
	}
	s.loading = false
	s.mu.Unlock()

	s.SetDate(ctx, s.Date())
	return nil
}

func (s *Shell) fetchCatalog(ctx context.Context) ([]domain.Facility, error) {
	list, err := s.backend.ListFacilities(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		return list, nil
	}

	logger.FromContext(ctx).Info().Msg("facility catalog is empty, seeding demo data")
	if _, err := s.backend.SeedFacilities(ctx); err != nil {
		return nil, err
	}
	return s.backend.ListFacilities(ctx)
}

// SetDate selects date and reloads every card for it. Cards load
// independently: one failing card leaves the others untouched. An empty date
// falls back to today.
func (s *Shell) SetDate(ctx context.Context, date string) {
	if date == "" {
		date = s.now().Format(dateLayout)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.date = date
	cards := make([]*availability.Card, 0, len(s.cards))
	tokens := make([]availability.Token, 0, len(s.cards))
	for _, f := range s.facilities {
		card := s.cards[f.Code]
		cards = append(cards, card)
		tokens = append(tokens, card.Begin(date))
	}
	s.mu.Unlock()

	var g errgroup.Group
	for i := range cards {
		card, token := cards[i], tokens[i]
		g.Go(func() error {
			card.Fetch(ctx, token)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Shell) Date() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.date
}

func (s *Shell) Facilities() []domain.Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Facility(nil), s.facilities...)
}

func (s *Shell) Groups() Groups {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups
}

func (s *Shell) Card(code string) (*availability.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[code]
	return card, ok
}

// BookingSubmitted raises the session notice and reloads the card that
// submitted, so the busy intervals come from the backend.
func (s *Shell) BookingSubmitted(ctx context.Context, facility domain.Facility, booking *domain.Booking) {
	if err := s.notices.Post(ctx, s.scope, SubmittedNotice, s.noticeTTL); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("failed to post notice")
	}

	if s.publisher != nil && s.topic != "" {
		event := kafka.NewBookingEvent(kafka.EventBookingRequested, booking)
		if event.FacilityCode == "" {
			event.FacilityCode = facility.Code
		}
		if err := s.publisher.Publish(ctx, s.topic, booking.ID, event); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("booking", booking.ID).Msg("failed to publish booking_requested")
		}
	}

	if card, ok := s.Card(facility.Code); ok {
		card.Refresh(ctx)
	}
}

func (s *Shell) Notice(ctx context.Context) string {
	text, err := s.notices.Current(ctx, s.scope)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("failed to read notice")
		return ""
	}
	return text
}

func (s *Shell) View(ctx context.Context) View {
	s.mu.RLock()
	v := View{
		Date:    s.date,
		Loading: s.loading,
		Error:   s.loadErr,
		Groups:  make([]GroupView, 0, s.groups.Len()),
	}
	for _, group := range s.groups.All() {
		gv := GroupView{Key: group.Key, Label: group.Label()}
		for _, f := range group.Facilities {
			gv.Cards = append(gv.Cards, s.cards[f.Code].View())
		}
		v.Groups = append(v.Groups, gv)
	}
	s.mu.RUnlock()

	v.Notice = s.Notice(ctx)
	return v
}

// Close discards the cards and any pending notice of the session. Later
// SetDate calls are ignored.
func (s *Shell) Close() {
	s.mu.Lock()
	s.closed = true
	for _, card := range s.cards {
		card.Close()
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()
	if err := s.notices.Clear(ctx, s.scope); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("session", s.scope).Msg("failed to clear notice")
	}
}

var _ availability.Notifier = (*Shell)(nil)
