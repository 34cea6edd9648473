package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/Domenick1991/smartaccess/internal/notice"
	"github.com/Domenick1991/smartaccess/internal/service/bookings"
	"github.com/Domenick1991/smartaccess/internal/service/catalog"
)

var ErrEmptyIdentity = errors.New("staff id and name are required")

// Session is one browser's portal state. The identity is whatever was typed
// on the sign-in form; it is kept in memory only.
type Session struct {
	id      string
	deps    *deps
	touched time.Time

	mu       sync.RWMutex
	identity domain.Identity
	shell    *catalog.Shell
	mine     *bookings.MyBookings
	admin    *bookings.AdminPanel
}

type deps struct {
	client    backend.Client
	board     notice.Board
	shellOpts []catalog.Option
	adminOpts []bookings.AdminOption
}

func newSession(id string, d *deps, now time.Time) *Session {
	return &Session{
		id:      id,
		deps:    d,
		touched: now,
		admin:   bookings.NewAdminPanel(d.client, d.adminOpts...),
	}
}

func (s *Session) ID() string {
	return s.id
}

// SignIn sets the identity and builds a fresh shell and bookings list for it.
// A catalog load failure does not fail the sign-in: the shell shows it.
func (s *Session) SignIn(ctx context.Context, identity domain.Identity) error {
	identity.ID = strings.TrimSpace(identity.ID)
	identity.Name = strings.TrimSpace(identity.Name)
	if identity.Empty() {
		return ErrEmptyIdentity
	}

	shell := catalog.NewShell(s.deps.client, s.deps.board, s.id, s.deps.shellOpts...)
	mine := bookings.NewMyBookings(s.deps.client)

	s.mu.Lock()
	old := s.shell
	s.identity = identity
	s.shell = shell
	s.mine = mine
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	log := logger.FromContext(ctx)
	log.Info().Str("session", s.id).Str("user", identity.ID).Msg("signed in")

	if err := shell.Init(ctx); err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("catalog unavailable at sign-in")
	}
	if err := mine.SetUserID(ctx, identity.ID); err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("bookings unavailable at sign-in")
	}
	return nil
}

func (s *Session) SignOut() {
	s.mu.Lock()
	old := s.shell
	s.identity = domain.Identity{}
	s.shell = nil
	s.mine = nil
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (s *Session) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Shell is nil until the session signs in.
func (s *Session) Shell() *catalog.Shell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shell
}

// Mine is nil until the session signs in.
func (s *Session) Mine() *bookings.MyBookings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mine
}

func (s *Session) Admin() *bookings.AdminPanel {
	return s.admin
}

func (s *Session) close() {
	s.SignOut()
}
