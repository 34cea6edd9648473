package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/service/availability"
	"github.com/Domenick1991/smartaccess/internal/service/bookings"
	"github.com/Domenick1991/smartaccess/internal/service/catalog"
	"github.com/Domenick1991/smartaccess/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	brand         = "Smart Access"
	sessionCookie = "portal_session"
	sessionKey    = "session"
)

// Sessions is what the handlers need from the session registry.
type Sessions interface {
	Ensure(id string) *session.Session
	Remove(id string)
}

type PortalHandler struct {
	sessions     Sessions
	adminRefresh time.Duration
}

type page struct {
	Title    string
	Brand    string
	Section  string
	Refresh  int
	Alert    string
	Error    string
	Identity domain.Identity

	Portal     catalog.View
	Mine       []domain.Booking
	MineUserID string
	Admin      bookings.AdminView
}

type signInRequest struct {
	ID   string `form:"id" json:"id"`
	Name string `form:"name" json:"name"`
}

type dateRequest struct {
	Date string `form:"date" json:"date"`
}

type portalResponse struct {
	Identity domain.Identity  `json:"identity"`
	Portal   catalog.View     `json:"portal"`
	Bookings bookingsResponse `json:"bookings"`
}

// NewPortalHandler builds the portal handlers. A positive adminRefresh makes
// the admin page reload itself at that interval.
func NewPortalHandler(sessions Sessions, adminRefresh time.Duration) *PortalHandler {
	return &PortalHandler{sessions: sessions, adminRefresh: adminRefresh}
}

// Register mounts the page routes on router and the JSON routes on apiGroup.
// Both groups must run Session first.
func (h *PortalHandler) Register(router, apiGroup *gin.RouterGroup) {
	router.GET("/", h.index)
	router.POST("/session", h.signIn)
	router.POST("/session/logout", h.signOut)

	signedIn := router.Group("/", h.requireIdentity)
	signedIn.POST("/date", h.setDate)
	signedIn.POST("/cards/:code/bookings", h.submit)
	signedIn.GET("/bookings", h.listMine)
	signedIn.POST("/bookings/reload", h.reloadMine)
	signedIn.POST("/bookings/user", h.setMineUser)
	signedIn.GET("/bookings/:id/qr.png", h.accessCodeQR)

	router.GET("/admin", h.admin)
	router.POST("/admin/refresh", h.adminRefreshList)
	router.POST("/admin/bookings/:id/:action", h.adminAct)

	apiGroup.GET("/portal", h.requireIdentity, h.portal)
	apiGroup.GET("/cards/:code", h.requireIdentity, h.card)
}

// Session attaches the caller's session, creating one and setting the cookie
// when the request carries none or an unknown one.
func (h *PortalHandler) Session(c *gin.Context) {
	id, _ := c.Cookie(sessionCookie)
	s := h.sessions.Ensure(id)
	if s.ID() != id {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, s.ID(), 0, "/", "", false, true)
	}
	c.Set(sessionKey, s)
	c.Next()
}

func (h *PortalHandler) requireIdentity(c *gin.Context) {
	if !current(c).Identity().Empty() {
		c.Next()
		return
	}
	signedOut(c)
}

// signedOut sends the caller back to the sign-in form.
func signedOut(c *gin.Context) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": session.ErrEmptyIdentity.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
	c.Abort()
}

// shellOf returns the caller's shell. A sign-out or idle sweep racing the
// request leaves none, and the caller is sent back to sign in.
func shellOf(c *gin.Context) (*catalog.Shell, bool) {
	shell := current(c).Shell()
	if shell == nil {
		signedOut(c)
		return nil, false
	}
	return shell, true
}

func mineOf(c *gin.Context) (*bookings.MyBookings, bool) {
	mine := current(c).Mine()
	if mine == nil {
		signedOut(c)
		return nil, false
	}
	return mine, true
}

func (h *PortalHandler) index(c *gin.Context) {
	s := current(c)
	identity := s.Identity()
	if identity.Empty() {
		c.HTML(http.StatusOK, "signin.tmpl", page{Title: "Sign in", Brand: brand})
		return
	}

	c.HTML(http.StatusOK, "portal.tmpl", h.portalPage(c, s))
}

func (h *PortalHandler) portalPage(c *gin.Context, s *session.Session) page {
	p := page{
		Title:    "Facilities",
		Brand:    brand,
		Section:  "Facilities",
		Alert:    c.Query("alert"),
		Identity: s.Identity(),
	}
	if shell := s.Shell(); shell != nil {
		p.Portal = shell.View(c.Request.Context())
	}
	if mine := s.Mine(); mine != nil {
		p.Mine = mine.Rows()
		p.MineUserID = mine.UserID()
	}
	return p
}

func (h *PortalHandler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	s := current(c)
	identity := domain.Identity{ID: req.ID, Name: req.Name}
	if err := s.SignIn(c.Request.Context(), identity); err != nil {
		if wantsJSON(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.HTML(http.StatusBadRequest, "signin.tmpl", page{
			Title:    "Sign in",
			Brand:    brand,
			Error:    err.Error(),
			Identity: identity,
		})
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"identity": s.Identity()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *PortalHandler) signOut(c *gin.Context) {
	s := current(c)
	h.sessions.Remove(s.ID())
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)

	if wantsJSON(c) {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *PortalHandler) setDate(c *gin.Context) {
	var req dateRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	shell, ok := shellOf(c)
	if !ok {
		return
	}
	shell.SetDate(c.Request.Context(), req.Date)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, shell.View(c.Request.Context()))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *PortalHandler) portal(c *gin.Context) {
	p := h.portalPage(c, current(c))
	c.JSON(http.StatusOK, portalResponse{
		Identity: p.Identity,
		Portal:   p.Portal,
		Bookings: newBookingsResponse(p.MineUserID, p.Mine),
	})
}

func (h *PortalHandler) card(c *gin.Context) {
	shell, ok := shellOf(c)
	if !ok {
		return
	}
	card, ok := shell.Card(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errFacilityNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, card.View())
}

func current(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

func respondError(c *gin.Context, status int, err error) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.String(status, err.Error())
}

// redirectAlert sends the browser back to target with a blocking message.
func redirectAlert(c *gin.Context, target string, err error) {
	c.Redirect(http.StatusSeeOther, target+"?alert="+url.QueryEscape(backend.Message(err)))
}

// statusFor maps a failed backend call to the status the portal answers with.
func statusFor(err error) int {
	var verr *availability.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}

	var serr *backend.StatusError
	if errors.As(err, &serr) && serr.StatusCode >= 400 && serr.StatusCode < 500 {
		return serr.StatusCode
	}
	return http.StatusBadGateway
}
