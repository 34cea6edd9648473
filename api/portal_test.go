package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/notice"
	"github.com/Domenick1991/smartaccess/internal/service/availability"
	"github.com/Domenick1991/smartaccess/internal/service/bookings"
	"github.com/Domenick1991/smartaccess/internal/service/catalog"
	"github.com/Domenick1991/smartaccess/internal/session"
	"github.com/Domenick1991/smartaccess/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu         sync.Mutex
	facilities []domain.Facility
	mine       []domain.Booking
	mineErr    error
	adminRows  []domain.Booking
	actErr     error
	createErr  error
	created    []backend.CreateBookingRequest
	acted      []string
}

func (f *fakeClient) ListFacilities(context.Context) ([]domain.Facility, error) {
	return f.facilities, nil
}

func (f *fakeClient) SeedFacilities(context.Context) ([]domain.Facility, error) {
	return nil, nil
}

func (f *fakeClient) Availability(context.Context, string, string) (*domain.Availability, error) {
	return &domain.Availability{Unavailable: []domain.Interval{{Start: "12:00", End: "13:00"}}}, nil
}

func (f *fakeClient) CreateBooking(_ context.Context, req backend.CreateBookingRequest) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &domain.Booking{ID: "b-new", FacilityCode: req.FacilityCode, Status: domain.BookingStatusPending}, nil
}

func (f *fakeClient) MyBookings(context.Context, string) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mine, f.mineErr
}

func (f *fakeClient) AdminBookings(context.Context) ([]domain.Booking, error) {
	return f.adminRows, nil
}

func (f *fakeClient) AdminAct(_ context.Context, id string, action domain.AdminAction) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actErr != nil {
		return nil, f.actErr
	}
	f.acted = append(f.acted, id+":"+string(action))
	return &domain.Booking{ID: id, Status: action.Status()}, nil
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		facilities: []domain.Facility{
			{ID: "1", Code: "R-101", Name: "Room 101", Type: "meeting_room", Location: "HQ"},
			{ID: "2", Code: "C-1", Name: "Court 1", Type: "sports_court", Location: "Annex"},
		},
		mine: []domain.Booking{
			{ID: "b1", FacilityCode: "R-101", Status: domain.BookingStatusApproved, AccessCode: "AC-4411"},
			{ID: "b2", FacilityCode: "C-1", Status: domain.BookingStatusPending},
		},
		adminRows: []domain.Booking{
			{ID: "b2", FacilityCode: "C-1", UserName: "Jane", Status: domain.BookingStatusPending},
		},
	}
}

func newRouter(t *testing.T, client *fakeClient) (*gin.Engine, *session.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	board := notice.NewMemoryBoard()
	reg := session.NewRegistry(client, board, time.Hour)
	t.Cleanup(func() {
		reg.Close()
		_ = board.Close()
	})

	tmpl, err := web.Templates()
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	h := NewPortalHandler(reg, 0)
	root := r.Group("/", h.Session)
	h.Register(root, root.Group("/api"))
	return r, reg
}

func do(r http.Handler, method, target, form string, cookie *http.Cookie, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(form))
	if form != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookieOf(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", sessionCookie)
	return nil
}

func signIn(t *testing.T, r http.Handler) *http.Cookie {
	t.Helper()
	w := do(r, http.MethodPost, "/session", "id=S-7&name=Jane+Appleseed", nil, "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	return sessionCookieOf(t, w)
}

func TestPortal_IndexShowsSignInForm(t *testing.T) {
	r, reg := newRouter(t, newFakeClient())

	w := do(r, http.MethodGet, "/", "", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/session"`)
	assert.NotEmpty(t, sessionCookieOf(t, w).Value)
	assert.Equal(t, 1, reg.Len())
}

func TestPortal_SignInRendersGroupedCards(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())
	cookie := signIn(t, r)

	w := do(r, http.MethodGet, "/", "", cookie, "")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Jane Appleseed")
	assert.Contains(t, body, "meeting room")
	assert.Contains(t, body, "sports court")
	assert.Contains(t, body, "Room 101")
	assert.Contains(t, body, "12:00 - 13:00")
	assert.Less(t, strings.Index(body, "meeting room"), strings.Index(body, "sports court"))
	assert.Contains(t, body, "/bookings/b1/qr.png")
}

func TestPortal_SignInRequiresIdentity(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())

	w := do(r, http.MethodPost, "/session", "id=S-7&name=+", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), session.ErrEmptyIdentity.Error())
}

func TestPortal_APIRequiresIdentity(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())

	w := do(r, http.MethodGet, "/api/portal", "", nil, gin.MIMEJSON)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPortal_PageRoutesRedirectWithoutIdentity(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())

	w := do(r, http.MethodPost, "/date", "date=2026-10-20", nil, "")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestPortal_JSONView(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())
	cookie := signIn(t, r)

	w := do(r, http.MethodGet, "/api/portal", "", cookie, gin.MIMEJSON)

	require.Equal(t, http.StatusOK, w.Code)
	var resp portalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "S-7", resp.Identity.ID)
	require.Len(t, resp.Portal.Groups, 2)
	assert.Equal(t, "meeting_room", resp.Portal.Groups[0].Key)
	assert.Equal(t, availability.StateLoaded, resp.Portal.Groups[0].Cards[0].State)
	assert.Equal(t, "S-7", resp.Bookings.UserID)
	assert.Len(t, resp.Bookings.Rows, 2)
}

func TestPortal_SetDate(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())
	cookie := signIn(t, r)

	w := do(r, http.MethodPost, "/date", "date=2026-10-20", cookie, gin.MIMEJSON)

	require.Equal(t, http.StatusOK, w.Code)
	var view catalog.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "2026-10-20", view.Date)
	assert.Equal(t, "2026-10-20", view.Groups[0].Cards[0].Key.Date)
}

func TestPortal_CardView(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())
	cookie := signIn(t, r)

	w := do(r, http.MethodGet, "/api/cards/C-1", "", cookie, gin.MIMEJSON)
	require.Equal(t, http.StatusOK, w.Code)
	var view availability.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "Court 1", view.Facility.Name)

	w = do(r, http.MethodGet, "/api/cards/nope", "", cookie, gin.MIMEJSON)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPortal_SubmitBooking(t *testing.T) {
	client := newFakeClient()
	r, _ := newRouter(t, client)
	cookie := signIn(t, r)

	w := do(r, http.MethodPost, "/cards/R-101/bookings", "start=10:00&end=11:00&purpose=Standup", cookie, gin.MIMEJSON)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Booking domain.Booking `json:"booking"`
		Notice  string         `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "b-new", resp.Booking.ID)
	assert.Equal(t, catalog.SubmittedNotice, resp.Notice)

	require.Len(t, client.created, 1)
	assert.Equal(t, "R-101", client.created[0].FacilityCode)
	assert.Equal(t, "S-7", client.created[0].UserID)
	assert.Equal(t, "Jane Appleseed", client.created[0].UserName)
	assert.Equal(t, "Standup", client.created[0].Purpose)
}

func TestPortal_SubmitConflictKeepsForm(t *testing.T) {
	client := newFakeClient()
	client.createErr = &backend.StatusError{StatusCode: http.StatusConflict, Status: "Conflict"}
	r, _ := newRouter(t, client)
	cookie := signIn(t, r)

	w := do(r, http.MethodPost, "/cards/R-101/bookings", "start=12:00&end=13:00&purpose=Standup", cookie, gin.MIMEJSON)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"409 Conflict"}`, w.Body.String())

	w = do(r, http.MethodPost, "/cards/R-101/bookings", "start=12:00&end=13:00&purpose=Standup", cookie, "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/#card-R-101", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/", "", cookie, "")
	assert.Contains(t, w.Body.String(), "409 Conflict")
	assert.Contains(t, w.Body.String(), `value="Standup"`)
}

func TestPortal_SubmitUnknownFacility(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())
	cookie := signIn(t, r)

	w := do(r, http.MethodPost, "/cards/nope/bookings", "start=10:00&end=11:00", cookie, gin.MIMEJSON)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPortal_MyBookings(t *testing.T) {
	client := newFakeClient()
	r, _ := newRouter(t, client)
	cookie := signIn(t, r)

	w := do(r, http.MethodGet, "/bookings", "", cookie, gin.MIMEJSON)
	require.Equal(t, http.StatusOK, w.Code)
	var resp bookingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Rows, 2)

	client.mu.Lock()
	client.mineErr = errors.New("connection refused")
	client.mu.Unlock()

	w = do(r, http.MethodPost, "/bookings/reload", "", cookie, "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?alert=connection+refused", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/bookings", "", cookie, gin.MIMEJSON)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Rows, 2)
}

func TestPortal_SetMineUser(t *testing.T) {
	client := newFakeClient()
	r, _ := newRouter(t, client)
	cookie := signIn(t, r)

	w := do(r, http.MethodPost, "/bookings/user", "user_id=S-9", cookie, gin.MIMEJSON)

	require.Equal(t, http.StatusOK, w.Code)
	var resp bookingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "S-9", resp.UserID)
}

func TestPortal_AccessCodeQR(t *testing.T) {
	r, _ := newRouter(t, newFakeClient())
	cookie := signIn(t, r)

	w := do(r, http.MethodGet, "/bookings/b1/qr.png", "", cookie, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

	w = do(r, http.MethodGet, "/bookings/b2/qr.png", "", cookie, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/bookings/unknown/qr.png", "", cookie, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPortal_AdminActShowsReloadedStatus(t *testing.T) {
	client := newFakeClient()
	r, _ := newRouter(t, client)

	w := do(r, http.MethodGet, "/admin", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/admin/bookings/b2/approve")
	cookie := sessionCookieOf(t, w)

	w = do(r, http.MethodPost, "/admin/bookings/b2/approve", "", cookie, gin.MIMEJSON)

	require.Equal(t, http.StatusOK, w.Code)
	var view bookings.AdminView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Rows, 1)
	assert.Equal(t, domain.BookingStatusPending, view.Rows[0].Status)
	assert.Equal(t, []string{"b2:approve"}, client.acted)
}

func TestPortal_AdminActErrors(t *testing.T) {
	client := newFakeClient()
	r, _ := newRouter(t, client)

	w := do(r, http.MethodPost, "/admin/bookings/b2/cancel", "", nil, gin.MIMEJSON)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	client.actErr = &backend.StatusError{StatusCode: http.StatusNotFound, Status: "Not Found", Detail: "booking not found"}
	w = do(r, http.MethodPost, "/admin/bookings/b9/reject", "", nil, "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/admin?alert="))
}

func TestPortal_SignOutDiscardsSession(t *testing.T) {
	r, reg := newRouter(t, newFakeClient())
	cookie := signIn(t, r)
	require.Equal(t, 1, reg.Len())

	w := do(r, http.MethodPost, "/session/logout", "", cookie, "")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, 0, reg.Len())

	w = do(r, http.MethodGet, "/", "", cookie, "")
	assert.Contains(t, w.Body.String(), `action="/session"`)
}

func TestPortal_LoadButtonSameIDFetchesAgain(t *testing.T) {
	client := newFakeClient()
	r, _ := newRouter(t, client)
	cookie := signIn(t, r)

	client.mu.Lock()
	client.mine = []domain.Booking{
		{ID: "b1", FacilityCode: "R-101", Status: domain.BookingStatusApproved, AccessCode: "AC-4411"},
		{ID: "b2", FacilityCode: "C-1", Status: domain.BookingStatusApproved, AccessCode: "AC-9"},
	}
	client.mu.Unlock()

	w := do(r, http.MethodPost, "/bookings/user", "user_id=S-7", cookie, gin.MIMEJSON)

	require.Equal(t, http.StatusOK, w.Code)
	var resp bookingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, domain.BookingStatusApproved, resp.Rows[1].Status)
	assert.Equal(t, "AC-9", resp.Rows[1].AccessCode)

	w = do(r, http.MethodGet, "/bookings/b2/qr.png", "", cookie, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPortal_HandlersAfterSignOutRace(t *testing.T) {
	_, reg := newRouter(t, newFakeClient())
	h := NewPortalHandler(reg, 0)
	// the session passed requireIdentity and was then signed out
	s := reg.Ensure("")

	cases := []struct {
		name    string
		method  string
		target  string
		handler gin.HandlerFunc
	}{
		{"date", http.MethodPost, "/date", h.setDate},
		{"card", http.MethodGet, "/api/cards/R-101", h.card},
		{"submit", http.MethodPost, "/cards/R-101/bookings", h.submit},
		{"list", http.MethodGet, "/bookings", h.listMine},
		{"reload", http.MethodPost, "/bookings/reload", h.reloadMine},
		{"load", http.MethodPost, "/bookings/user", h.setMineUser},
		{"qr", http.MethodGet, "/bookings/b1/qr.png", h.accessCodeQR},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(tc.method, tc.target, strings.NewReader("user_id=S-7"))
			c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			c.Request.Header.Set("Accept", gin.MIMEJSON)
			c.Params = gin.Params{{Key: "code", Value: "R-101"}, {Key: "id", Value: "b1"}}
			c.Set(sessionKey, s)

			assert.NotPanics(t, func() { tc.handler(c) })
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
