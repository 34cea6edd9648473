package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/google/uuid"
)

// Client is the booking backend as seen by the portal. Every call is a fresh
// round trip: nothing is cached and nothing is retried.
type Client interface {
	ListFacilities(ctx context.Context) ([]domain.Facility, error)
	SeedFacilities(ctx context.Context) ([]domain.Facility, error)
	Availability(ctx context.Context, facilityCode, date string) (*domain.Availability, error)
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error)
	MyBookings(ctx context.Context, userID string) ([]domain.Booking, error)
	AdminBookings(ctx context.Context) ([]domain.Booking, error)
	AdminAct(ctx context.Context, bookingID string, action domain.AdminAction) (*domain.Booking, error)
}

type CreateBookingRequest struct {
	FacilityCode string `json:"facility_code"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Purpose      string `json:"purpose,omitempty"`
}

type adminActionRequest struct {
	Action domain.AdminAction `json:"action"`
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) ListFacilities(ctx context.Context) ([]domain.Facility, error) {
	var out []domain.Facility
	if err := c.doJSON(ctx, http.MethodGet, "/api/facilities", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	return out, nil
}

// SeedFacilities asks the backend to create its demo catalog. Backends that
// answer with an empty acknowledgement yield a nil slice.
func (c *HTTPClient) SeedFacilities(ctx context.Context) ([]domain.Facility, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/facilities/seed", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("seed facilities: %w", err)
	}

	var out []domain.Facility
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("seed facilities: decode: %w", err)
		}
	}
	return out, nil
}

func (c *HTTPClient) Availability(ctx context.Context, facilityCode, date string) (*domain.Availability, error) {
	query := url.Values{}
	query.Set("facility_code", facilityCode)
	query.Set("date", date)

	out := &domain.Availability{}
	if err := c.doJSON(ctx, http.MethodGet, "/api/availability?"+query.Encode(), nil, nil, out); err != nil {
		return nil, fmt.Errorf("availability for %s on %s: %w", facilityCode, date, err)
	}
	out.FacilityCode = facilityCode
	out.Date = date
	return out, nil
}

func (c *HTTPClient) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("create booking: encode: %w", err)
	}

	headers := http.Header{}
	headers.Set("Idempotency-Key", uuid.NewString())

	out := &domain.Booking{}
	if err := c.doJSON(ctx, http.MethodPost, "/api/bookings", bytes.NewReader(body), headers, out); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) MyBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	var out []domain.Booking
	path := "/api/bookings/mine?user_id=" + url.QueryEscape(userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("my bookings: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) AdminBookings(ctx context.Context) ([]domain.Booking, error) {
	var out []domain.Booking
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/bookings", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("admin bookings: %w", err)
	}
	return out, nil
}

// AdminAct applies action to a booking. Backends that only acknowledge the
// action yield a zero Booking.
func (c *HTTPClient) AdminAct(ctx context.Context, bookingID string, action domain.AdminAction) (*domain.Booking, error) {
	body, err := json.Marshal(adminActionRequest{Action: action})
	if err != nil {
		return nil, fmt.Errorf("admin %s: encode: %w", action, err)
	}

	var raw json.RawMessage
	path := fmt.Sprintf("/api/bookings/%s/admin", url.PathEscape(bookingID))
	if err := c.doJSON(ctx, http.MethodPost, path, bytes.NewReader(body), nil, &raw); err != nil {
		return nil, fmt.Errorf("admin %s %s: %w", action, bookingID, err)
	}

	out := &domain.Booking{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("admin %s %s: decode: %w", action, bookingID, err)
		}
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body io.Reader, headers http.Header, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.FromContext(ctx).Debug().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return err
	}
	defer resp.Body.Close()

	logger.FromContext(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newStatusError(resp, payload)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}

var _ Client = (*HTTPClient)(nil)
