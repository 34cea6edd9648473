package kafka

import (
	"context"
	"testing"

	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewBookingEvent(t *testing.T) {
	booking := &domain.Booking{
		ID:           "b1",
		FacilityCode: "R-101",
		UserID:       "S-7",
		UserName:     "Jane",
		Date:         "2026-10-19",
		StartTime:    "08:00",
		EndTime:      "09:00",
		Status:       domain.BookingStatusPending,
	}

	event := NewBookingEvent(EventBookingRequested, booking)

	assert.Equal(t, "booking_requested", event.Type)
	assert.Equal(t, "b1", event.BookingID)
	assert.Equal(t, "R-101", event.FacilityCode)
	assert.Equal(t, "pending", event.Status)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestNewProducer(t *testing.T) {
	producer := NewProducer([]string{"localhost:9092"})
	assert.NotNil(t, producer)
	assert.NoError(t, producer.Close())
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "topic", "key", map[string]string{}))
}
