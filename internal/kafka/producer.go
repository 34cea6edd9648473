package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/segmentio/kafka-go"
)

const (
	EventBookingRequested = "booking_requested"
	EventBookingApproved  = "booking_approved"
	EventBookingRejected  = "booking_rejected"
)

// BookingEvent records what a portal user did to a booking.
type BookingEvent struct {
	Type         string    `json:"type"`
	BookingID    string    `json:"booking_id"`
	FacilityCode string    `json:"facility_code"`
	UserID       string    `json:"user_id,omitempty"`
	UserName     string    `json:"user_name,omitempty"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType string, booking *domain.Booking) BookingEvent {
	return BookingEvent{
		Type:         eventType,
		BookingID:    booking.ID,
		FacilityCode: booking.FacilityCode,
		UserID:       booking.UserID,
		UserName:     booking.UserName,
		Date:         booking.Date,
		StartTime:    booking.StartTime,
		EndTime:      booking.EndTime,
		Status:       string(booking.Status),
		OccurredAt:   time.Now().UTC(),
	}
}

// Publisher is satisfied by Producer and NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Producer struct {
	brokers []string
	writer  *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		brokers: brokers,
		writer:  writer,
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	logger.FromContext(ctx).Debug().Str("topic", topic).Str("key", key).Msg("published event")
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	return conn.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error {
	return nil
}

var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = NopPublisher{}
)
