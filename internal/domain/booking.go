package domain

type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "pending"
	BookingStatusApproved BookingStatus = "approved"
	BookingStatusRejected BookingStatus = "rejected"
)

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusApproved || s == BookingStatusRejected
}

// CanTransition reports whether an admin may move a booking from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	return s == BookingStatusPending && next.IsTerminal()
}

type Booking struct {
	ID           string        `json:"_id"`
	FacilityCode string        `json:"facility_code"`
	UserID       string        `json:"user_id,omitempty"`
	UserName     string        `json:"user_name"`
	UserEmail    string        `json:"user_email,omitempty"`
	Date         string        `json:"date"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Purpose      string        `json:"purpose,omitempty"`
	Status       BookingStatus `json:"status"`
	AccessCode   string        `json:"access_code,omitempty"`
}

// AdminAction is the decision an admin applies to a pending booking.
type AdminAction string

const (
	AdminActionApprove AdminAction = "approve"
	AdminActionReject  AdminAction = "reject"
)

func (a AdminAction) Valid() bool {
	return a == AdminActionApprove || a == AdminActionReject
}

// Status is the booking status the action leads to.
func (a AdminAction) Status() BookingStatus {
	if a == AdminActionApprove {
		return BookingStatusApproved
	}
	return BookingStatusRejected
}
