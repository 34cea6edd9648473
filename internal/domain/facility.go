package domain

// Facility is a bookable room, court or space as listed by the backend.
type Facility struct {
	ID       string `json:"_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

// Interval is a busy period in local wall-clock time ("HH:MM").
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Availability is the busy picture of one facility on one date.
type Availability struct {
	FacilityCode  string     `json:"-"`
	Date          string     `json:"-"`
	FullyOccupied bool       `json:"fully_occupied"`
	Unavailable   []Interval `json:"unavailable"`
}

// AllDayAvailable reports whether no interval is marked busy.
func (a *Availability) AllDayAvailable() bool {
	return a == nil || len(a.Unavailable) == 0
}
