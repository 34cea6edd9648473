package availability

import (
	"fmt"
	"strings"

	"github.com/Domenick1991/smartaccess/internal/backend"
)

// ValidationError lists the required booking fields that were left empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required: %s", strings.Join(e.Fields, ", "))
}

func validate(req backend.CreateBookingRequest) error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"facility_code", req.FacilityCode},
		{"user_id", req.UserID},
		{"user_name", req.UserName},
		{"date", req.Date},
		{"start_time", req.StartTime},
		{"end_time", req.EndTime},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
