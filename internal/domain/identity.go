package domain

import "strings"

// Identity is the staff member using the portal. It is entered on the sign-in
// form and never verified: it only labels and filters bookings.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (i Identity) Empty() bool {
	return strings.TrimSpace(i.ID) == "" || strings.TrimSpace(i.Name) == ""
}
