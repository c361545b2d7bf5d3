package models

import "time"

// TicketLink gates purchase availability for one username. It is created pending
// and activated once, when the rule service's result is applied.
type TicketLink struct {
	Username      string     `json:"username"`
	RequestedTime time.Time  `json:"requested_time"`
	AccessToken   string     `json:"access_token,omitempty"`
	AvailableFrom *time.Time `json:"available_from,omitempty"`
}

type TicketLinkStatus string

const (
	TicketLinkStatusPending   TicketLinkStatus = "pending"
	TicketLinkStatusActivated TicketLinkStatus = "activated"
)

func (tl *TicketLink) IsActivated() bool {
	return tl.AccessToken != "" && tl.AvailableFrom != nil
}

func (tl *TicketLink) Status() TicketLinkStatus {
	if tl.IsActivated() {
		return TicketLinkStatusActivated
	}
	return TicketLinkStatusPending
}

// IsAvailableAt reports whether the purchase page is open at t.
func (tl *TicketLink) IsAvailableAt(t time.Time) bool {
	return tl.IsActivated() && !t.Before(*tl.AvailableFrom)
}
