package kafka

import "time"

// Published BY the ticketing service, consumed by the rule service.

type TicketLinkRequestEvent struct {
	Username      string `json:"username"`
	Role          string `json:"role"`
	RequestedTime string `json:"requested_time,omitempty"` // YYYY-MM-DD HH:MM:SS
}

// Published BY the rule service, consumed by the ticketing service.

type TicketLinkResultEvent struct {
	Username      string `json:"username"`
	AccessToken   string `json:"access_token"`
	AvailableFrom string `json:"available_from"` // YYYY-MM-DD HH:MM:SS
}

// DeadLetterEvent carries a message that can never be processed.
type DeadLetterEvent struct {
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key,omitempty"`
	Payload   string    `json:"payload"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}
