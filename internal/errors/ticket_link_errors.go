package errors

import "errors"

var (
	ErrTicketLinkAlreadyExists    = errors.New("ticket link already requested")
	ErrTicketLinkNotFound         = errors.New("ticket link not found")
	ErrTicketLinkAlreadyActivated = errors.New("ticket link already activated")
)
