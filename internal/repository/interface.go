package repository

import (
	"context"
	"time"

	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
)

// TicketLinkRepository persists one TicketLink per username.
//
// Create, Activate and DeletePending are each atomic per username.
type TicketLinkRepository interface {
	// Create inserts a pending link. ErrTicketLinkAlreadyExists if one exists.
	Create(ctx context.Context, username string, requestedTime time.Time) error
	// Fetch returns the link for username. When accessToken is non-empty the stored
	// token must match, otherwise ErrTicketLinkNotFound is returned.
	Fetch(ctx context.Context, username, accessToken string) (*models.TicketLink, error)
	// Activate sets token and availability together. ErrTicketLinkNotFound if no
	// record exists, ErrTicketLinkAlreadyActivated (record untouched) on repeats.
	Activate(ctx context.Context, username, accessToken string, availableFrom time.Time) error
	// DeletePending removes the link only while it is still pending.
	DeletePending(ctx context.Context, username string) (bool, error)
}

type UserRepository interface {
	// Create inserts u. ErrUserAlreadyExists if the username is taken.
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, username string) (*models.User, error)
}
