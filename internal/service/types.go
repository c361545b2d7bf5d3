package service

import (
	"time"

	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
)

const (
	MsgLinkRequested      = "link requested"
	MsgAlreadyRequested   = "ticket already requested"
	MsgUnderProcessing    = "Your request is under processing"
	MsgLinkNotAvailable   = "link not available, please request a link"
	MsgInvalidAccessToken = "invalid access token"
)

type RegisterInput struct {
	Username string      `json:"username" validate:"required,max=64"`
	Password string      `json:"password" validate:"required,max=72"`
	Role     models.Role `json:"role" validate:"required,oneof=premium standard guest"`
}

type RegisterOutput struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type LoginOutput struct {
	BearerToken string    `json:"bearer_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

type RequestLinkOutput struct {
	Message string `json:"message"`
}

// GetLinkOutput carries either Link or Message.
type GetLinkOutput struct {
	Link    string `json:"link,omitempty"`
	Message string `json:"message,omitempty"`
}

type RedeemOutput struct {
	Message string `json:"message"`
	// Available is false for every outcome other than the welcome message.
	Available bool `json:"-"`
}

type TicketLinkRequestInput struct {
	Username string
	Role     string
}

type TicketLinkResultInput struct {
	Username      string
	AccessToken   string
	AvailableFrom time.Time
}
