// Package rule maps a role and a processing time to an access token and the
// moment the ticket purchase page opens for that role.
package rule

import (
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/util"
)

const StandardDelay = 10 * time.Minute

// Availability is the outcome of evaluating a request.
type Availability struct {
	AccessToken   string
	AvailableFrom time.Time
}

// Engine evaluates requests against the fixed role policy table.
type Engine struct {
	now      func() time.Time
	newToken func() string
	loc      *time.Location
}

type Option func(*Engine)

// WithClock replaces the wall clock used at evaluation time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTokenGenerator replaces the access token source.
func WithTokenGenerator(gen func() string) Option {
	return func(e *Engine) { e.newToken = gen }
}

// WithLocation sets the time zone in which "start of next day" is computed.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:      time.Now,
		newToken: NewAccessToken,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes a fresh token and the availability time for role at the current time.
func (e *Engine) Evaluate(role models.Role) (Availability, error) {
	from, err := AvailableFrom(role, e.now().In(e.loc))
	if err != nil {
		return Availability{}, err
	}

	return Availability{
		AccessToken:   e.newToken(),
		AvailableFrom: from,
	}, nil
}

// AvailableFrom applies the role policy to now:
// premium opens immediately, standard after ten minutes and guest at the start
// of the next calendar day in now's location.
func AvailableFrom(role models.Role, now time.Time) (time.Time, error) {
	switch role {
	case models.RolePremium:
		return now, nil
	case models.RoleStandard:
		return now.Add(StandardDelay), nil
	case models.RoleGuest:
		return util.StartOfNextDay(now), nil
	default:
		return time.Time{}, &errors.InvalidRoleError{Role: string(role)}
	}
}

// NewAccessToken returns a random (version 4) UUID string.
func NewAccessToken() string {
	return uuid.NewString()
}
