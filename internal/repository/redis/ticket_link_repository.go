package redis

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
)

const (
	fieldRequestedTime = "requested_time"
	fieldAccessToken   = "access_token"
	fieldAvailableFrom = "available_from"
)

var (
	// Insert only when no record exists for the key.
	createScript = goredis.NewScript(`
		if redis.call('EXISTS', KEYS[1]) == 1 then
			return 0
		end
		redis.call('HSET', KEYS[1], 'username', ARGV[1], 'requested_time', ARGV[2])
		return 1
	`)

	// -1: no record, 0: already activated, 1: activated now.
	activateScript = goredis.NewScript(`
		if redis.call('EXISTS', KEYS[1]) == 0 then
			return -1
		end
		if redis.call('HEXISTS', KEYS[1], 'access_token') == 1 then
			return 0
		end
		redis.call('HSET', KEYS[1], 'access_token', ARGV[1], 'available_from', ARGV[2])
		return 1
	`)

	deletePendingScript = goredis.NewScript(`
		if redis.call('HEXISTS', KEYS[1], 'access_token') == 1 then
			return 0
		end
		return redis.call('DEL', KEYS[1])
	`)
)

type redisTicketLinkRepository struct {
	cli *goredis.Client
	l   logger.Logger
}

func NewRedisTicketLinkRepository(cli *goredis.Client, l logger.Logger) repository.TicketLinkRepository {
	return &redisTicketLinkRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisTicketLinkRepository) Create(ctx context.Context, username string, requestedTime time.Time) error {
	created, err := createScript.Run(ctx, r.cli, []string{r.ticketLinkKey(username)},
		username,
		requestedTime.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		r.l.Errorf(ctx, "redisTicketLinkRepository.Create: %v", err)
		return err
	}

	if created == 0 {
		return errors.ErrTicketLinkAlreadyExists
	}

	r.l.Debugf(ctx, "redisTicketLinkRepository.Create: pending ticket link created for %s", username)

	return nil
}

func (r *redisTicketLinkRepository) Fetch(ctx context.Context, username, accessToken string) (*models.TicketLink, error) {
	fields, err := r.cli.HGetAll(ctx, r.ticketLinkKey(username)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisTicketLinkRepository.Fetch: %v", err)
		return nil, err
	}

	if len(fields) == 0 {
		return nil, errors.ErrTicketLinkNotFound
	}

	tl, err := decodeTicketLink(username, fields)
	if err != nil {
		r.l.Errorf(ctx, "redisTicketLinkRepository.Fetch: %v", err)
		return nil, err
	}

	if accessToken != "" {
		if tl.AccessToken == "" || subtle.ConstantTimeCompare([]byte(tl.AccessToken), []byte(accessToken)) != 1 {
			return nil, errors.ErrTicketLinkNotFound
		}
	}

	return tl, nil
}

func (r *redisTicketLinkRepository) Activate(ctx context.Context, username, accessToken string, availableFrom time.Time) error {
	res, err := activateScript.Run(ctx, r.cli, []string{r.ticketLinkKey(username)},
		accessToken,
		availableFrom.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		r.l.Errorf(ctx, "redisTicketLinkRepository.Activate: %v", err)
		return err
	}

	switch res {
	case -1:
		return errors.ErrTicketLinkNotFound
	case 0:
		return errors.ErrTicketLinkAlreadyActivated
	}

	r.l.Debugf(ctx, "redisTicketLinkRepository.Activate: ticket link activated for %s", username)

	return nil
}

func (r *redisTicketLinkRepository) DeletePending(ctx context.Context, username string) (bool, error) {
	deleted, err := deletePendingScript.Run(ctx, r.cli, []string{r.ticketLinkKey(username)}).Int()
	if err != nil {
		r.l.Errorf(ctx, "redisTicketLinkRepository.DeletePending: %v", err)
		return false, err
	}

	return deleted > 0, nil
}

func (r *redisTicketLinkRepository) ticketLinkKey(username string) string {
	return fmt.Sprintf("ticketing:ticket_link:%s", username)
}

func decodeTicketLink(username string, fields map[string]string) (*models.TicketLink, error) {
	tl := &models.TicketLink{
		Username:    username,
		AccessToken: fields[fieldAccessToken],
	}

	if v := fields[fieldRequestedTime]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", fieldRequestedTime, err)
		}
		tl.RequestedTime = t
	}

	if v := fields[fieldAvailableFrom]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", fieldAvailableFrom, err)
		}
		tl.AvailableFrom = &t
	}

	return tl, nil
}
