package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	pkgRedis "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/redis"
)

type redisUserRepository struct {
	cli *goredis.Client
	l   logger.Logger
}

func NewRedisUserRepository(cli *goredis.Client, l logger.Logger) repository.UserRepository {
	return &redisUserRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisUserRepository) Create(ctx context.Context, u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	ok, err := r.cli.SetNX(ctx, r.userKey(u.Username), data, 0).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Create: %v", err)
		return err
	}

	if !ok {
		return errors.ErrUserAlreadyExists
	}

	return nil
}

func (r *redisUserRepository) Get(ctx context.Context, username string) (*models.User, error) {
	data, err := r.cli.Get(ctx, r.userKey(username)).Bytes()
	if err != nil {
		if pkgRedis.IsNil(err) {
			return nil, errors.ErrUserNotFound
		}
		r.l.Errorf(ctx, "redisUserRepository.Get: %v", err)
		return nil, err
	}

	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Get: %v", err)
		return nil, err
	}

	return &u, nil
}

func (r *redisUserRepository) userKey(username string) string {
	return fmt.Sprintf("ticketing:user:%s", username)
}
