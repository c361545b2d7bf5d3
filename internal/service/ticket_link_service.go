package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/producer"
	appErrors "github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository"
	pkgLog "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/util"
)

// TicketLinkService drives a user's ticket link from request to redemption.
type TicketLinkService interface {
	RequestLink(ctx context.Context, id models.Identity) (*RequestLinkOutput, error)
	GetLink(ctx context.Context, id models.Identity, host string) (*GetLinkOutput, error)
	Redeem(ctx context.Context, id models.Identity, accessToken string) (*RedeemOutput, error)
	HandleTicketLinkResult(ctx context.Context, in TicketLinkResultInput) error
}

type TicketLinkOption func(*ticketLinkService)

func WithTicketLinkClock(now func() time.Time) TicketLinkOption {
	return func(s *ticketLinkService) { s.now = now }
}

type ticketLinkService struct {
	repo repository.TicketLinkRepository
	prod producer.Producer
	loc  *time.Location
	now  func() time.Time
	l    pkgLog.Logger
}

func NewTicketLinkService(
	repo repository.TicketLinkRepository,
	prod producer.Producer,
	loc *time.Location,
	l pkgLog.Logger,
	opts ...TicketLinkOption,
) TicketLinkService {
	if loc == nil {
		loc = time.Local
	}

	s := &ticketLinkService{
		repo: repo,
		prod: prod,
		loc:  loc,
		now:  time.Now,
		l:    l,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *ticketLinkService) RequestLink(ctx context.Context, id models.Identity) (*RequestLinkOutput, error) {
	now := s.now()

	if err := s.repo.Create(ctx, id.Username, now); err != nil {
		if errors.Is(err, appErrors.ErrTicketLinkAlreadyExists) {
			metrics.TicketLinkRequestsTotal.WithLabelValues(metrics.OutcomeAlreadyRequested).Inc()
			return &RequestLinkOutput{Message: MsgAlreadyRequested}, nil
		}
		return nil, fmt.Errorf("failed to create ticket link: %w", err)
	}

	if err := s.prod.PublishTicketLinkRequest(ctx, kafka.TicketLinkRequestEvent{
		Username:      id.Username,
		Role:          id.Role.String(),
		RequestedTime: util.FormatDateTime(now, s.loc),
	}); err != nil {
		s.l.Errorf(ctx, "service.ticketLinkService.RequestLink: %v", err)
		metrics.TicketLinkRequestsTotal.WithLabelValues(metrics.OutcomePublishFailed).Inc()

		if _, delErr := s.repo.DeletePending(context.WithoutCancel(ctx), id.Username); delErr != nil {
			s.l.Errorf(ctx, "service.ticketLinkService.RequestLink: rollback for %s: %v", id.Username, delErr)
		}

		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	metrics.TicketLinkRequestsTotal.WithLabelValues(metrics.OutcomeRequested).Inc()
	s.l.Infof(ctx, "service.ticketLinkService.RequestLink: link requested for %s (%s)", id.Username, id.Role)

	return &RequestLinkOutput{Message: MsgLinkRequested}, nil
}

func (s *ticketLinkService) GetLink(ctx context.Context, id models.Identity, host string) (*GetLinkOutput, error) {
	tl, err := s.repo.Fetch(ctx, id.Username, "")
	if err != nil {
		if errors.Is(err, appErrors.ErrTicketLinkNotFound) {
			return &GetLinkOutput{Message: MsgLinkNotAvailable}, nil
		}
		return nil, fmt.Errorf("failed to fetch ticket link: %w", err)
	}

	if !tl.IsActivated() {
		return &GetLinkOutput{Message: MsgUnderProcessing}, nil
	}

	return &GetLinkOutput{
		Link: fmt.Sprintf("%s/buy_ticket/%s", host, tl.AccessToken),
	}, nil
}

func (s *ticketLinkService) Redeem(ctx context.Context, id models.Identity, accessToken string) (*RedeemOutput, error) {
	if accessToken == "" {
		metrics.TicketRedemptionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return &RedeemOutput{Message: MsgInvalidAccessToken}, nil
	}

	tl, err := s.repo.Fetch(ctx, id.Username, accessToken)
	if err != nil {
		if errors.Is(err, appErrors.ErrTicketLinkNotFound) {
			metrics.TicketRedemptionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
			return &RedeemOutput{Message: MsgInvalidAccessToken}, nil
		}
		return nil, fmt.Errorf("failed to fetch ticket link: %w", err)
	}

	if !tl.IsActivated() {
		metrics.TicketRedemptionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return &RedeemOutput{Message: MsgInvalidAccessToken}, nil
	}

	now := s.now()
	out := &RedeemOutput{
		Message:   RedemptionMessage(id.Username, *tl.AvailableFrom, now, s.loc),
		Available: tl.IsAvailableAt(now),
	}

	switch remaining := tl.AvailableFrom.Sub(now); {
	case out.Available:
		metrics.TicketRedemptionsTotal.WithLabelValues(metrics.OutcomeWelcome).Inc()
	case remaining >= time.Hour:
		metrics.TicketRedemptionsTotal.WithLabelValues(metrics.OutcomeScheduled).Inc()
	default:
		metrics.TicketRedemptionsTotal.WithLabelValues(metrics.OutcomeCountdown).Inc()
	}

	return out, nil
}

func (s *ticketLinkService) HandleTicketLinkResult(ctx context.Context, in TicketLinkResultInput) error {
	err := s.repo.Activate(ctx, in.Username, in.AccessToken, in.AvailableFrom)
	switch {
	case err == nil:
		metrics.TicketLinkActivationsTotal.WithLabelValues(metrics.OutcomeActivated).Inc()
		s.l.Infof(ctx, "service.ticketLinkService.HandleTicketLinkResult: %s available from %s",
			in.Username, util.FormatDateTime(in.AvailableFrom, s.loc))
		return nil
	case errors.Is(err, appErrors.ErrTicketLinkAlreadyActivated):
		metrics.TicketLinkActivationsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		s.l.Debugf(ctx, "service.ticketLinkService.HandleTicketLinkResult: duplicate result for %s", in.Username)
		return nil
	case errors.Is(err, appErrors.ErrTicketLinkNotFound):
		metrics.TicketLinkActivationsTotal.WithLabelValues(metrics.OutcomeOrphaned).Inc()
		s.l.Warnf(ctx, "service.ticketLinkService.HandleTicketLinkResult: no pending link for %s, result dropped", in.Username)
		return nil
	default:
		metrics.TicketLinkActivationsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("failed to activate ticket link: %w", err)
	}
}

// RedemptionMessage renders the purchase window state for username at now.
// Remaining time is truncated to whole seconds.
func RedemptionMessage(username string, availableFrom, now time.Time, loc *time.Location) string {
	if !now.Before(availableFrom) {
		return fmt.Sprintf("Hello, %s. Welcome to the ticket page", username)
	}

	remaining := int64(availableFrom.Sub(now) / time.Second)
	switch {
	case remaining >= 3600:
		return fmt.Sprintf("Page will be available from %s", util.FormatDateTime(availableFrom, loc))
	case remaining < 60:
		return fmt.Sprintf("Page will be active in %d seconds", remaining)
	default:
		return fmt.Sprintf("Page will be active in %d minutes and %d seconds", remaining/60, remaining%60)
	}
}
