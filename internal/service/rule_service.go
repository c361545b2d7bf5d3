package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/rule"
	pkgLog "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/util"
)

// RuleService turns each ticket link request into exactly one result.
type RuleService interface {
	// ProcessTicketLinkRequest returns an *errors.InvalidRoleError for roles
	// without a policy. Nothing is published in that case.
	ProcessTicketLinkRequest(ctx context.Context, in TicketLinkRequestInput) error
}

type ruleService struct {
	engine *rule.Engine
	prod   producer.Producer
	loc    *time.Location
	l      pkgLog.Logger
}

func NewRuleService(engine *rule.Engine, prod producer.Producer, loc *time.Location, l pkgLog.Logger) RuleService {
	if loc == nil {
		loc = time.Local
	}

	return &ruleService{
		engine: engine,
		prod:   prod,
		loc:    loc,
		l:      l,
	}
}

func (s *ruleService) ProcessTicketLinkRequest(ctx context.Context, in TicketLinkRequestInput) error {
	av, err := s.engine.Evaluate(models.Role(in.Role))
	if err != nil {
		metrics.RuleEvaluationsTotal.WithLabelValues("unknown", metrics.OutcomeInvalidRole).Inc()
		return err
	}

	if err := s.prod.PublishTicketLinkResult(ctx, kafka.TicketLinkResultEvent{
		Username:      in.Username,
		AccessToken:   av.AccessToken,
		AvailableFrom: util.FormatDateTime(av.AvailableFrom, s.loc),
	}); err != nil {
		metrics.RuleEvaluationsTotal.WithLabelValues(in.Role, metrics.OutcomeError).Inc()
		return fmt.Errorf("failed to publish ticket link result: %w", err)
	}

	metrics.RuleEvaluationsTotal.WithLabelValues(in.Role, metrics.OutcomePublished).Inc()
	s.l.Infof(ctx, "service.ruleService.ProcessTicketLinkRequest: %s (%s) available from %s",
		in.Username, in.Role, util.FormatDateTime(av.AvailableFrom, s.loc))

	return nil
}
