package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/producer/producertest"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/rule"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
)

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "test-member" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	topic string
	msgs  chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return c.topic }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return int64(len(c.msgs)) }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

// runClaim feeds payloads through ConsumeClaim and returns the marked offsets.
func runClaim(t *testing.T, c *Consumer, topic string, payloads ...[]byte) []int64 {
	t.Helper()

	claim := &fakeClaim{topic: topic, msgs: make(chan *sarama.ConsumerMessage, len(payloads))}
	for i, p := range payloads {
		claim.msgs <- &sarama.ConsumerMessage{
			Topic:  topic,
			Offset: int64(i),
			Key:    []byte("sanjay"),
			Value:  p,
		}
	}
	close(claim.msgs)

	ss := &fakeSession{ctx: context.Background()}
	if err := c.ConsumeClaim(ss, claim); err != nil {
		t.Fatalf("ConsumeClaim error: %v", err)
	}

	return ss.marked
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

type fakeTicketLinkService struct {
	service.TicketLinkService

	mu    sync.Mutex
	errs  []error
	calls []service.TicketLinkResultInput
}

func (f *fakeTicketLinkService) HandleTicketLinkResult(_ context.Context, in service.TicketLinkResultInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, in)
	if len(f.errs) > 0 {
		err := f.errs[0]
		if len(f.errs) > 1 {
			f.errs = f.errs[1:]
		}
		return err
	}
	return nil
}

func newTestRuleConsumer(t *testing.T) (*Consumer, *producertest.Recorder) {
	t.Helper()

	l := logger.InitializeTestZapLogger()
	prod := &producertest.Recorder{}
	engine := rule.NewEngine(rule.WithLocation(time.UTC))
	rSvc := service.NewRuleService(engine, prod, time.UTC, l)

	return NewRuleConsumer(nil, kafka.DefaultTopics(), rSvc, prod, Config{Location: time.UTC}, l), prod
}

func TestRuleConsumer_PublishesResult(t *testing.T) {
	c, prod := newTestRuleConsumer(t)

	marked := runClaim(t, c, kafka.DefaultTopicRequestLink,
		mustJSON(t, kafka.TicketLinkRequestEvent{Username: "sanjay", Role: "premium"}),
	)

	if len(marked) != 1 {
		t.Fatalf("expected offset to be marked, got %v", marked)
	}
	res, ok := prod.LastResult()
	if !ok || res.Username != "sanjay" || res.AccessToken == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if prod.DeadLetterCount() != 0 {
		t.Fatalf("unexpected dead letters: %d", prod.DeadLetterCount())
	}
}

func TestRuleConsumer_DeadLettersPermanentFailures(t *testing.T) {
	c, prod := newTestRuleConsumer(t)

	marked := runClaim(t, c, kafka.DefaultTopicRequestLink,
		mustJSON(t, kafka.TicketLinkRequestEvent{Username: "sanjay", Role: "vip"}),
		[]byte("{not json"),
		mustJSON(t, kafka.TicketLinkRequestEvent{Role: "premium"}),
	)

	if len(marked) != 3 {
		t.Fatalf("expected all offsets marked, got %v", marked)
	}
	if prod.ResultCount() != 0 {
		t.Fatalf("no result must be published, got %d", prod.ResultCount())
	}
	if prod.DeadLetterCount() != 3 {
		t.Fatalf("expected 3 dead letters, got %d", prod.DeadLetterCount())
	}

	dl := prod.DeadLetters[0]
	if dl.Topic != kafka.DefaultTopicRequestLink || dl.Key != "sanjay" || dl.Offset != 0 || dl.Reason == "" {
		t.Fatalf("unexpected dead letter: %+v", dl)
	}
}

func TestRuleConsumer_DeadLettersAfterRetries(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	results := &producertest.Recorder{Err: sarama.ErrOutOfBrokers}
	dlq := &producertest.Recorder{}
	rSvc := service.NewRuleService(rule.NewEngine(rule.WithLocation(time.UTC)), results, time.UTC, l)
	c := NewRuleConsumer(nil, kafka.DefaultTopics(), rSvc, dlq, Config{
		Location:     time.UTC,
		RetryMax:     2,
		RetryBackoff: time.Millisecond,
	}, l)

	marked := runClaim(t, c, kafka.DefaultTopicRequestLink,
		mustJSON(t, kafka.TicketLinkRequestEvent{Username: "sanjay", Role: "standard"}),
	)

	if len(marked) != 1 {
		t.Fatalf("expected offset marked, got %v", marked)
	}
	if dlq.DeadLetterCount() != 1 {
		t.Fatalf("expected 1 dead letter, got %d", dlq.DeadLetterCount())
	}
	if dl := dlq.DeadLetters[0]; dl.Key != "sanjay" || dl.Reason == "" {
		t.Fatalf("unexpected dead letter: %+v", dl)
	}
}

func TestTicketingConsumer_ActivatesLink(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	svc := &fakeTicketLinkService{}
	c := NewTicketingConsumer(nil, kafka.DefaultTopics(), svc, Config{Location: time.UTC}, l)

	marked := runClaim(t, c, kafka.DefaultTopicAccessToken,
		mustJSON(t, kafka.TicketLinkResultEvent{
			Username:      "sanjay",
			AccessToken:   "tok-1",
			AvailableFrom: "2024-05-01 10:10:00",
		}),
	)

	if len(marked) != 1 || len(svc.calls) != 1 {
		t.Fatalf("expected one processed message, marked=%v calls=%d", marked, len(svc.calls))
	}

	want := time.Date(2024, 5, 1, 10, 10, 0, 0, time.UTC)
	if got := svc.calls[0]; got.Username != "sanjay" || got.AccessToken != "tok-1" || !got.AvailableFrom.Equal(want) {
		t.Fatalf("unexpected input: %+v", got)
	}
}

func TestTicketingConsumer_SkipsMalformedResult(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	svc := &fakeTicketLinkService{}
	c := NewTicketingConsumer(nil, kafka.DefaultTopics(), svc, Config{Location: time.UTC, RetryMax: 3}, l)

	marked := runClaim(t, c, kafka.DefaultTopicAccessToken,
		mustJSON(t, kafka.TicketLinkResultEvent{Username: "sanjay", AccessToken: "tok-1", AvailableFrom: "tomorrow"}),
		mustJSON(t, kafka.TicketLinkResultEvent{Username: "sanjay", AvailableFrom: "2024-05-01 10:10:00"}),
	)

	if len(marked) != 2 {
		t.Fatalf("malformed messages must still be marked, got %v", marked)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("malformed messages must not reach the service, got %d calls", len(svc.calls))
	}
}

func TestTicketingConsumer_RetriesTransientErrors(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	transient := errors.New("redis: connection refused")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
	}{
		{name: "recovers", errs: []error{transient, transient, nil}, wantCalls: 3},
		{name: "gives up", errs: []error{transient}, wantCalls: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeTicketLinkService{errs: tt.errs}
			c := NewTicketingConsumer(nil, kafka.DefaultTopics(), svc, Config{
				Location:     time.UTC,
				RetryMax:     3,
				RetryBackoff: time.Millisecond,
			}, l)

			marked := runClaim(t, c, kafka.DefaultTopicAccessToken,
				mustJSON(t, kafka.TicketLinkResultEvent{
					Username:      "sanjay",
					AccessToken:   "tok-1",
					AvailableFrom: "2024-05-01 10:10:00",
				}),
			)

			if len(svc.calls) != tt.wantCalls {
				t.Fatalf("expected %d attempts, got %d", tt.wantCalls, len(svc.calls))
			}
			if len(marked) != 1 {
				t.Fatalf("expected offset marked, got %v", marked)
			}
		})
	}
}

func TestHandle_CancelledDuringRetryIsNotMarked(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	svc := &fakeTicketLinkService{errs: []error{errors.New("transient")}}
	c := NewTicketingConsumer(nil, kafka.DefaultTopics(), svc, Config{
		Location:     time.UTC,
		RetryMax:     3,
		RetryBackoff: time.Hour,
	}, l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := c.handle(ctx, &sarama.ConsumerMessage{
		Topic: kafka.DefaultTopicAccessToken,
		Value: mustJSON(t, kafka.TicketLinkResultEvent{
			Username:      "sanjay",
			AccessToken:   "tok-1",
			AvailableFrom: "2024-05-01 10:10:00",
		}),
	})
	if ok {
		t.Fatalf("message must not be marked when the session ends mid-retry")
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(svc.calls))
	}
}

type fakeConsumerGroup struct {
	sarama.ConsumerGroup

	mu     sync.Mutex
	calls  int
	errs   chan error
	closed bool
}

func (g *fakeConsumerGroup) Consume(context.Context, []string, sarama.ConsumerGroupHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return sarama.ErrOutOfBrokers
}

func (g *fakeConsumerGroup) Errors() <-chan error { return g.errs }

func (g *fakeConsumerGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.errs)
	}
	return nil
}

func (g *fakeConsumerGroup) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestStart_WaitsBeforeRejoining(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	group := &fakeConsumerGroup{errs: make(chan error)}
	c := NewTicketingConsumer(group, kafka.DefaultTopics(), &fakeTicketLinkService{}, Config{
		Location:      time.UTC,
		RejoinBackoff: time.Hour,
	}, l)

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := group.Calls(); got != 1 {
		t.Fatalf("expected a single Consume call during backoff, got %d", got)
	}

	cancel()
	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if got := group.Calls(); got != 1 {
		t.Fatalf("cancel must stop the loop, got %d calls", got)
	}
}

func TestTopics(t *testing.T) {
	l := logger.InitializeTestZapLogger()
	c := NewTicketingConsumer(nil, kafka.DefaultTopics(), &fakeTicketLinkService{}, Config{}, l)

	if got := c.Topics(); len(got) != 1 || got[0] != kafka.DefaultTopicAccessToken {
		t.Fatalf("unexpected topics: %v", got)
	}
}
