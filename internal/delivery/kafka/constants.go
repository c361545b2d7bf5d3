package kafka

import "github.com/vogiaan1904/ticketbottle-ticketlink/config"

const (
	DefaultTopicRequestLink           = "request_link_queue"
	DefaultTopicAccessToken           = "access_token_queue"
	DefaultTopicRequestLinkDeadLetter = "request_link_queue.dlq"

	HeaderTimestamp = "timestamp"
	HeaderReason    = "reason"
)

// Topics names the request, result and dead-letter channels.
type Topics struct {
	RequestLink           string
	AccessToken           string
	RequestLinkDeadLetter string
}

func DefaultTopics() Topics {
	return Topics{
		RequestLink:           DefaultTopicRequestLink,
		AccessToken:           DefaultTopicAccessToken,
		RequestLinkDeadLetter: DefaultTopicRequestLinkDeadLetter,
	}
}

// TopicsFromConfig falls back to the default name for any topic left empty.
func TopicsFromConfig(cfg config.KafkaConfig) Topics {
	t := DefaultTopics()
	if cfg.RequestLinkTopic != "" {
		t.RequestLink = cfg.RequestLinkTopic
	}
	if cfg.AccessTokenTopic != "" {
		t.AccessToken = cfg.AccessTokenTopic
	}
	if cfg.RequestLinkDeadLetter != "" {
		t.RequestLinkDeadLetter = cfg.RequestLinkDeadLetter
	}
	return t
}
