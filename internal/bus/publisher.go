package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	firehoseChannel  = "stt:events"
	tenantChannelFmt = "stt:events:%s"

	transcriptionEventName       = "stt"
	transcriptionEventRoutingKey = "applications.stt.event"
	aiResponseEventName          = "stt_ai_response"
	aiResponseEventRoutingKey    = "applications.stt.ai_response.event"
)

// Event is the tenant-scoped envelope published for every finalized result.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RoutingKey string    `json:"routing_key"`
	TenantUUID string    `json:"tenant_uuid"`
	Timestamp  time.Time `json:"timestamp"`
	Data       EventData `json:"data"`
}

type EventData struct {
	ChannelID     string `json:"channel_id"`
	Transcription string `json:"transcription"`
}

func newEvent(name, routingKey, callID, tenantUUID, text string) Event {
	return Event{
		ID:         uuid.New().String(),
		Name:       name,
		RoutingKey: routingKey,
		TenantUUID: tenantUUID,
		Timestamp:  time.Now().UTC(),
		Data: EventData{
			ChannelID:     callID,
			Transcription: text,
		},
	}
}

func tenantChannel(tenantUUID string) string {
	return fmt.Sprintf(tenantChannelFmt, tenantUUID)
}

// Publisher fans finalized transcriptions out on the event bus. Publishing is
// fire and forget from the session's point of view; callers log failures and
// move on.
type Publisher struct {
	redis *redis.Client
	log   *slog.Logger
}

func NewPublisher(redisClient *redis.Client, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		redis: redisClient,
		log:   log.With("component", "bus_publisher"),
	}
}

func (p *Publisher) PublishTranscription(ctx context.Context, callID, tenantUUID, text string) error {
	return p.publish(ctx, newEvent(transcriptionEventName, transcriptionEventRoutingKey, callID, tenantUUID, text))
}

func (p *Publisher) PublishAIResponse(ctx context.Context, callID, tenantUUID, text string) error {
	return p.publish(ctx, newEvent(aiResponseEventName, aiResponseEventRoutingKey, callID, tenantUUID, text))
}

func (p *Publisher) publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Name, err)
	}

	if err := p.redis.Publish(ctx, firehoseChannel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", evt.Name, err)
	}
	if evt.TenantUUID != "" {
		if err := p.redis.Publish(ctx, tenantChannel(evt.TenantUUID), data).Err(); err != nil {
			return fmt.Errorf("publish tenant %s event: %w", evt.Name, err)
		}
	}

	p.log.Debug("event published", "name", evt.Name, "channel_id", evt.Data.ChannelID)
	return nil
}
