package service

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/carevault/pkg/configs"
	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/internal/model"
	"github.com/yeisme/carevault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/carevault/pkg/log"
	"github.com/yeisme/carevault/pkg/metrics"
	"github.com/yeisme/carevault/pkg/queue"
)

// ConsumerName 内置审计消费者在路由器中的名称前缀.
const ConsumerName = "records.audit"

// eventEnabled 判断该动作的事件是否需要发布.
func (s *RecordService) eventEnabled(action model.Action) bool {
	if s.mqClient == nil || !s.events.Enabled {
		return false
	}

	return actionEnabled(s.events.Record, action)
}

func actionEnabled(c configs.RecordEventsConfig, action model.Action) bool {
	switch action {
	case model.ActionUpload:
		return c.Uploaded
	case model.ActionDownload:
		return c.Downloaded
	case model.ActionDecrypt:
		return c.Decrypted
	case model.ActionReceive:
		return c.Received
	case model.ActionSearch:
		return c.Searched
	default:
		return false
	}
}

// publish 发布病历操作事件，失败只记日志，不影响请求结果.
func (s *RecordService) publish(ctx context.Context, rec *model.Record, action model.Action, detail string) {
	if !s.eventEnabled(action) {
		return
	}

	opts := []func(*queue.EventHeader){queue.WithProducer(configs.AppName)}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, queue.WithTraceID(sc.TraceID().String()))
	}

	topic, msg, err := queue.NewRecordActionMessage(queue.RecordActionPayload{
		RecordID:  rec.ID,
		PatientID: rec.PatientID,
		Action:    string(action),
		Actor:     ctxPkg.Actor(ctx),
		Detail:    detail,
	}, opts...)
	if err == nil {
		err = s.mqClient.Publish(ctx, topic, msg)
	}

	if err != nil {
		l := s.log(ctx)
		l.Warn().Err(err).Str("action", string(action)).Msg("failed to publish record event")
	}
}

// RegisterConsumers 为每个病历主题注册审计消费者.
func RegisterConsumers(client *mq.Client, events configs.EventsConfig) error {
	if client == nil {
		return errors.New("mq client is nil")
	}

	if !events.Enabled || !events.Consumer {
		return nil
	}

	for _, topic := range queue.RecordTopics {
		client.AddConsumer(ConsumerName+"."+topic, topic, HandleRecordEvent)
	}

	return nil
}

// HandleRecordEvent 记录收到的病历事件. 无法解析的消息直接确认丢弃，避免反复重投.
func HandleRecordEvent(msg *message.Message) error {
	l := nlog.Logger().With().Str("component", "records.consumer").Str("uuid", msg.UUID).Logger()

	evt, err := queue.ParseRecordAction(msg)
	if err != nil {
		metrics.RecordEvents.WithLabelValues("malformed").Inc()
		l.Warn().Err(err).Msg("drop malformed record event")

		return nil
	}

	action := evt.Payload.Action
	if _, ok := queue.TopicForAction(action); !ok {
		action = "unknown"
	}

	metrics.RecordEvents.WithLabelValues(action).Inc()

	l.Info().
		Str("topic", evt.Header.Topic).
		Str("trace_id", evt.Header.TraceID).
		Str("action", evt.Payload.Action).
		Str("actor", evt.Payload.Actor).
		Int64("patient_id", evt.Payload.PatientID).
		Uint("record_id", evt.Payload.RecordID).
		Time("occurred_at", evt.Header.OccurredAt).
		Msg("record event")

	return nil
}
