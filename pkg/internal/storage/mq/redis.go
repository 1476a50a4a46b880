package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/carevault/pkg/configs"
)

// envelope Redis Pub/Sub 只传字节，UUID 与元数据一起编码.
type envelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher Redis Publisher 实现.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Subscriber 实现，每次 Subscribe 建立独立的 PubSub.
type RedisSubscriber struct {
	client *redis.Client
	buffer int64
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

func newRedisClient(cfg configs.MQRedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// redisFactory 创建 Redis Publisher & Subscriber，两者各用一个连接.
func redisFactory(ctx context.Context, cfg configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	pubClient := newRedisClient(cfg.Redis)
	if err := pubClient.Ping(ctx).Err(); err != nil {
		_ = pubClient.Close()

		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	buffer := cfg.Common.ChannelBuffer
	if buffer <= 0 {
		buffer = configs.DefaultMQBuffer
	}

	sub := &RedisSubscriber{
		client:  newRedisClient(cfg.Redis),
		buffer:  buffer,
		logger:  logger,
		closeCh: make(chan struct{}),
	}

	return &RedisPublisher{client: pubClient}, sub, nil
}

// Publish 实现 Publisher 接口.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(envelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return fmt.Errorf("marshal message %s: %w", msg.UUID, err)
		}

		ctx := msg.Context()
		if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close 实现 Publisher 接口.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Subscribe 实现 Subscriber 接口，消息被 Ack 或 Nack 后才投递下一条.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("redis subscriber closed")
	}

	ps := s.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()

		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s.subs = append(s.subs, ps)

	out := make(chan *message.Message, s.buffer)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}

				var env envelope
				if err := sonic.Unmarshal([]byte(raw.Payload), &env); err != nil {
					s.logger.Error("drop malformed redis message", err, watermill.LogFields{"topic": topic})

					continue
				}

				if !s.deliver(ctx, out, env) {
					return
				}
			}
		}
	}()

	return out, nil
}

// deliver 投递一条消息，Nack 时重投；返回 false 表示订阅应结束.
func (s *RedisSubscriber) deliver(ctx context.Context, out chan<- *message.Message, env envelope) bool {
	for {
		msg := message.NewMessage(env.UUID, env.Payload)
		for k, v := range env.Metadata {
			msg.Metadata.Set(k, v)
		}

		msg.SetContext(ctx)

		select {
		case out <- msg:
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}

		select {
		case <-msg.Acked():
			return true
		case <-msg.Nacked():
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Close 实现 Subscriber 接口.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	close(s.closeCh)

	var errs []error
	for _, ps := range s.subs {
		errs = append(errs, ps.Close())
	}
	s.mu.Unlock()

	s.wg.Wait()

	return errors.Join(append(errs, s.client.Close())...)
}
