// Package mq 基于 Watermill 提供统一的消息发布与订阅.
//
// 支持的 MQ 类型：
//   - memory: 进程内 gochannel，默认
//   - nats: NATS（可选 JetStream）
//   - redis: Redis Pub/Sub
//
// Client 同时持有一个 message.Router，消费者通过 AddConsumer 注册，Run 启动.
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/carevault/pkg/configs"
	nlog "github.com/yeisme/carevault/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型（已排序）.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher、Subscriber 与 Router.
type Client struct {
	Type configs.MQType

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	logger     watermill.LoggerAdapter
}

// Option 调整 New 的行为.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithMetrics 用给定的注册表装饰 publisher、subscriber 与 router.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New 按配置初始化消息队列.
func New(ctx context.Context, cfg configs.MQConfig, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLoggerAdapter(nlog.Logger())

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create router: %w", err), pub.Close(), sub.Close())
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			Logger:          logger,
		}.Middleware,
	)

	if o.registerer != nil {
		builder := metrics.NewPrometheusMetricsBuilder(o.registerer, configs.AppName, "mq")
		builder.AddPrometheusRouterMetrics(router)

		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("MQ 已初始化")

	return &Client{Type: cfg.Type, publisher: pub, subscriber: sub, router: router, logger: logger}, nil
}

// Publish 发布消息.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return errors.New("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 直接订阅主题，调用方负责 Ack/Nack.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, errors.New("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// AddConsumer 注册一个只消费不转发的处理器，需在 Run 之前调用.
func (c *Client) AddConsumer(name, topic string, h message.NoPublishHandlerFunc) {
	c.router.AddNoPublisherHandler(name, topic, c.subscriber, h)
}

// Run 启动 router，阻塞直到 ctx 取消或 router 关闭.
func (c *Client) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running 在 router 启动完成后关闭.
func (c *Client) Running() chan struct{} {
	return c.router.Running()
}

// HealthCheck 检查 router 与连接状态.
func (c *Client) HealthCheck(_ context.Context) error {
	if c == nil || c.publisher == nil {
		return errors.New("mq not initialized")
	}

	if c.router.IsClosed() {
		return errors.New("mq router closed")
	}

	return nil
}

// Close 关闭 router 与底层连接.
func (c *Client) Close() error {
	var errs []error

	if c.router != nil {
		errs = append(errs, c.router.Close())
	}

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil {
		errs = append(errs, c.subscriber.Close())
	}

	return errors.Join(errs...)
}
