package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/carevault/pkg/configs"
)

const (
	DefaultDrainTimeout   = 30 * time.Second
	DefaultFlusherTimeout = 10 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// buildNatsOptions 构建 NATS 连接选项.
func buildNatsOptions(cfg configs.MQConfig) []nc.Option {
	c := cfg.Common

	opts := []nc.Option{
		nc.Name(c.ClientID),
		nc.MaxReconnects(c.MaxReconnects),
		nc.ReconnectWait(time.Duration(c.ReconnectWait) * time.Second),
		nc.PingInterval(time.Duration(c.PingInterval) * time.Second),
		nc.MaxPingsOutstanding(c.MaxPingsOut),
		nc.ReconnectBufSize(c.BufferSize),
		nc.DrainTimeout(DefaultDrainTimeout),
		nc.FlusherTimeout(DefaultFlusherTimeout),
		nc.RetryOnFailedConnect(!c.StrictConnect),
		nc.ReconnectJitter(reconnectJitter(c)),
	}

	if !cfg.NATS.LoadBalance {
		opts = append(opts, nc.DontRandomize())
	}

	return appendAuthOptions(opts, cfg)
}

// reconnectJitter 返回普通连接与 TLS 连接的重连抖动上限，关闭时为 0.
func reconnectJitter(c configs.MQCommonConfig) (time.Duration, time.Duration) {
	var plain, tls time.Duration

	if c.ReconnectJitter {
		plain = nc.DefaultReconnectJitter
	}

	if c.ReconnectJitterTLS {
		tls = nc.DefaultReconnectJitterTLS
	}

	return plain, tls
}

// appendAuthOptions 添加认证选项，JWT 优先于 NKey，再次是用户名密码.
func appendAuthOptions(opts []nc.Option, cfg configs.MQConfig) []nc.Option {
	switch {
	case cfg.NATS.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.NATS.JWT, cfg.NATS.NKey))
	case cfg.NATS.NKey != "":
		opts = append(opts, nc.Nkey(cfg.NATS.NKey, nil))
	case cfg.Common.User != "":
		opts = append(opts, nc.UserInfo(cfg.Common.User, cfg.Common.Password))
	}

	return opts
}

// buildJetStreamConfig 构建 JetStream 配置.
func buildJetStreamConfig(cfg configs.MQNATSConfig, logger watermill.LoggerAdapter) nats.JetStreamConfig {
	jsCfg := nats.JetStreamConfig{Disabled: !cfg.JetStreamEnabled}

	if cfg.JetStreamEnabled {
		jsCfg.AutoProvision = cfg.JetStreamAutoProvision
		jsCfg.TrackMsgId = cfg.JetStreamTrackMsgID
		jsCfg.AckAsync = cfg.JetStreamAckAsync
		jsCfg.DurablePrefix = cfg.JetStreamDurablePrefix
		jsCfg.SubscribeOptions = buildSubscribeOptions(cfg)

		logger.Debug("JetStream 配置", watermill.LogFields{
			"auto_provision":  cfg.JetStreamAutoProvision,
			"track_msg_id":    cfg.JetStreamTrackMsgID,
			"ack_async":       cfg.JetStreamAckAsync,
			"durable_prefix":  cfg.JetStreamDurablePrefix,
			"ack_wait":        cfg.ConsumerAckWait,
			"max_deliver":     cfg.ConsumerMaxDeliver,
			"max_ack_pending": cfg.ConsumerMaxAckPending,
		})
	}

	return jsCfg
}

// buildSubscribeOptions 把消费者限制转换为订阅选项，0 值沿用服务端默认.
func buildSubscribeOptions(cfg configs.MQNATSConfig) []nc.SubOpt {
	var opts []nc.SubOpt

	if cfg.ConsumerAckWait > 0 {
		opts = append(opts, nc.AckWait(time.Duration(cfg.ConsumerAckWait)*time.Second))
	}

	if cfg.ConsumerMaxDeliver > 0 {
		opts = append(opts, nc.MaxDeliver(cfg.ConsumerMaxDeliver))
	}

	if cfg.ConsumerMaxAckPending > 0 {
		opts = append(opts, nc.MaxAckPending(cfg.ConsumerMaxAckPending))
	}

	return opts
}

// buildURL 集群地址优先.
func buildURL(cfg configs.MQConfig) string {
	if len(cfg.NATS.ClusterURLs) > 0 {
		return strings.Join(cfg.NATS.ClusterURLs, ",")
	}

	return cfg.Common.URL
}

// natsFactory 创建 NATS Publisher & Subscriber.
func natsFactory(_ context.Context, cfg configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	opts := buildNatsOptions(cfg)
	jsCfg := buildJetStreamConfig(cfg.NATS, logger)
	marshaler := &nats.JSONMarshaler{}
	url := buildURL(cfg)

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		JetStream:   jsCfg,
		Marshaler:   marshaler,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:         url,
		NatsOptions: opts,
		JetStream:   jsCfg,
		Unmarshaler: marshaler,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, nil, err
	}

	return pub, sub, nil
}
