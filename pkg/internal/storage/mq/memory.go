package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/carevault/pkg/configs"
)

func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory 进程内 gochannel，publisher 与 subscriber 是同一个实例.
func memoryFactory(_ context.Context, cfg configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.Common.ChannelBuffer,
	}, logger)

	return ch, noopCloseSubscriber{ch}, nil
}

// noopCloseSubscriber 避免 Client.Close 对同一个 GoChannel 关闭两次.
type noopCloseSubscriber struct {
	message.Subscriber
}

func (noopCloseSubscriber) Close() error { return nil }
