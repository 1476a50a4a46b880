package mq_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/storage/mq"
)

func memoryConfig() configs.MQConfig {
	return configs.MQConfig{Type: configs.MQTypeMemory, Common: configs.MQCommonConfig{ChannelBuffer: 16}}
}

func TestRegisteredMQTypes(t *testing.T) {
	assert.Equal(t,
		[]configs.MQType{configs.MQTypeMemory, configs.MQTypeNATS, configs.MQTypeRedis},
		mq.GetRegisteredMQTypes())

	_, err := mq.New(context.Background(), configs.MQConfig{Type: "kafka"})
	assert.Error(t, err)
}

func TestNatsOptionsFollowConfig(t *testing.T) {
	apply := func(cfg configs.MQConfig) nc.Options {
		o := nc.GetDefaultOptions()
		for _, opt := range mq.BuildNatsOptions(cfg) {
			require.NoError(t, opt(&o))
		}

		return o
	}

	cfg := configs.MQConfig{Common: configs.MQCommonConfig{ClientID: "cv", ReconnectWait: 1, PingInterval: 1, MaxPingsOut: 1, BufferSize: 1024}}

	o := apply(cfg)
	assert.True(t, o.NoRandomize)
	assert.Zero(t, o.ReconnectJitter)
	assert.Zero(t, o.ReconnectJitterTLS)
	assert.Equal(t, "cv", o.Name)

	cfg.NATS.LoadBalance = true
	cfg.Common.ReconnectJitter = true
	cfg.Common.ReconnectJitterTLS = true

	o = apply(cfg)
	assert.False(t, o.NoRandomize)
	assert.Equal(t, nc.DefaultReconnectJitter, o.ReconnectJitter)
	assert.Equal(t, nc.DefaultReconnectJitterTLS, o.ReconnectJitterTLS)
}

func TestSubscribeOptionsSkipZeroLimits(t *testing.T) {
	assert.Empty(t, mq.BuildSubscribeOptions(configs.MQNATSConfig{}))

	opts := mq.BuildSubscribeOptions(configs.MQNATSConfig{ConsumerAckWait: 30, ConsumerMaxDeliver: 3, ConsumerMaxAckPending: 100})
	assert.Len(t, opts, 3)

	opts = mq.BuildSubscribeOptions(configs.MQNATSConfig{ConsumerMaxDeliver: 5})
	assert.Len(t, opts, 1)
}

func TestMemoryConsumerReceivesMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mq.New(ctx, memoryConfig(), mq.WithMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)

	defer client.Close()

	var (
		mu  sync.Mutex
		got []string
	)

	done := make(chan struct{})

	client.AddConsumer("collector", "cv.test", func(msg *message.Message) error {
		mu.Lock()
		defer mu.Unlock()

		got = append(got, string(msg.Payload))
		if len(got) == 2 {
			close(done)
		}

		return nil
	})

	go func() { _ = client.Run(ctx) }()

	<-client.Running()
	require.NoError(t, client.HealthCheck(ctx))

	require.NoError(t, client.Publish(ctx, "cv.test",
		message.NewMessage(watermill.NewUUID(), []byte("a")),
		message.NewMessage(watermill.NewUUID(), []byte("b")),
	))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not receive messages")
	}

	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b"}, got)
	mu.Unlock()
}

func TestMemoryDirectSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mq.New(ctx, memoryConfig())
	require.NoError(t, err)

	defer client.Close()

	ch, err := client.Subscribe(ctx, "cv.direct")
	require.NoError(t, err)

	msg := message.NewMessage(watermill.NewUUID(), []byte("hello"))
	msg.Metadata.Set("action", "upload")
	require.NoError(t, client.Publish(ctx, "cv.direct", msg))

	select {
	case m := <-ch:
		assert.Equal(t, "hello", string(m.Payload))
		assert.Equal(t, "upload", m.Metadata.Get("action"))
		m.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("no message")
	}
}
