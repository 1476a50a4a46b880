package mq

var (
	BuildNatsOptions      = buildNatsOptions
	BuildSubscribeOptions = buildSubscribeOptions
)
