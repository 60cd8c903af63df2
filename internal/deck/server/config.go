package server

import "github.com/opsdeck/opsdeck/pkg/options"

type Config struct {
	HttpOptions *options.HttpOptions
	MqttOptions *options.MqttOptions
}
