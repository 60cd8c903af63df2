package deck

import (
	"fmt"
	"os"

	"github.com/opsdeck/opsdeck/internal/pkg/mqtt/paths"
	"github.com/opsdeck/opsdeck/pkg/log"
	"github.com/opsdeck/opsdeck/pkg/mqtt"
	"github.com/opsdeck/opsdeck/pkg/mqtt/topic"
	"github.com/opsdeck/opsdeck/pkg/options"
)

func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("opsdeck-%s-%s", opts.DeckID, hostname)
	}

	cfg.Will = &mqtt.Message{
		Topic:   topic.NewBuilder(opts.TopicRoot).Build(paths.Presence, opts.DeckID),
		Payload: []byte(paths.Offline),
		QoS:     1,
		Retain:  true,
	}

	mqttclient, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return mqttclient, nil
}
