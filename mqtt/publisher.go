// Package mqtt pushes the published facts to an MQTT broker, with Home
// Assistant discovery so the sensors show up without manual setup.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/cadsdf/ostromd/config"
	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/facts"
)

const publishTimeout = 5 * time.Second

type Publisher struct {
	client          paho.Client
	logger          *slog.Logger
	loc             *time.Location
	topicPrefix     string
	discoveryPrefix string
}

func New(cnfg config.AppConfigMqtt, loc *time.Location) *Publisher {
	logger := slog.Default().With("module", "mqtt")
	prefix := cnfg.GetTopicPrefix()

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cnfg.Host, cnfg.Port))
	opts.SetClientID("ostromd")
	opts.SetUsername(cnfg.Username)
	opts.SetPassword(cnfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetWill(prefix+"/availability", "offline", 0, true)
	opts.OnConnectionLost = func(client paho.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqttLogger := slog.Default().With("module", "mqtt-client")
	paho.CRITICAL = newMqttLogger(mqttLogger, slog.LevelError)
	paho.ERROR = newMqttLogger(mqttLogger, slog.LevelError)
	paho.WARN = newMqttLogger(mqttLogger, slog.LevelWarn)

	p := &Publisher{
		logger:          logger,
		loc:             loc,
		topicPrefix:     prefix,
		discoveryPrefix: cnfg.GetDiscoveryPrefix(),
	}

	opts.OnConnect = func(client paho.Client) {
		logger.Info("MQTT connected")
		// Discovery and availability are retained, re-announce on every
		// (re)connect so a restarted broker picks them up again.
		if err := p.announce(); err != nil {
			logger.Error("MQTT announce failed", slog.Any("error", err))
		}
	}

	p.client = paho.NewClient(opts)
	return p
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (p *Publisher) Disconnect() {
	p.logger.Info("disconnecting MQTT client")
	p.publish(p.topicPrefix+"/availability", "offline", true)
	p.client.Disconnect(250)
}

// Publish pushes the derived facts as one retained state document.
// Sensors pick their values out of it with value templates.
func (p *Publisher) Publish(snap coordinator.Snapshot) {
	f := facts.Build(snap, time.Now(), p.loc)
	payload, err := json.Marshal(f)
	if err != nil {
		p.logger.Error("encoding facts for MQTT", slog.Any("error", err))
		return
	}
	p.publish(p.topicPrefix+"/state", string(payload), true)
}

func (p *Publisher) announce() error {
	if err := p.publishDiscovery(); err != nil {
		return err
	}
	p.publish(p.topicPrefix+"/availability", "online", true)
	return nil
}

func (p *Publisher) publish(topic, payload string, retained bool) {
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn("MQTT publish timed out", slog.String("topic", topic))
		return
	}
	if token.Error() != nil {
		p.logger.Error("MQTT publish failed", slog.String("topic", topic), slog.Any("error", token.Error()))
	}
}
