package strip

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pingsantohq/netweather/internal/color"
)

const defaultMQTTTimeout = 5 * time.Second

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes frames to a WLED controller through its JSON API topic
// (normally "wled/<device>/api").
type MQTT struct {
	pub     publisher
	client  mqtt.Client
	topic   string
	leds    int
	timeout time.Duration
}

type wledState struct {
	On  bool        `json:"on"`
	Seg wledSegment `json:"seg"`
}

type wledSegment struct {
	I []string `json:"i"`
}

func DialMQTT(cfg MQTTConfig, leds int) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt topic is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMQTTTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect %s: timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	m := newMQTT(client, cfg.Topic, leds, cfg.Timeout)
	m.client = client
	return m, nil
}

func newMQTT(pub publisher, topic string, leds int, timeout time.Duration) *MQTT {
	if timeout <= 0 {
		timeout = defaultMQTTTimeout
	}
	return &MQTT{pub: pub, topic: topic, leds: leds, timeout: timeout}
}

func (m *MQTT) Write(pixels []color.RGB) error {
	if err := checkLength(pixels, m.leds); err != nil {
		return err
	}
	state := wledState{On: true, Seg: wledSegment{I: make([]string, len(pixels))}}
	for i, p := range pixels {
		state.Seg.I[i] = p.Hex()
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	token := m.pub.Publish(m.topic, 0, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish %s: timed out after %s", m.topic, m.timeout)
	}
	return token.Error()
}

func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
