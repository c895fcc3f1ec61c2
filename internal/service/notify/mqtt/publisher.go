package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nkiryanov/smarthome/internal/service/notify"
)

const (
	DefaultTopicPrefix = "smarthome/notify"

	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultQoS               = 1
)

var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
)

type Config struct {
	// Broker url, e.g. 'tcp://localhost:1883'
	Broker   string
	ClientID string
	Username string
	Password string

	// Messages go to '<prefix>/admin' and '<prefix>/user/<chat id>'
	TopicPrefix string
}

// Part of paho client the publisher needs
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token
}

// Publisher sends notifications as MQTT messages
// Home automation bridges subscribed to the topics deliver them further
type Publisher struct {
	client publisher
	prefix string

	disconnect func()
}

type payload struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Connect to the broker
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: broker must not be empty", ErrConnectionFailed)
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := newPublisher(client, cfg.TopicPrefix)
	p.disconnect = func() { client.Disconnect(defaultDisconnectQuiesce) }
	return p, nil
}

func newPublisher(client publisher, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}

	return &Publisher{
		client:     client,
		prefix:     strings.TrimRight(prefix, "/"),
		disconnect: func() {},
	}
}

func (p *Publisher) Topic(msg notify.Message) string {
	if msg.Admin {
		return p.prefix + "/admin"
	}
	return p.prefix + "/user/" + strconv.FormatInt(msg.ChatID, 10)
}

func (p *Publisher) Send(ctx context.Context, msg notify.Message) error {
	body, err := json.Marshal(payload{Text: msg.Text, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	token := p.client.Publish(p.Topic(msg), defaultQoS, false, body)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-time.After(defaultPublishTimeout):
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.disconnect()
}
