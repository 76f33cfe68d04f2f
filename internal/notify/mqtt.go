package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/joshp123/xiqsync/internal/config"
	"github.com/joshp123/xiqsync/internal/syncer"
)

const publishTimeout = 10 * time.Second

// Status is the JSON document published after every run.
type Status struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	AccessPoints int       `json:"access_points"`
	SSIDDevices  int       `json:"ssid_devices"`
	Stored       int       `json:"stored"`
	Relogin      bool      `json:"relogin"`
	Error        string    `json:"error,omitempty"`
}

func StatusFromResult(r syncer.Result) Status {
	status := Status{
		StartedAt:    r.StartedAt.UTC(),
		FinishedAt:   r.FinishedAt.UTC(),
		AccessPoints: r.AccessPoints,
		SSIDDevices:  r.SSIDDevices,
		Stored:       r.Stored,
		Relogin:      r.Relogin,
	}
	if r.Err != nil {
		status.Error = r.Err.Error()
	}
	return status
}

// tokenPublisher is the part of mqtt.Client the Publisher needs.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends run summaries to an MQTT topic as retained messages.
type Publisher struct {
	client tokenPublisher
	topic  string
	close  func()
}

// Dial connects to the configured broker.
func Dial(cfg config.MQTTConfig) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = randomClientID()
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		close:  func() { client.Disconnect(250) },
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, result syncer.Result) error {
	payload, err := json.Marshal(StatusFromResult(result))
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish %s: timeout", p.topic)
	}
	return token.Error()
}

func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}

func randomClientID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("xiqsync-%d", time.Now().UnixNano())
	}
	return "xiqsync-" + hex.EncodeToString(buf)
}
