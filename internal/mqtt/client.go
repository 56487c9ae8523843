package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  pahomqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	log             *slog.Logger
}

// NewClient creates a new MQTT client from the application settings.
func NewClient(settings *conf.Settings) Client {
	return &client{
		config: Config{
			Broker:            settings.MQTT.Broker,
			ClientID:          settings.Main.Name,
			Username:          settings.MQTT.Username,
			Password:          settings.MQTT.Password,
			Topic:             settings.MQTT.Topic,
			Retain:            settings.MQTT.Retain,
			ReconnectCooldown: 5 * time.Second,
			ReconnectDelay:    time.Second,
		},
		log: logging.ForService("mqtt"),
	}
}

// Connect attempts to establish a connection to the MQTT broker.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt))
	}
	c.lastConnAttempt = time.Now()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(c.config.ReconnectDelay)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		c.log.Info("connected to MQTT broker", "broker", c.config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.Warn("connection to MQTT broker lost", "broker", c.config.Broker, "error", err)
	})

	c.internalClient = pahomqtt.NewClient(opts)

	token := c.internalClient.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker %s: %w", c.config.Broker, err)
	}
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	return token.Error()
}

// IsConnected returns true if the client is currently connected to the broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
	}
}
