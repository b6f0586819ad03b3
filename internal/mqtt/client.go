// Package mqtt bridges panel actions to an MQTT broker and announces them to
// Home Assistant.
package mqtt

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicband-controller/internal/config"
	"magicband-controller/internal/core"
)

// Client is the MQTT bridge. A nil *Client is valid and does nothing.
type Client struct {
	client   mqtt.Client
	cfg      config.MQTTConfig
	commands core.CommandChannel
	prefix   string
	logger   zerolog.Logger
}

// NewClient creates the bridge, or returns nil when MQTT is disabled.
func NewClient(cfg config.MQTTConfig, commands core.CommandChannel) *Client {
	if !cfg.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep trying at startup so the agent can come up before the broker.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetOrderMatters(false)

	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:      cfg,
		commands: commands,
		prefix:   prefix,
		logger:   log.With().Str("component", "mqtt").Logger(),
	}

	opts.SetOnConnectHandler(c.onConnect)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		c.logger.Warn().Err(err).Msg("Connection lost, retrying in background")
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		c.logger.Info().Msg("Attempting to reconnect")
	})

	c.client = mqtt.NewClient(opts)

	return c
}

// Connect starts the connection loop.
func (c *Client) Connect() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.logger.Info().Str("broker", c.cfg.Broker).Msg("Starting connection loop")

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		c.logger.Error().Err(token.Error()).Msg("Initial connection error")
		return token.Error()
	}

	return nil
}

// Disconnect publishes the offline status, then closes the connection.
func (c *Client) Disconnect() {
	if c == nil || c.client == nil || !c.client.IsConnected() {
		return
	}
	c.logger.Info().Msg("Disconnecting")

	token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
	if token.WaitTimeout(2 * time.Second) {
		if token.Error() != nil {
			c.logger.Warn().Err(token.Error()).Msg("Failed to publish offline status")
		}
	} else {
		c.logger.Warn().Msg("Timed out publishing offline status")
	}

	c.client.Disconnect(250)
	c.logger.Info().Msg("Disconnected")
}

// Publish sends payload to <prefix>/<subtopic> without blocking the caller.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c == nil || c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/%s", c.prefix, subtopic)
	msg := fmt.Sprintf("%v", payload)

	token := c.client.Publish(topic, 0, retained, msg)

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				c.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("Publish error")
			}
		} else {
			c.logger.Warn().Str("topic", topic).Msg("Timeout publishing")
		}
	}()
}

// PublishResult reports how the last command went.
func (c *Client) PublishResult(r core.Result) {
	c.Publish("result", r.Status, false)
}

// PublishPending mirrors the request gate.
func (c *Client) PublishPending(pending bool) {
	c.Publish("pending", pending, true)
}

// PublishScript reports the running script, "" when idle.
func (c *Client) PublishScript(name string) {
	c.Publish("script/state", name, true)
}

func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info().Msg("Connected to broker")

	topics := map[string]mqtt.MessageHandler{
		"action/+":    c.handleAction,
		"wake":        c.handleWake,
		"script/run":  c.handleScriptRun,
		"script/stop": c.handleScriptStop,
	}

	for sub, handler := range topics {
		topic := fmt.Sprintf("%s/%s", c.prefix, sub)
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			c.logger.Error().Err(token.Error()).Str("topic", topic).Msg("Error subscribing")
		} else {
			c.logger.Info().Str("topic", topic).Msg("Subscribed")
		}
	}

	// Discovery sleeps before publishing; keep it off the paho callback.
	go func() {
		c.Publish("availability", "online", true)
		if c.cfg.HADiscoveryEnabled {
			c.PublishHADiscovery()
		}
	}()
}

// PublishHADiscovery sends the Home Assistant discovery documents.
func (c *Client) PublishHADiscovery() {
	time.Sleep(1 * time.Second)

	for topic, payload := range discoveryConfigs(c.cfg, c.prefix) {
		c.client.Publish(topic, 0, true, payload)
	}
	c.logger.Info().Str("prefix", c.cfg.HADiscoveryPrefix).Msg("HA discovery sent")
}

func (c *Client) handleAction(client mqtt.Client, msg mqtt.Message) {
	action := core.Action(msg.Topic()[strings.LastIndex(msg.Topic(), "/")+1:])
	args, err := ParsePayload(action, msg.Payload())
	if err != nil {
		c.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Ignoring message")
		return
	}
	c.commands <- core.Command{Action: action, Args: args, Source: "mqtt"}
}

func (c *Client) handleWake(client mqtt.Client, msg mqtt.Message) {
	c.commands <- core.Command{Action: core.ActionPing, Args: map[string]string{}, Source: "mqtt"}
}

func (c *Client) handleScriptRun(client mqtt.Client, msg mqtt.Message) {
	name := strings.TrimSpace(string(msg.Payload()))
	if name == "" {
		return
	}
	c.commands <- core.Command{Action: core.ActionRunScript, Args: map[string]string{"name": name}, Source: "mqtt"}
}

func (c *Client) handleScriptStop(client mqtt.Client, msg mqtt.Message) {
	c.commands <- core.Command{Action: core.ActionStopScript, Source: "mqtt"}
}
