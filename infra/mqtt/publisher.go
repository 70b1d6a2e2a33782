package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
	"github.com/wattplan/wattplan/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled   bool   `json:"enabled"`
	Broker    string `json:"broker"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	PlanTopic string `json:"plan_topic"`
	QoS       byte   `json:"qos"`
	Retained  bool   `json:"retained"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "wattplan"
	}
	if c.PlanTopic == "" {
		c.PlanTopic = "wattplan/plan"
	}
}

// Validate checks mandatory fields when the publisher is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PlanPublisher pushes committed plans to an MQTT broker as retained JSON
// for home-automation consumers.
type PlanPublisher struct {
	cli      pahoClient
	topic    string
	qos      byte
	retained bool
	log      logger.Logger
}

// NewPlanPublisher connects to the broker.
func NewPlanPublisher(cfg Config) (*PlanPublisher, error) {
	cfg.SetDefaults()
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	log := logger.New("mqtt-publisher")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &PlanPublisher{cli: c, topic: cfg.PlanTopic, qos: cfg.QoS, retained: cfg.Retained, log: log}, nil
}

type planPayload struct {
	PlanID     string      `json:"plan_id"`
	Time       time.Time   `json:"time"`
	Feasible   bool        `json:"feasible"`
	TotalCost  float64     `json:"total_cost"`
	Savings    float64     `json:"savings"`
	Decisions  interface{} `json:"decisions"`
	GuardNotes []string    `json:"guard_notes,omitempty"`
}

// PublishPlan sends the plan to the configured topic.
func (p *PlanPublisher) PublishPlan(ev coremetrics.PlanEvent) error {
	payload, err := json.Marshal(planPayload{
		PlanID:     ev.PlanID,
		Time:       ev.Time,
		Feasible:   ev.Result.Feasible,
		TotalCost:  ev.Result.TotalCost,
		Savings:    ev.Result.Savings,
		Decisions:  ev.Result.Decisions,
		GuardNotes: ev.GuardNotes,
	})
	if err != nil {
		return err
	}
	token := p.cli.Publish(p.topic, p.qos, p.retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	p.log.Infof("published plan %s to %s", ev.PlanID, p.topic)
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (p *PlanPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
