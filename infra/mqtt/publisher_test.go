package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
	"github.com/wattplan/wattplan/core/model"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	connected  bool
	connectErr error
	publishErr error

	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Connect() paho.Token {
	if c.connectErr == nil {
		c.connected = true
	}
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) Disconnect(uint) { c.connected = false }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.topic = topic
	c.qos = qos
	c.retained = retained
	c.payload = payload.([]byte)
	return &fakeToken{err: c.publishErr}
}

func withFakeClient(t *testing.T, cli *fakeClient) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return cli }
	t.Cleanup(func() { newMQTTClient = orig })
}

func TestPublishPlan(t *testing.T) {
	cli := &fakeClient{}
	withFakeClient(t, cli)

	pub, err := NewPlanPublisher(Config{Enabled: true, Broker: "tcp://localhost:1883", QoS: 1, Retained: true})
	require.NoError(t, err)

	ev := coremetrics.PlanEvent{
		PlanID: "plan-1",
		Time:   time.Now(),
		Result: model.PlanResult{
			Feasible:  true,
			TotalCost: 1.5,
			Decisions: []model.IntervalDecision{{Mode: model.ModeHomeUPS}},
		},
		GuardNotes: []string{"note"},
	}
	require.NoError(t, pub.PublishPlan(ev))

	require.Equal(t, "wattplan/plan", cli.topic)
	require.Equal(t, byte(1), cli.qos)
	require.True(t, cli.retained)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(cli.payload, &payload))
	require.Equal(t, "plan-1", payload["plan_id"])
	require.Equal(t, true, payload["feasible"])
	require.Len(t, payload["guard_notes"], 1)

	pub.Disconnect()
	require.False(t, cli.connected)
}

func TestPublishPlanError(t *testing.T) {
	cli := &fakeClient{publishErr: errors.New("broker gone")}
	withFakeClient(t, cli)

	pub, err := NewPlanPublisher(Config{Enabled: true, Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	require.Error(t, pub.PublishPlan(coremetrics.PlanEvent{PlanID: "plan-2"}))
}

func TestNewPlanPublisherConnectError(t *testing.T) {
	cli := &fakeClient{connectErr: errors.New("refused")}
	withFakeClient(t, cli)

	_, err := NewPlanPublisher(Config{Enabled: true, Broker: "tcp://localhost:1883"})
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{}.Validate())
	require.Error(t, Config{Enabled: true}.Validate())
	require.NoError(t, Config{Enabled: true, Broker: "tcp://localhost:1883"}.Validate())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	require.Equal(t, "wattplan", cfg.ClientID)
	require.Equal(t, "wattplan/plan", cfg.PlanTopic)
}
