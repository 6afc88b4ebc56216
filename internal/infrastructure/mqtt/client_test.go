package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/imf-gadgets/gadget-core/internal/infrastructure/config"
)

// testConfig returns a configuration pointing at a local broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "gadget-core-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Fakes
// =============================================================================

type fakeToken struct {
	err     error
	timeout bool
}

func (t fakeToken) Wait() bool                     { return !t.timeout }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho records publishes. Methods the client never calls are left to
// the embedded nil interface.
type fakePaho struct {
	pahomqtt.Client

	mu           sync.Mutex
	connected    bool
	token        fakeToken
	published    []publishedMessage
	disconnected bool
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := payload.([]byte)
	f.published = append(f.published, publishedMessage{topic, qos, retained, b})
	return f.token
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	f.connected = false
}

func (f *fakePaho) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.published...)
}

func newFakeClient() (*Client, *fakePaho) {
	fp := &fakePaho{connected: true}
	return newClient(fp, testConfig()), fp
}

// =============================================================================
// Publish
// =============================================================================

func TestPublish(t *testing.T) {
	c, fp := newFakeClient()

	if err := c.Publish("imf/gadgets/x/events", []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := fp.messages()
	if len(msgs) != 1 || msgs[0].topic != "imf/gadgets/x/events" || msgs[0].qos != 1 || msgs[0].retained {
		t.Errorf("published = %+v", msgs)
	}
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos 3", "t", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "t", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fp := newFakeClient()
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
			if len(fp.messages()) != 0 {
				t.Error("invalid publish reached the broker")
			}
		})
	}
}

func TestPublishDisconnected(t *testing.T) {
	c, fp := newFakeClient()
	fp.connected = false

	if err := c.Publish("t", nil, 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishBrokerFailures(t *testing.T) {
	c, fp := newFakeClient()

	fp.token = fakeToken{timeout: true}
	if err := c.Publish("t", nil, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(timeout) error = %v, want ErrPublishFailed", err)
	}

	brokerErr := errors.New("not authorised")
	fp.token = fakeToken{err: brokerErr}
	err := c.Publish("t", nil, 1, false)
	if !errors.Is(err, ErrPublishFailed) || !errors.Is(err, brokerErr) {
		t.Errorf("Publish(rejected) error = %v, want ErrPublishFailed wrapping broker error", err)
	}
}

func TestPublishJSON(t *testing.T) {
	c, fp := newFakeClient()

	if err := c.PublishJSON(Topics{}.GadgetStatus("g1"), map[string]string{"status": "Deployed"}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	msgs := fp.messages()
	if len(msgs) != 1 || !msgs[0].retained || msgs[0].qos != 1 {
		t.Fatalf("published = %+v", msgs)
	}
	if string(msgs[0].payload) != `{"status":"Deployed"}` {
		t.Errorf("payload = %s", msgs[0].payload)
	}

	if err := c.PublishJSON("t", make(chan int), false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(unencodable) error = %v, want ErrPublishFailed", err)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestClosePublishesOfflineStatus(t *testing.T) {
	c, fp := newFakeClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fp.disconnected {
		t.Error("Close() did not disconnect")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	msgs := fp.messages()
	if len(msgs) != 1 || msgs[0].topic != (Topics{}).ServiceStatus() || !msgs[0].retained {
		t.Fatalf("published = %+v", msgs)
	}
	var p servicePresence
	if err := json.Unmarshal(msgs[0].payload, &p); err != nil {
		t.Fatalf("offline payload: %v", err)
	}
	if p.Status != "offline" || p.Reason != "graceful_shutdown" || p.ClientID != "gadget-core-test" {
		t.Errorf("offline payload = %+v", p)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestHandleConnectAndDisconnect(t *testing.T) {
	c, fp := newFakeClient()
	c.setConnected(false)

	c.handleConnect()
	if !c.IsConnected() {
		t.Error("IsConnected() = false after handleConnect")
	}
	msgs := fp.messages()
	if len(msgs) != 1 || !json.Valid(msgs[0].payload) {
		t.Fatalf("online status = %+v", msgs)
	}

	c.handleDisconnect(errors.New("EOF"))
	if c.IsConnected() {
		t.Error("IsConnected() = true after handleDisconnect")
	}
}

func TestHealthCheck(t *testing.T) {
	c, fp := newFakeClient()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}

	fp.connected = false
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck(disconnected) error = %v, want ErrNotConnected", err)
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the connect timeout")
	}
	cfg := testConfig()
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Options and topics
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "q", Password: "branch"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "gadget-core-test" || opts.Username != "q" || opts.Password != "branch" {
		t.Errorf("identity = %q/%q", opts.ClientID, opts.Username)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS not configured")
	}
	if !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect = %v/%v", opts.AutoReconnect, opts.MaxReconnectInterval)
	}

	configureLWT(opts, cfg.Broker.ClientID)
	if !opts.WillEnabled || opts.WillTopic != (Topics{}).ServiceStatus() || !opts.WillRetained {
		t.Errorf("LWT = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Topics{}.GadgetEvents("g1"), "imf/gadgets/g1/events"},
		{Topics{}.GadgetStatus("g1"), "imf/gadgets/g1/status"},
		{Topics{}.AllGadgetEvents(), "imf/gadgets/+/events"},
		{Topics{}.ServiceStatus(), "imf/gadgets/service/status"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}
