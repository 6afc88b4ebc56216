//go:build integration

package mqtt

import (
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func TestIntegration_RetainedGadgetStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "gadget-core-int-pub"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.GadgetStatus("integration-gadget")
	if err := client.PublishJSON(topic, map[string]string{"status": "Deployed"}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	// A late subscriber still sees the retained status.
	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1883").
		SetClientID("gadget-core-int-sub")
	sub := pahomqtt.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect failed: %v", token.Error())
	}
	defer sub.Disconnect(100)

	got := make(chan string, 1)
	token := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case got <- string(msg.Payload()):
		default:
		}
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("Subscribe() failed: %v", token.Error())
	}

	select {
	case payload := <-got:
		if payload != `{"status":"Deployed"}` {
			t.Errorf("retained payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no retained status received")
	}

	// Clear the retained message.
	_ = client.Publish(topic, nil, 1, true) //nolint:errcheck // best-effort cleanup
}
