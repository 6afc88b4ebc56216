package main

import (
	"context"
	"time"

	"github.com/imf-gadgets/gadget-core/internal/gadget"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/influxdb"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/logging"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/mqtt"
)

// jsonPublisher is the part of *mqtt.Client the MQTT sink uses.
type jsonPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// gadgetStatus is the retained message on a gadget's status topic.
type gadgetStatus struct {
	GadgetID  string        `json:"gadgetId"`
	Name      string        `json:"name"`
	Status    gadget.Status `json:"status"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// mqttSink publishes every event to the gadget's events topic and, when
// the status changed, a retained snapshot to its status topic so late
// subscribers see the current state.
type mqttSink struct {
	client jsonPublisher
	logger *logging.Logger
}

func newMQTTSink(client jsonPublisher, logger *logging.Logger) *mqttSink {
	return &mqttSink{client: client, logger: logger.With("component", "mqtt-sink")}
}

func (s *mqttSink) Publish(_ context.Context, e gadget.Event) {
	var topics mqtt.Topics

	if err := s.client.PublishJSON(topics.GadgetEvents(e.GadgetID), e, false); err != nil {
		s.logger.Warn("publishing gadget event failed",
			"gadget_id", e.GadgetID,
			"event", e.Type,
			"error", err,
		)
	}

	if !e.StatusChanged() {
		return
	}
	status := gadgetStatus{
		GadgetID:  e.Gadget.ID,
		Name:      e.Gadget.Name,
		Status:    e.Gadget.Status,
		UpdatedAt: e.Gadget.UpdatedAt,
	}
	if err := s.client.PublishJSON(topics.GadgetStatus(e.GadgetID), status, true); err != nil {
		s.logger.Warn("publishing gadget status failed",
			"gadget_id", e.GadgetID,
			"status", status.Status,
			"error", err,
		)
	}
}

// pointWriter is the part of *influxdb.Client the InfluxDB sink uses.
type pointWriter interface {
	WriteGadgetEvent(p influxdb.LifecyclePoint)
}

// influxSink turns events into gadget_lifecycle points. Writes are batched
// by the client, so Publish never blocks on the network.
type influxSink struct {
	client pointWriter
}

func newInfluxSink(client pointWriter) *influxSink {
	return &influxSink{client: client}
}

func (s *influxSink) Publish(_ context.Context, e gadget.Event) {
	p := influxdb.LifecyclePoint{
		Event:          string(e.Type),
		GadgetID:       e.GadgetID,
		PreviousStatus: string(e.PreviousStatus),
		At:             e.At,
	}
	if e.Gadget != nil {
		p.Name = e.Gadget.Name
		p.Status = string(e.Gadget.Status)
	}
	s.client.WriteGadgetEvent(p)
}
