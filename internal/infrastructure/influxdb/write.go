package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementGadgetLifecycle holds one point per committed gadget change.
const MeasurementGadgetLifecycle = "gadget_lifecycle"

// LifecyclePoint describes one gadget change for the time-series store.
type LifecyclePoint struct {
	Event          string
	GadgetID       string
	Name           string
	Status         string
	PreviousStatus string
	At             time.Time
}

// WriteGadgetEvent records a lifecycle change.
//
// Event type and resulting status are tags so dashboards can group by them;
// the gadget id and name are fields to keep series cardinality bounded.
func (c *Client) WriteGadgetEvent(p LifecyclePoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newLifecyclePoint(p))
}

func newLifecyclePoint(p LifecyclePoint) *write.Point {
	at := p.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := map[string]any{
		"gadget_id": p.GadgetID,
		"name":      p.Name,
		"count":     int64(1),
	}
	if p.PreviousStatus != "" {
		fields["previous_status"] = p.PreviousStatus
	}

	return write.NewPoint(
		MeasurementGadgetLifecycle,
		map[string]string{
			"event":  p.Event,
			"status": p.Status,
		},
		fields,
		at,
	)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
