// Package influxdb records gadget lifecycle changes as InfluxDB v2 points.
//
// Every committed change becomes one point in the gadget_lifecycle
// measurement, tagged with the event type and resulting status. Writes are
// batched and non-blocking; a flush happens on Close.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // carry on without it
//	}
//	defer client.Close()
//
//	client.WriteGadgetEvent(influxdb.LifecyclePoint{
//	    Event: "gadget.destroyed", GadgetID: id, Status: "Destroyed",
//	})
package influxdb
