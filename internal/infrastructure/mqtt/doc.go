// Package mqtt publishes gadget lifecycle messages to an MQTT broker.
//
// Each gadget has two topics:
//
//	imf/gadgets/{id}/events   every lifecycle event as JSON
//	imf/gadgets/{id}/status   retained current status
//
// The service announces itself on imf/gadgets/service/status and leaves a
// retained Last Will there, so consumers can tell a crash from a shutdown.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.GadgetEvents(id), event, false)
//
// Publishing is optional. When enabled, the broker must be reachable at
// startup; later publish failures are logged by the caller and never fail
// the request that caused them.
package mqtt
