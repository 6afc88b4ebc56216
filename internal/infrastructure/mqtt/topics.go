package mqtt

import "fmt"

// TopicPrefix is the root of every topic this service publishes.
const TopicPrefix = "imf/gadgets"

// Topics builds topic names.
//
//	Topics{}.GadgetEvents("6f1c...")  // imf/gadgets/6f1c.../events
//	Topics{}.GadgetStatus("6f1c...")  // imf/gadgets/6f1c.../status
type Topics struct{}

// GadgetEvents is where every lifecycle event for one gadget is published.
func (Topics) GadgetEvents(gadgetID string) string {
	return fmt.Sprintf("%s/%s/events", TopicPrefix, gadgetID)
}

// GadgetStatus carries the retained current status of one gadget.
func (Topics) GadgetStatus(gadgetID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, gadgetID)
}

// AllGadgetEvents matches the event topic of every gadget.
func (Topics) AllGadgetEvents() string {
	return TopicPrefix + "/+/events"
}

// ServiceStatus carries the retained online/offline presence of the service.
func (Topics) ServiceStatus() string {
	return TopicPrefix + "/service/status"
}
