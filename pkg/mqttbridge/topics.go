package mqttbridge

import "strings"

// Topic categories below the prefix.
const (
	CategoryDevices  = "devices"
	CategoryReadings = "readings"
	CategoryAccuracy = "accuracy"
	CategoryTriggers = "triggers"
	CategoryControl  = "control"
	CategoryBridge   = "bridge"
)

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

// Device is the retained announcement topic of a device.
func (t Topics) Device(id string) string { return t.join(CategoryDevices, id) }

// Readings is where a device publishes readings.
func (t Topics) Readings(id string) string { return t.join(CategoryReadings, id) }

// Accuracy is where a device publishes accuracy changes.
func (t Topics) Accuracy(id string) string { return t.join(CategoryAccuracy, id) }

// Triggers is where a trigger device publishes its events.
func (t Topics) Triggers(id string) string { return t.join(CategoryTriggers, id) }

// Control is where the bridge publishes listener demand for a device.
func (t Topics) Control(id string) string { return t.join(CategoryControl, id) }

// Status is the retained online/offline status of a bridge client.
func (t Topics) Status(clientID string) string { return t.join(CategoryBridge, clientID, "status") }

// Wildcard subscribes to every device in a category.
func (t Topics) Wildcard(category string) string { return t.join(category, "+") }

// Parse splits topic into category and device ID. It reports false for
// topics outside the prefix or without a device segment.
func (t Topics) Parse(topic string) (category, id string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	category, id, found = strings.Cut(rest, "/")
	if !found || id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	return category, id, true
}

func (t Topics) join(parts ...string) string {
	return t.Prefix + "/" + strings.Join(parts, "/")
}
