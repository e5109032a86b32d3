// Package mqtt connects the controllers to the smart-home message bus:
// sensors publish their readings to state topics, scenes are triggered by
// publishing to command topics, and the climate state is mirrored back out
// as a retained message. A fake implementation backs the tests.
package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"heaterctl/internal/climate"
)

// Topic layout of the bus.
const (
	// SensorStateTopic is the wildcard all sensor readings arrive on;
	// the single path segment after "sensor/" is the sensor id.
	SensorStateTopic = "home/sensor/+/state"

	sensorTopicPrefix = "home/sensor/"
	sensorTopicSuffix = "/state"
	sceneTopicPrefix  = "home/scene/"
	sceneTopicSuffix  = "/set"
	stateTopicPrefix  = "home/climate/"
	stateTopicSuffix  = "/state"

	// ScenePayload simulates pressing the button the scene is bound to.
	ScenePayload = "ON"
)

// Bus is everything the rest of the service needs from the message bus.
type Bus interface {
	// Read returns the latest cached numeric reading of a sensor.
	Read(sensorID string) (float64, bool)

	// SubscribeSensor registers fn for pushes of one sensor's changes and
	// returns a function removing the subscription.
	SubscribeSensor(sensorID string, fn func(climate.SensorUpdate)) (cancel func())

	// Activate triggers a scene, blocking until the broker acknowledges
	// the command or the call times out.
	Activate(ctx context.Context, sceneID string) error

	// PublishState mirrors a heater state snapshot to the bus, retained.
	PublishState(heaterID string, payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// SceneTopic returns the command topic of a scene.
func SceneTopic(sceneID string) string {
	return sceneTopicPrefix + sceneID + sceneTopicSuffix
}

// StateTopic returns the retained state topic of a heater.
func StateTopic(heaterID string) string {
	return stateTopicPrefix + heaterID + stateTopicSuffix
}

// sensorIDFromTopic extracts the sensor id from a state topic, or "" when
// the topic does not match the layout.
func sensorIDFromTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, sensorTopicPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, sensorTopicSuffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// parseReading interprets a sensor payload. Sensors publish either a bare
// number or one of the unavailability markers; anything unparsable counts
// as unavailable rather than an error.
func parseReading(payload []byte) (float64, bool) {
	s := strings.TrimSpace(string(payload))
	if s == "" || s == "unknown" || s == "unavailable" || s == "None" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ErrNotConnected is returned for commands issued while the broker
// connection is down.
var ErrNotConnected = fmt.Errorf("mqtt: not connected")
