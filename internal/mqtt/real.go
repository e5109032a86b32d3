package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"heaterctl/internal/climate"
)

const (
	connectTimeout = 10 * time.Second
	commandTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second
)

// RealBus talks to an actual MQTT broker.
type RealBus struct {
	client paho.Client

	mu       sync.RWMutex
	readings map[string]float64
	subs     map[string]map[int]func(climate.SensorUpdate)
	nextSub  int
}

// NewRealBus connects to the broker and subscribes to the sensor state
// wildcard so readings are cached from the first message on.
func NewRealBus(broker, clientID string) (*RealBus, error) {
	b := &RealBus{
		readings: make(map[string]float64),
		subs:     make(map[string]map[int]func(climate.SensorUpdate)),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetOnConnectHandler(func(client paho.Client) {
			// (Re)subscribe on every connect so a broker restart does not
			// silently drop the sensor feed.
			client.Subscribe(SensorStateTopic, 0, b.onSensorMessage)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to broker %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", broker, err)
	}

	b.client = client
	return b, nil
}

// onSensorMessage updates the reading cache and fans the change out to
// subscribers. An unparsable payload clears the cached value and is pushed
// as an invalid update.
func (b *RealBus) onSensorMessage(_ paho.Client, msg paho.Message) {
	sensorID := sensorIDFromTopic(msg.Topic())
	if sensorID == "" {
		return
	}
	value, valid := parseReading(msg.Payload())

	b.mu.Lock()
	if valid {
		b.readings[sensorID] = value
	} else {
		delete(b.readings, sensorID)
	}
	var fns []func(climate.SensorUpdate)
	for _, fn := range b.subs[sensorID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	u := climate.SensorUpdate{SensorID: sensorID, Value: value, Valid: valid}
	for _, fn := range fns {
		fn(u)
	}
}

// Read returns the latest cached reading of a sensor.
func (b *RealBus) Read(sensorID string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.readings[sensorID]
	return v, ok
}

// SubscribeSensor registers fn for pushes of one sensor's changes.
func (b *RealBus) SubscribeSensor(sensorID string, fn func(climate.SensorUpdate)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sensorID] == nil {
		b.subs[sensorID] = make(map[int]func(climate.SensorUpdate))
	}
	id := b.nextSub
	b.nextSub++
	b.subs[sensorID][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[sensorID], id)
	}
}

// Activate publishes the scene command with QoS 1 and blocks until the
// broker acknowledges it, the context is cancelled, or the command times
// out. Blocking here keeps dependent settle delays behind the actual press.
func (b *RealBus) Activate(ctx context.Context, sceneID string) error {
	if !b.client.IsConnectionOpen() {
		return fmt.Errorf("activate scene %s: %w", sceneID, ErrNotConnected)
	}
	token := b.client.Publish(SceneTopic(sceneID), 1, false, ScenePayload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(commandTimeout):
		return fmt.Errorf("activate scene %s: timeout", sceneID)
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("activate scene %s: %w", sceneID, err)
		}
		return nil
	}
}

// PublishState mirrors a heater snapshot to its retained state topic.
func (b *RealBus) PublishState(heaterID string, payload []byte) error {
	token := b.client.Publish(StateTopic(heaterID), 0, true, payload)
	if !token.WaitTimeout(commandTimeout) {
		return fmt.Errorf("publish state for %s: timeout", heaterID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish state for %s: %w", heaterID, err)
	}
	return nil
}

// Close disconnects from the broker.
func (b *RealBus) Close() error {
	b.client.Disconnect(1000) // milliseconds to flush in-flight messages
	return nil
}
