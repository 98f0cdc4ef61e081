// Package ingest accepts sensor readings over MQTT through an embedded broker.
package ingest

import (
	"bytes"
	"context"
	"sync"

	"cobitis_web"
	"cobitis_web/internal/logger"
	"cobitis_web/internal/metrics"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// SensorAuthenticator resolves a sensor secret to its ID.
type SensorAuthenticator interface {
	Authenticate(ctx context.Context, secret string) (int64, error)
}

// ValueStore persists a reading for a sensor.
type ValueStore interface {
	Append(ctx context.Context, sensorID int64, values [3]float64) error
}

// Broker is an embedded MQTT server. The CONNECT password is the sensor
// secret; authenticated clients may only publish to the values topic.
type Broker struct {
	server *mqtt.Server
	hook   *SensorHook
}

// NewBroker builds a broker listening on address (host:port).
func NewBroker(address string, sensors SensorAuthenticator, store ValueStore, log *logger.Logger) (*Broker, error) {
	server := mqtt.New(brokerOptions(log))

	hook := NewSensorHook(sensors, store, log)
	if err := server.AddHook(hook, nil); err != nil {
		return nil, err
	}

	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "sensors",
		Address: address,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}

	return &Broker{server: server, hook: hook}, nil
}

// brokerOptions routes the broker's own log output through log.
func brokerOptions(log *logger.Logger) *mqtt.Options {
	opts := &mqtt.Options{}
	if log != nil {
		opts.Logger = log.Slog().With("component", "mqtt")
	}
	return opts
}

// Serve starts the listeners and returns immediately.
func (b *Broker) Serve() error {
	return b.server.Serve()
}

func (b *Broker) Close() error {
	return b.server.Close()
}

// SensorHook authenticates MQTT clients as sensors and stores their readings.
type SensorHook struct {
	mqtt.HookBase

	sensors SensorAuthenticator
	store   ValueStore
	log     *logger.Logger

	mu      sync.RWMutex
	clients map[string]binding // by client ID
}

// binding ties a client ID to the connection that authenticated it. A
// reconnect with the same ID replaces the entry before the old connection's
// disconnect runs.
type binding struct {
	client   *mqtt.Client
	sensorID int64
}

func NewSensorHook(sensors SensorAuthenticator, store ValueStore, log *logger.Logger) *SensorHook {
	return &SensorHook{
		sensors: sensors,
		store:   store,
		log:     log,
		clients: make(map[string]binding),
	}
}

func (h *SensorHook) ID() string {
	return "sensor-auth"
}

func (h *SensorHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqtt.OnConnectAuthenticate,
		mqtt.OnACLCheck,
		mqtt.OnPublish,
		mqtt.OnDisconnect,
	}, []byte{b})
}

// OnConnectAuthenticate accepts a client whose password is a sensor secret.
func (h *SensorHook) OnConnectAuthenticate(cl *mqtt.Client, pk packets.Packet) bool {
	sensorID, err := h.sensors.Authenticate(context.Background(), string(pk.Connect.Password))
	if err != nil {
		h.logw("mqtt_auth_rejected", "client", cl.ID, "err", err)
		return false
	}

	h.mu.Lock()
	_, takeover := h.clients[cl.ID]
	h.clients[cl.ID] = binding{client: cl, sensorID: sensorID}
	h.mu.Unlock()

	if !takeover {
		metrics.ConnectedSensors.Inc()
	}
	h.logw("mqtt_sensor_authenticated", "client", cl.ID, "sensor_id", sensorID, "takeover", takeover)
	return true
}

// OnACLCheck allows publishing to the values topic only; nothing can be read.
func (h *SensorHook) OnACLCheck(cl *mqtt.Client, topic string, write bool) bool {
	return write && topic == cobitis_web.ValuesTopic
}

// OnPublish stores a valid reading. Malformed payloads are dropped.
func (h *SensorHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	if pk.TopicName != cobitis_web.ValuesTopic {
		return pk, nil
	}

	h.mu.RLock()
	b, ok := h.clients[cl.ID]
	h.mu.RUnlock()
	if !ok || b.client != cl {
		metrics.SensorPosts.WithLabelValues("mqtt", "unauthenticated").Inc()
		return pk, packets.ErrRejectPacket
	}

	sensorID := b.sensorID
	values, err := cobitis_web.DecodeValues(pk.Payload)
	if err != nil {
		metrics.SensorPosts.WithLabelValues("mqtt", "malformed").Inc()
		h.debugw("mqtt_values_malformed", "client", cl.ID, "err", err)
		return pk, packets.ErrRejectPacket
	}

	if err := h.store.Append(context.Background(), sensorID, values); err != nil {
		metrics.SensorPosts.WithLabelValues("mqtt", "error").Inc()
		h.logw("mqtt_values_store_failed", "sensor_id", sensorID, "err", err)
		return pk, nil
	}
	metrics.SensorPosts.WithLabelValues("mqtt", "ok").Inc()
	return pk, nil
}

func (h *SensorHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	h.mu.Lock()
	b, ok := h.clients[cl.ID]
	ok = ok && b.client == cl
	if ok {
		delete(h.clients, cl.ID)
	}
	h.mu.Unlock()

	if ok {
		metrics.ConnectedSensors.Dec()
		if err != nil {
			h.logw("mqtt_sensor_disconnected", "client", cl.ID, "err", err)
		}
	}
}

// SensorID reports the sensor bound to a client ID.
func (h *SensorHook) SensorID(clientID string) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.clients[clientID]
	return b.sensorID, ok
}

func (h *SensorHook) logw(msg string, kv ...any) {
	if h.log != nil {
		h.log.Infow(msg, kv...)
	}
}

func (h *SensorHook) debugw(msg string, kv ...any) {
	if h.log != nil {
		h.log.Debugw(msg, kv...)
	}
}
