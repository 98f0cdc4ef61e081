package handlers

import (
	"encoding/json"
	"errors"

	"cobitis_web"
	"cobitis_web/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const transportWS = "ws"

// sensorChannel accepts AUTHENTICATE and POST_VALUES frames from devices.
// A failed authentication closes the socket; any other problem drops the frame.
func (h *Handler) sensorChannel(c *gin.Context) {
	wc, err := h.upgrade(c.Writer, c.Request, "sensor")
	if err != nil {
		return
	}
	defer wc.close()

	var sensorID *int64
	defer func() {
		if sensorID != nil {
			metrics.ConnectedSensors.Dec()
		}
	}()

	wc.serve(c.Request.Context().Done(), func(f cobitis_web.Frame) bool {
		switch f.Event {
		case cobitis_web.EventAuthenticate:
			id, err := h.authenticateSensor(c, f.Data)
			if err != nil {
				wc.infow("sensor_auth_failed", "err", err)
				wc.closeWith(websocket.ClosePolicyViolation, "authentication failed")
				return false
			}
			if sensorID == nil {
				metrics.ConnectedSensors.Inc()
			}
			sensorID = &id
			wc.infow("sensor_authenticated", "sensor_id", id)
		case cobitis_web.EventPostValues:
			if sensorID == nil {
				metrics.SensorPosts.WithLabelValues(transportWS, "unauthenticated").Inc()
				return true
			}
			values, err := cobitis_web.DecodeValues(f.Data)
			if err != nil {
				metrics.SensorPosts.WithLabelValues(transportWS, "malformed").Inc()
				wc.debugw("sensor_values_dropped", "sensor_id", *sensorID, "err", err)
				return true
			}
			if err := h.services.Measurements.Append(c.Request.Context(), *sensorID, values); err != nil {
				metrics.SensorPosts.WithLabelValues(transportWS, "error").Inc()
				if h.log != nil {
					h.log.Errorw("sensor_values_store_failed", "sensor_id", *sensorID, "err", err)
				}
				return true
			}
			metrics.SensorPosts.WithLabelValues(transportWS, "ok").Inc()
		default:
			wc.infow("sensor_unknown_event", "event", f.Event)
		}
		return true
	})
}

var errSecretPayload = errors.New("authenticate: data must be a string")

func (h *Handler) authenticateSensor(c *gin.Context, data json.RawMessage) (int64, error) {
	var secret string
	if err := json.Unmarshal(data, &secret); err != nil {
		return 0, errSecretPayload
	}
	return h.services.Sensors.Authenticate(c.Request.Context(), secret)
}
