package cobitis_web

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin/binding"
)

// Channel paths.
const (
	SensorChannelPath = "/socket.sensor.v1/"
	WebAppChannelPath = "/socket.webapp.v1/"
)

// Sensor channel events.
const (
	EventAuthenticate = "A"
	EventPostValues   = "V"
)

// Web-app channel events.
const (
	EventInitSession  = "I"
	EventUpdateSensor = "T"
	EventPushValues   = "V"
	EventPushSeries   = "S"
)

// ValuesTopic is the MQTT topic sensors publish POST_VALUES payloads to.
const ValuesTopic = "sensors/values"

// ErrMalformed marks a payload that failed decoding or validation.
var ErrMalformed = errors.New("malformed payload")

// Frame is one JSON text message on either channel. Requests carrying Ack
// are answered with a frame holding the same Event and Ack.
type Frame struct {
	Event string          `json:"event" binding:"required"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// NewFrame encodes v as the frame data.
func NewFrame(event string, ack *int64, v any) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return Frame{Event: event, Ack: ack, Data: data}, nil
}

type valuesPayload struct {
	Values []*float64 `binding:"len=3,dive,required"`
}

// DecodeValues parses a POST_VALUES payload: exactly three numbers
// [temp1, temp2, tds].
func DecodeValues(raw []byte) ([3]float64, error) {
	var out [3]float64
	var p valuesPayload
	if err := json.Unmarshal(raw, &p.Values); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := Validate(&p); err != nil {
		return out, err
	}
	for i, v := range p.Values {
		out[i] = *v
	}
	return out, nil
}

// DecodeData unmarshals frame data into dst and runs struct validation.
// Absent data decodes as the zero value.
func DecodeData(raw json.RawMessage, dst any) error {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return Validate(dst)
}

// Validate applies the binding struct tags of v.
func Validate(v any) error {
	if binding.Validator == nil {
		return nil
	}
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
