package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cobitis_web"
	"cobitis_web/internal/cache"
	"cobitis_web/internal/models"
	"cobitis_web/internal/service"

	"github.com/gorilla/websocket"
)

func dialChannel(t *testing.T, s *service.Service, path, rawQuery string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(s))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = path
	u.RawQuery = rawQuery

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial: %v (resp=%v)", err, resp)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write %s: %v", raw, err)
	}
}

// readUntil skips frames until one with the given event and ack arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string, ack *int64) cobitis_web.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f cobitis_web.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read waiting for %s: %v", event, err)
		}
		if f.Event != event {
			continue
		}
		if (ack == nil) != (f.Ack == nil) || (ack != nil && *ack != *f.Ack) {
			continue
		}
		return f
	}
}

func ackPtr(v int64) *int64 { return &v }

func TestSensorChannel_AuthFailureCloses(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{},
		Sensors:       &mockSensors{secrets: map[string]int64{"good": 7}},
		Measurements:  &mockMeasurements{},
	}
	conn := dialChannel(t, s, cobitis_web.SensorChannelPath, "")

	writeFrame(t, conn, `{"event":"A","data":"wrong"}`)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the socket to be closed")
	}
}

func TestSensorChannel_NonStringSecretCloses(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{},
		Sensors:       &mockSensors{secrets: map[string]int64{"good": 7}},
		Measurements:  &mockMeasurements{},
	}
	conn := dialChannel(t, s, cobitis_web.SensorChannelPath, "")

	writeFrame(t, conn, `{"event":"A","data":{"secret":"good"}}`)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the socket to be closed")
	}
}

func TestSensorChannel_PostValues(t *testing.T) {
	meas := &mockMeasurements{appends: make(chan appended, 4)}
	s := &service.Service{
		Authorization: &mockAuth{},
		Sensors:       &mockSensors{secrets: map[string]int64{"good": 7}},
		Measurements:  meas,
	}
	conn := dialChannel(t, s, cobitis_web.SensorChannelPath, "")

	// dropped: not yet authenticated
	writeFrame(t, conn, `{"event":"V","data":[1,2,3]}`)
	writeFrame(t, conn, `{"event":"A","data":"good"}`)
	// dropped: malformed
	writeFrame(t, conn, `{"event":"V","data":[1,2]}`)
	writeFrame(t, conn, `{"event":"V","data":[1,null,3]}`)
	writeFrame(t, conn, `not json`)
	writeFrame(t, conn, `{"event":"V","data":[24.5,23.9,310]}`)

	select {
	case got := <-meas.appends:
		want := appended{sensorID: 7, values: [3]float64{24.5, 23.9, 310}}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for stored values")
	}

	select {
	case extra := <-meas.appends:
		t.Fatalf("unexpected extra append %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func newWebAppTestService(parseErr error) (*service.Service, *mockSensors) {
	sensors := &mockSensors{
		byUser: map[int][]models.Sensor{
			5: {{SensorID: 7, UserID: 5, Description: "tank A"}},
		},
	}
	meas := &mockMeasurements{latest: &[2]float64{21.5, 312.4}}
	return &service.Service{
		Authorization: &mockAuth{parseID: 5, parseErr: parseErr},
		Sensors:       sensors,
		Measurements:  meas,
		Dashboard:     service.NewDashboardService(sensors, meas, cache.NewMemoryStore(), nil, time.Hour),
	}, sensors
}

func TestWebAppChannel_UnauthenticatedStaysOpen(t *testing.T) {
	s, _ := newWebAppTestService(nil)
	conn := dialChannel(t, s, cobitis_web.WebAppChannelPath, "")

	writeFrame(t, conn, `{"event":"I","ack":1,"data":{}}`)
	f := readUntil(t, conn, cobitis_web.EventInitSession, ackPtr(1))
	if string(f.Data) != "null" {
		t.Fatalf("init reply=%s, want null", f.Data)
	}

	writeFrame(t, conn, `{"event":"T","ack":2,"data":{"sensor_index":0,"description":"x"}}`)
	f = readUntil(t, conn, cobitis_web.EventUpdateSensor, ackPtr(2))
	if string(f.Data) != "false" {
		t.Fatalf("update reply=%s, want false", f.Data)
	}
}

func TestWebAppChannel_InitPushesAndUpdate(t *testing.T) {
	s, sensors := newWebAppTestService(nil)
	conn := dialChannel(t, s, cobitis_web.WebAppChannelPath, "token=tok")

	writeFrame(t, conn, `{"event":"I","ack":1,"data":{"range_index":1}}`)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f cobitis_web.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Event != cobitis_web.EventInitSession || f.Ack == nil || *f.Ack != 1 {
		t.Fatalf("first frame %q ack=%v, want the INIT reply", f.Event, f.Ack)
	}
	desc := &models.SessionDescriptor{}
	if err := json.Unmarshal(f.Data, desc); err != nil {
		t.Fatalf("descriptor: %v (%s)", err, f.Data)
	}

	f = cobitis_web.Frame{}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Event != cobitis_web.EventPushValues {
		t.Fatalf("second frame %q, want values push", f.Event)
	}

	f = cobitis_web.Frame{}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Event != cobitis_web.EventPushSeries {
		t.Fatalf("third frame %q, want series push", f.Event)
	}
	series := &models.Series{}
	if err := json.Unmarshal(f.Data, series); err != nil {
		t.Fatalf("series: %v", err)
	}
	if desc.RangeIndex != 1 || desc.SensorIndex != 0 || desc.ChartTicks != service.ChartTicks ||
		desc.TickLength != service.TickLength(1) || len(desc.Sensors) != 1 || desc.Sensors[0] != "tank A" {
		t.Fatalf("descriptor=%+v", desc)
	}
	if series.Len() != service.ChartTicks {
		t.Fatalf("series covers %d ticks", series.Len())
	}

	writeFrame(t, conn, `{"event":"T","ack":2,"data":{"sensor_index":0,"description":"renamed"}}`)
	f = readUntil(t, conn, cobitis_web.EventUpdateSensor, ackPtr(2))
	if string(f.Data) != "true" {
		t.Fatalf("update reply=%s", f.Data)
	}
	sensors.mu.Lock()
	got := sensors.renamed[7]
	sensors.mu.Unlock()
	if got != "renamed" {
		t.Fatalf("renamed=%q", got)
	}
}

func TestWebAppChannel_PushValuesFrame(t *testing.T) {
	s, _ := newWebAppTestService(nil)
	conn := dialChannel(t, s, cobitis_web.WebAppChannelPath, "token=tok")

	writeFrame(t, conn, `{"event":"I","ack":1}`)
	f := readUntil(t, conn, cobitis_web.EventPushValues, nil)
	if strings.ReplaceAll(string(f.Data), " ", "") != "[21.5,312.4]" {
		t.Fatalf("values=%s", f.Data)
	}
}

func TestWebAppChannel_MalformedRequestsGetNoReply(t *testing.T) {
	s, _ := newWebAppTestService(nil)
	conn := dialChannel(t, s, cobitis_web.WebAppChannelPath, "token=tok")

	writeFrame(t, conn, `{"event":"I","ack":1,"data":{"range_index":"x"}}`)
	writeFrame(t, conn, `{"event":"T","ack":2,"data":{"sensor_index":0}}`)
	writeFrame(t, conn, `{"event":"T","ack":3,"data":{"sensor_index":5,"description":"x"}}`)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f cobitis_web.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if f.Ack == nil {
			continue
		}
		if *f.Ack != 3 {
			t.Fatalf("unexpected reply %s ack=%d data=%s", f.Event, *f.Ack, f.Data)
		}
		if string(f.Data) != "false" {
			t.Fatalf("update reply=%s", f.Data)
		}
		return
	}
}
