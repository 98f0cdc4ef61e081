// Command viewer follows one dashboard over the web-app channel and keeps
// temp.png and tds.png in the output directory up to date.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"cobitis_web"
	"cobitis_web/internal/chart"
	"cobitis_web/internal/logger"
	"cobitis_web/internal/models"
	"cobitis_web/internal/service"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"
)

type options struct {
	server   string
	token    string
	rng      int
	sensor   int
	outDir   string
	font     string
	width    int
	height   int
	logLevel string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("viewer", flag.ContinueOnError)
	fs.StringVarP(&o.server, "server", "s", "ws://localhost:8080", "server base URL (ws:// or wss://)")
	fs.StringVarP(&o.token, "token", "t", "", "JWT from /auth/sign-in")
	fs.IntVarP(&o.rng, "range", "r", -1, "display range index; -1 keeps the stored one")
	fs.IntVar(&o.sensor, "sensor", -1, "sensor index; -1 keeps the stored one")
	fs.StringVarP(&o.outDir, "out", "o", ".", "directory for temp.png and tds.png")
	fs.StringVar(&o.font, "font", "", "TTF font for labels")
	fs.IntVar(&o.width, "width", 720, "image width in pixels")
	fs.IntVar(&o.height, "height", 240, "image height in pixels")
	fs.StringVar(&o.logLevel, "log-level", logger.InfoLevel, "debug | info | warn | error")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.token == "" {
		return o, errors.New("--token is required")
	}
	if o.width <= 0 || o.height <= 0 {
		return o, fmt.Errorf("invalid size %dx%d", o.width, o.height)
	}
	return o, nil
}

// channelURL appends the web-app channel path and the token query.
func channelURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = cobitis_web.WebAppChannelPath
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// initRequest builds the INIT_SESSION frame; negative indices are omitted.
func initRequest(rng, sensor int, ack int64) (cobitis_web.Frame, error) {
	var p service.InitParams
	if rng >= 0 {
		p.RangeIndex = &rng
	}
	if sensor >= 0 {
		p.SensorIndex = &sensor
	}
	return cobitis_web.NewFrame(cobitis_web.EventInitSession, &ack, p)
}

// formatLatest renders [temp1, tds] the way the live display shows them.
func formatLatest(v models.LatestValues) (string, string) {
	if v == nil {
		return "--.-", "---.-"
	}
	return fmt.Sprintf("%.1f", v[0]), fmt.Sprintf("%.1f", v[1])
}

// parseLatest accepts exactly two numbers. Anything else shows as no data.
func parseLatest(data json.RawMessage) models.LatestValues {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) != 2 || raw[0] == nil || raw[1] == nil {
		return nil
	}
	return &[2]float64{*raw[0], *raw[1]}
}

func checkDescriptor(d *models.SessionDescriptor) error {
	switch {
	case d.RangeIndex < 0 || d.RangeIndex >= len(d.Ranges):
		return fmt.Errorf("session descriptor: range index %d out of %d ranges", d.RangeIndex, len(d.Ranges))
	case d.SensorIndex < 0 || d.SensorIndex >= len(d.Sensors):
		return fmt.Errorf("session descriptor: sensor index %d out of %d sensors", d.SensorIndex, len(d.Sensors))
	case d.ChartTicks <= 0 || d.TickLength <= 0:
		return fmt.Errorf("session descriptor: chart_ticks=%d tick_length=%d", d.ChartTicks, d.TickLength)
	}
	return nil
}

type viewer struct {
	opts     options
	log      *logger.Logger
	renderer *chart.Renderer
	window   *chart.Window
	desc     *models.SessionDescriptor
}

func (v *viewer) handle(f cobitis_web.Frame, initAck int64) error {
	switch f.Event {
	case cobitis_web.EventInitSession:
		if f.Ack == nil || *f.Ack != initAck {
			return nil
		}
		var desc *models.SessionDescriptor
		if err := json.Unmarshal(f.Data, &desc); err != nil {
			return err
		}
		if desc == nil {
			return errors.New("session refused: not signed in or no sensors")
		}
		if err := checkDescriptor(desc); err != nil {
			return err
		}
		v.desc = desc
		if v.window.TickCount() != desc.ChartTicks {
			v.window.Reset(desc.ChartTicks)
		}
		v.log.Infow("session", "range", desc.Ranges[desc.RangeIndex], "sensor", desc.Sensors[desc.SensorIndex])
		return v.render()
	case cobitis_web.EventPushValues:
		temp, tds := formatLatest(parseLatest(f.Data))
		v.log.Infow("latest", "temp", temp, "tds", tds)
	case cobitis_web.EventPushSeries:
		var s models.Series
		if err := json.Unmarshal(f.Data, &s); err != nil {
			return err
		}
		if err := v.window.Apply(s); err != nil {
			v.log.Infow("series_dropped", "err", err)
			return nil
		}
		return v.render()
	}
	return nil
}

func (v *viewer) render() error {
	if v.desc == nil || v.window.MaxTick() == 0 {
		return nil
	}
	for _, kind := range []chart.Kind{chart.KindTemperature, chart.KindTDS} {
		p, err := v.window.Params(kind, v.desc.TickLength, v.desc.RangeIndex, time.Local)
		if err != nil {
			return err
		}
		img, err := v.renderer.Render(p, v.opts.width, v.opts.height)
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(v.opts.outDir, string(kind)+".png"), img); err != nil {
			return err
		}
	}
	v.log.Debugw("charts_written", "max_tick", v.window.MaxTick())
	return nil
}

// writePNG replaces path atomically so image viewers never see a partial file.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chart-*.png")
	if err != nil {
		return err
	}
	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.Get(logger.Config{Level: opts.logLevel})

	target, err := channelURL(opts.server, opts.token)
	if err != nil {
		log.Fatalw("invalid server url", "err", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		log.Fatalw("dial failed", "err", err)
	}
	defer func() { _ = conn.Close() }()

	const initAck = 1
	req, err := initRequest(opts.rng, opts.sensor, initAck)
	if err != nil {
		log.Fatalw("encode init", "err", err)
	}
	if err := conn.WriteJSON(req); err != nil {
		log.Fatalw("send init", "err", err)
	}

	v := &viewer{
		opts:     opts,
		log:      log,
		renderer: chart.NewRenderer(opts.font),
		window:   chart.NewWindow(service.ChartTicks),
	}
	for {
		var f cobitis_web.Frame
		if err := conn.ReadJSON(&f); err != nil {
			log.Fatalw("connection closed", "err", err)
		}
		if err := v.handle(f, initAck); err != nil {
			log.Fatalw("frame failed", "event", f.Event, "err", err)
		}
	}
}
