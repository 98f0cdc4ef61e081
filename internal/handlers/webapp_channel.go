package handlers

import (
	"errors"

	"cobitis_web"
	"cobitis_web/internal/models"
	"cobitis_web/internal/service"

	"github.com/gin-gonic/gin"
)

// framePusher delivers dashboard pushes as V and S frames.
type framePusher struct {
	conn *wsConn
}

func (p framePusher) PushValues(v models.LatestValues) error {
	return p.conn.send(cobitis_web.EventPushValues, nil, v)
}

func (p framePusher) PushSeries(s models.Series) error {
	return p.conn.send(cobitis_web.EventPushSeries, nil, s)
}

// webAppChannel serves one dashboard connection. The identity is resolved
// once at upgrade; without one the socket stays open and INIT replies null.
// Malformed requests get no reply. The push loop starts only after the INIT
// reply is written.
func (h *Handler) webAppChannel(c *gin.Context) {
	userID := h.resolveUserID(c)

	wc, err := h.upgrade(c.Writer, c.Request, "webapp")
	if err != nil {
		return
	}
	defer wc.close()

	session := h.services.Dashboard.NewSession(userID, framePusher{conn: wc})
	defer session.Close()

	ctx := c.Request.Context()
	wc.serve(ctx.Done(), func(f cobitis_web.Frame) bool {
		var reply any
		switch f.Event {
		case cobitis_web.EventInitSession:
			var p service.InitParams
			if err := cobitis_web.DecodeData(f.Data, &p); err != nil {
				wc.debugw("webapp_frame_dropped", "event", f.Event, "err", err)
				return true
			}
			desc, err := session.Init(ctx, p)
			if err != nil {
				h.logSessionError(wc, err)
				desc = nil
			}
			reply = desc
		case cobitis_web.EventUpdateSensor:
			var p service.UpdateSensorParams
			if err := cobitis_web.DecodeData(f.Data, &p); err != nil {
				wc.debugw("webapp_frame_dropped", "event", f.Event, "err", err)
				return true
			}
			reply = session.UpdateSensor(ctx, p)
		default:
			wc.infow("webapp_unknown_event", "event", f.Event)
			return true
		}

		if f.Ack != nil {
			if err := wc.send(f.Event, f.Ack, reply); err != nil {
				wc.infow("ws_write_failed", "event", f.Event, "err", err)
				return false
			}
		}
		if f.Event == cobitis_web.EventInitSession {
			session.Start()
		}
		return true
	})
}

func (h *Handler) logSessionError(wc *wsConn, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrNoSensors):
		wc.infow("webapp_init_refused", "err", err)
	default:
		if h.log != nil {
			h.log.Errorw("webapp_init_failed", "err", err)
		}
	}
}
