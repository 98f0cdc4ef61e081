package handlers

import (
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"cobitis_web/internal/chart"
	"cobitis_web/internal/metrics"
	"cobitis_web/internal/models"
	"cobitis_web/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errListSensors    = "failed to load sensors"
	errRegisterSensor = "failed to register sensor"
	errUnknownSensor  = "unknown sensor index"
	errRenderChart    = "failed to render chart"
	errInvalidBody    = "invalid body: "
	errInvalidQuery   = "invalid query: "
)

// Default chart image size in pixels.
const (
	defaultChartWidth  = 720
	defaultChartHeight = 240
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// RegisterSensorRequest is the payload of sensor registration.
type RegisterSensorRequest struct {
	Description string `json:"description" binding:"required" example:"tank A"`
}

// SensorResponse lists a sensor by its position in the user's list.
type SensorResponse struct {
	Index       int    `json:"index" example:"0"`
	SensorID    int64  `json:"sensor_id" example:"1"`
	Description string `json:"description" example:"tank A"`
}

// chartQuery holds the chart.png query parameters.
type chartQuery struct {
	RangeIndex int    `form:"range_index"`
	Kind       string `form:"kind" binding:"omitempty,oneof=temp tds"`
	Width      int    `form:"width" binding:"omitempty,min=1,max=2000"`
	Height     int    `form:"height" binding:"omitempty,min=1,max=2000"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List sensors
// @Tags         sensors
// @Produce      json
// @Success      200  {array}   SensorResponse
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sensors [get]
// @Security     BearerAuth
func (h *Handler) listSensors(c *gin.Context) {
	sensors, err := h.services.Sensors.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListSensors, "sensors_list_failed", err)
		return
	}
	out := make([]SensorResponse, len(sensors))
	for i, s := range sensors {
		out[i] = SensorResponse{Index: i, SensorID: s.SensorID, Description: s.Description}
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      Register sensor
// @Description  Returns the sensor secret once; it authenticates the sensor channel and MQTT.
// @Tags         sensors
// @Accept       json
// @Produce      json
// @Param        body  body      RegisterSensorRequest  true  "Sensor payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/sensors [post]
// @Security     BearerAuth
func (h *Handler) registerSensor(c *gin.Context) {
	var req RegisterSensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
		return
	}

	s, err := h.services.Sensors.Register(c.Request.Context(), currentUserID(c), req.Description)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + "empty description"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errRegisterSensor, "sensor_register_failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sensor_id":   s.SensorID,
		"description": s.Description,
		"secret":      s.Secret,
	})
}

// @Summary      Latest values
// @Description  Trimmed mean of [temp1, tds] over the last minute; null without data.
// @Tags         sensors
// @Produce      json
// @Param        index  path      int  true  "Sensor index"
// @Success      200    {object}  map[string]interface{}
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/v1/sensors/{index}/latest [get]
// @Security     BearerAuth
func (h *Handler) latestValues(c *gin.Context) {
	sensor, ok := h.sensorByIndex(c)
	if !ok {
		return
	}

	values, err := h.services.Measurements.Latest(c.Request.Context(), sensor.SensorID, time.Now())
	if err != nil {
		metrics.StorageErrors.WithLabelValues("latest").Inc()
		if h.log != nil {
			h.log.Errorw("sensor_latest_failed", "sensor_id", sensor.SensorID, "err", err)
		}
		values = nil
	}
	c.JSON(http.StatusOK, gin.H{"values": values})
}

// @Summary      Chart image
// @Description  Renders the last 360 ticks of the selected range as a transparent PNG.
// @Tags         sensors
// @Produce      png
// @Param        index        path   int     true   "Sensor index"
// @Param        range_index  query  int     false  "Display range (0-3)"
// @Param        kind         query  string  false  "temp or tds"
// @Param        width        query  int     false  "Width in pixels"
// @Param        height       query  int     false  "Height in pixels"
// @Success      200
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/sensors/{index}/chart.png [get]
// @Security     BearerAuth
func (h *Handler) chartPNG(c *gin.Context) {
	var q chartQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidQuery + err.Error()})
		return
	}
	if q.RangeIndex < 0 || q.RangeIndex >= len(service.DisplayRanges) {
		q.RangeIndex = 0
	}
	kind := chart.Kind(q.Kind)
	if kind == "" {
		kind = chart.KindTemperature
	}
	if q.Width == 0 {
		q.Width = defaultChartWidth
	}
	if q.Height == 0 {
		q.Height = defaultChartHeight
	}

	sensor, ok := h.sensorByIndex(c)
	if !ok {
		return
	}

	tickLength := service.TickLength(q.RangeIndex)
	maxTick := time.Now().Unix() / tickLength
	minTick := maxTick - service.ChartTicks

	series, err := h.services.Measurements.Series(c.Request.Context(), service.SeriesParams{
		SensorID:   sensor.SensorID,
		MinTick:    minTick,
		MaxTick:    maxTick,
		TickLength: tickLength,
	})
	if err != nil {
		metrics.StorageErrors.WithLabelValues("series").Inc()
		if h.log != nil {
			h.log.Errorw("sensor_series_failed", "sensor_id", sensor.SensorID, "err", err)
		}
		series = models.NewSeries(minTick, maxTick)
	}

	start := time.Now()
	window := chart.NewWindow(service.ChartTicks)
	if err := window.Apply(series); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errRenderChart, "chart_window_failed", err)
		return
	}
	params, err := window.Params(kind, tickLength, q.RangeIndex, time.Local)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errRenderChart, "chart_params_failed", err)
		return
	}
	img, err := h.renderer.Render(params, q.Width, q.Height)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errRenderChart, "chart_render_failed", err)
		return
	}
	metrics.ChartRenders.Observe(time.Since(start).Seconds())

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, img); err != nil && h.log != nil {
		h.log.Infow("chart_write_failed", "err", err)
	}
}

// sensorByIndex resolves the :index path parameter against the user's sensors.
func (h *Handler) sensorByIndex(c *gin.Context) (models.Sensor, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownSensor})
		return models.Sensor{}, false
	}
	sensors, err := h.services.Sensors.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListSensors, "sensors_list_failed", err)
		return models.Sensor{}, false
	}
	if index < 0 || index >= len(sensors) {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownSensor})
		return models.Sensor{}, false
	}
	return sensors[index], true
}
