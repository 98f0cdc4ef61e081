package models

type Sensor struct {
	SensorID    int64  `json:"sensor_id"`
	UserID      int    `json:"-"`
	Description string `json:"description"`
	Secret      string `json:"-"` // never exposed
}
