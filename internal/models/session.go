package models

// SessionDescriptor is the reply to INIT_SESSION.
type SessionDescriptor struct {
	Ranges      []string `json:"ranges"`
	RangeIndex  int      `json:"range_index"`
	Sensors     []string `json:"sensors"`
	SensorIndex int      `json:"sensor_index"`
	ChartTicks  int      `json:"chart_ticks"`
	TickLength  int64    `json:"tick_length"`
}

// Preferences is the per-user selection kept between connections.
type Preferences struct {
	RangeIndex  int `json:"range_index"`
	SensorIndex int `json:"sensor_index"`
}
