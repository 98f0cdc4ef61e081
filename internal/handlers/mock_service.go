package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cobitis_web/internal/models"
	"cobitis_web/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockSensors struct {
	mu        sync.Mutex
	secrets   map[string]int64
	authErr   error
	byUser    map[int][]models.Sensor
	listErr   error
	created   models.Sensor
	createErr error
	renamed   map[int64]string

	lastRegisterUser int
	lastRegisterDesc string
}

func (m *mockSensors) Authenticate(ctx context.Context, secret string) (int64, error) {
	if m.authErr != nil {
		return 0, m.authErr
	}
	id, ok := m.secrets[secret]
	if !ok {
		return 0, service.ErrUnauthenticated
	}
	return id, nil
}
func (m *mockSensors) List(ctx context.Context, userID int) ([]models.Sensor, error) {
	return m.byUser[userID], m.listErr
}
func (m *mockSensors) Register(ctx context.Context, userID int, description string) (models.Sensor, error) {
	m.lastRegisterUser = userID
	m.lastRegisterDesc = description
	return m.created, m.createErr
}
func (m *mockSensors) UpdateDescription(ctx context.Context, sensorID int64, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renamed == nil {
		m.renamed = map[int64]string{}
	}
	m.renamed[sensorID] = description
	return true, nil
}

type appended struct {
	sensorID int64
	values   [3]float64
}

type mockMeasurements struct {
	latest    models.LatestValues
	latestErr error
	series    func(p service.SeriesParams) (models.Series, error)
	appendErr error
	appends   chan appended

	mu         sync.Mutex
	lastSeries service.SeriesParams
}

func (m *mockMeasurements) Append(ctx context.Context, sensorID int64, values [3]float64) error {
	if m.appends != nil {
		m.appends <- appended{sensorID: sensorID, values: values}
	}
	return m.appendErr
}
func (m *mockMeasurements) Latest(ctx context.Context, sensorID int64, now time.Time) (models.LatestValues, error) {
	return m.latest, m.latestErr
}
func (m *mockMeasurements) Series(ctx context.Context, p service.SeriesParams) (models.Series, error) {
	m.mu.Lock()
	m.lastSeries = p
	m.mu.Unlock()
	if m.series != nil {
		return m.series(p)
	}
	return models.NewSeries(p.MinTick, p.MaxTick), nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
