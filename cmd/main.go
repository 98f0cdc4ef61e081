package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cobitis_web/internal/cache"
	"cobitis_web/internal/chart"
	"cobitis_web/internal/handlers"
	"cobitis_web/internal/ingest"
	"cobitis_web/internal/logger"
	"cobitis_web/internal/repository"
	"cobitis_web/internal/repository/db"
	"cobitis_web/internal/server"
	"cobitis_web/internal/service"

	"github.com/spf13/viper"
)

const (
	defaultDBPath       = "cobitis.db"
	defaultSimTick      = 10 * time.Second
	defaultPrefsTTL     = 30 * 24 * time.Hour
	shutdownTimeout     = 10 * time.Second
	redisConnectTimeout = 5 * time.Second
)

func main() {
	// load config.yml; env vars override (COBITIS_AUTH_SIGNING_KEY, ...)
	cfgErr := loadConfig()

	log := logger.Get(logger.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	})
	if cfgErr != nil {
		log.Fatalw("error reading config", "err", cfgErr)
	}

	if err := service.ValidateRanges(service.DisplayRanges, service.ChartTicks); err != nil {
		log.Fatalw("invalid display ranges", "err", err)
	}

	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	prefs, closePrefs := openPreferenceStore(log)
	defer closePrefs()

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.Options{
		SigningKey:      viper.GetString("auth.signing_key"),
		TokenTTL:        viper.GetDuration("auth.token_ttl"),
		PushInterval:    viper.GetDuration("dashboard.push_interval"),
		SimulatorSecret: viper.GetString("simulator.sensor_secret"),
		Preferences:     prefs,
		Log:             log,
	})
	apiHandler := handlers.NewHandler(services, log, chart.NewRenderer(viper.GetString("chart.font")))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if viper.GetBool("simulator.enabled") {
		tick := viper.GetDuration("simulator.interval")
		if tick <= 0 {
			tick = defaultSimTick
		}
		log.Infow("simulator enabled", "interval", tick)
		go services.Simulator.Run(ctx, tick)
	}

	broker := startBroker(services, log)

	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	waitForShutdown(cancel, srv, broker, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetEnvPrefix("COBITIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("port", server.DefaultPort)
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("log.format", logger.ConsoleFormat)
	viper.SetDefault("db.path", defaultDBPath)
	viper.SetDefault("auth.token_ttl", service.DefaultTokenTTL)
	viper.SetDefault("dashboard.push_interval", service.DefaultPushInterval)
	viper.SetDefault("redis.ttl", defaultPrefsTTL)
	viper.SetDefault("simulator.interval", defaultSimTick)

	return viper.ReadInConfig()
}

func openDB(log *logger.Logger) (*sql.DB, error) {
	path := viper.GetString("db.path")
	log.Infow("opening sqlite", "path", path)
	return db.InitDB(path)
}

// openPreferenceStore uses Redis when redis.addr is set, memory otherwise.
func openPreferenceStore(log *logger.Logger) (cache.PreferenceStore, func()) {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		return cache.NewMemoryStore(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	store, err := cache.NewRedisStore(ctx, addr, viper.GetString("redis.password"), viper.GetInt("redis.db"), viper.GetDuration("redis.ttl"))
	if err != nil {
		log.Fatalw("failed to connect to redis", "addr", addr, "err", err)
	}
	log.Infow("preferences in redis", "addr", addr)
	return store, func() {
		if err := store.Close(); err != nil {
			log.Errorw("failed to close redis", "err", err)
		}
	}
}

// startBroker serves MQTT ingest when mqtt.address is set.
func startBroker(services *service.Service, log *logger.Logger) *ingest.Broker {
	addr := viper.GetString("mqtt.address")
	if addr == "" {
		return nil
	}
	broker, err := ingest.NewBroker(addr, services.Sensors, services.Measurements, log)
	if err != nil {
		log.Fatalw("failed to init mqtt broker", "err", err)
	}
	if err := broker.Serve(); err != nil {
		log.Fatalw("failed to start mqtt broker", "err", err)
	}
	log.Infow("mqtt ingest listening", "addr", addr)
	return broker
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM and then stops everything.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, broker *ingest.Broker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Errorw("mqtt broker close", "err", err)
		}
	}

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
