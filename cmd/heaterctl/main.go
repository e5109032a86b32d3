package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heaterctl/internal/climate"
	"heaterctl/internal/config"
	"heaterctl/internal/handlers"
	"heaterctl/internal/logger"
	"heaterctl/internal/mqtt"
	"heaterctl/internal/repository"
	"heaterctl/internal/server"
	"heaterctl/internal/service"

	"github.com/spf13/viper"
)

func main() {
	// load config.yml first so the log level can come from it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// heater definitions and their mutable options
	heaters, err := config.LoadHeaters()
	if err != nil {
		log.Fatalw("invalid heater configuration", "err", err)
	}
	opts := config.NewOptions(heaters)

	// connect to the broker
	bus, err := connectBus(log)
	if err != nil {
		log.Fatalw("failed to connect to mqtt broker", "err", err)
	}
	defer bus.Close()

	// wire dependencies
	repos := repository.NewRepository(db)
	services := service.NewService(heaters, opts, bus, repos, climate.DefaultTimings(), viper.GetString("jwt.signing_key"), log)
	apiHandler := handlers.NewHandler(services, log)

	// context for controller startup (state restoration reads)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services.Start(ctx)
	defer services.Close()

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "heaterctl.db")
		dbPath = "heaterctl.db"
	}
	return repository.InitDB(dbPath)
}

// connectBus dials the MQTT broker named in configuration.
func connectBus(log *logger.Logger) (*mqtt.RealBus, error) {
	broker := viper.GetString("mqtt.broker")
	if broker == "" {
		broker = "tcp://localhost:1883"
		log.Infow("mqtt.broker not set in config; using default", "default", broker)
	}
	clientID := viper.GetString("mqtt.client_id")
	if clientID == "" {
		clientID = "heaterctl"
	}
	return mqtt.NewRealBus(broker, clientID)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
