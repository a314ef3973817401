package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/sense2homekit/internal/adapter/actor"
	"github.com/berfenger/sense2homekit/internal/adapter/homekit"
	"github.com/berfenger/sense2homekit/internal/cache"
	"github.com/berfenger/sense2homekit/internal/config"
	"github.com/berfenger/sense2homekit/internal/core/actor"
	"github.com/berfenger/sense2homekit/internal/core/port"
	"github.com/berfenger/sense2homekit/internal/metrics"
	"github.com/berfenger/sense2homekit/internal/server"
	"github.com/berfenger/sense2homekit/internal/util/actorutil"
	"github.com/berfenger/sense2homekit/pkg/sense"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, cancelHomeKit context.CancelFunc, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	cancelHomeKit()

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	eventStream := &eventstream.EventStream{}
	readingCache := cache.New()

	// metrics
	m := metrics.New()
	metricsSub := eventStream.Subscribe(m.Handle)
	defer eventStream.Unsubscribe(metricsSub)

	// homekit accessory
	homekitCtx, cancelHomeKit := context.WithCancel(context.Background())
	defer cancelHomeKit()
	if cfg.HomeKit.Enable {
		acc := homekit.NewPowerMeterAccessory(cfg, readingCache, logger)
		hkServer, err := homekit.NewServer(cfg.HomeKit, acc)
		if err != nil {
			logger.Error("homekit server setup failed", zap.Error(err))
			return
		}
		accSub := eventStream.Subscribe(acc.HandleEvent)
		defer eventStream.Unsubscribe(accSub)
		go func() {
			if err := homekit.Run(homekitCtx, hkServer, logger); err != nil {
				logger.Error("homekit server error", zap.Error(err))
			}
		}()
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, senseStreamProvider(cfg, logger), readingCache, eventStream,
			mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, readingCache, m.Handler())
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, cancelHomeKit, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.StopFuture(pid).Wait()
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SENSE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SENSE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("sense")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}
	if cfg.Verbose && cfg.LogLevel > zap.DebugLevel {
		cfg.LogLevel = zap.DebugLevel
	}

	// empty credentials reach the sense client and fail there, setup is retried
	if cfg.Username == "" || cfg.Password == "" {
		slog.Warn("config params username and password are not set")
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	pin, err := config.CheckHomeKitPin(cfg.HomeKit.Pin)
	if err != nil {
		return nil, err
	}
	cfg.HomeKit.Pin = pin

	return &cfg, nil
}

func senseStreamProvider(cfg *config.Config, logger *zap.Logger) actor.EnergyStreamProvider {
	return func(ctx context.Context) (port.EnergyStreamClient, error) {
		client, err := sense.Setup(ctx, sense.Options{
			Email:       cfg.Username,
			Password:    cfg.Password,
			Verbose:     cfg.Verbose,
			APIURL:      cfg.Sense.APIURL,
			RealtimeURL: cfg.Sense.RealtimeURL,
			HTTPClient:  &http.Client{Timeout: cfg.SenseHTTPTimeout()},
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("name", config.ACCESSORY_NAME)
	viper.SetDefault("polling_interval", config.DEFAULT_POLLING_INTERVAL_SECS)
	viper.SetDefault("verbose", false)
	viper.SetDefault("sense.api_url", sense.DEFAULT_API_URL)
	viper.SetDefault("sense.realtime_url", sense.DEFAULT_REALTIME_URL)
	viper.SetDefault("sense.http_timeout_seconds", config.DEFAULT_SENSE_HTTP_TIMEOUT_SECS)
	viper.SetDefault("homekit.enable", true)
	viper.SetDefault("homekit.pin", config.DEFAULT_HOMEKIT_PIN)
	viper.SetDefault("homekit.port", config.DEFAULT_HOMEKIT_PORT)
	viper.SetDefault("homekit.storage_path", config.DEFAULT_HOMEKIT_STORAGE_PATH)
	viper.SetDefault("homekit.eve_energy", false)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "sense2homekit")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
