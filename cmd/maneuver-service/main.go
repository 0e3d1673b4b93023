package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"maneuver-service/internal/config"
	"maneuver-service/internal/core"
	"maneuver-service/internal/hardware"
	"maneuver-service/internal/logger"
	"maneuver-service/internal/messaging"
	"maneuver-service/internal/metrics"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
	"maneuver-service/internal/types"
)

func main() {
	// Service log level
	logLevel := flag.String("log", "3", "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	configPath := flag.String("config", "", "YAML config file")
	testName := flag.String("test", "", "Test to run right after startup")
	simulate := flag.Bool("sim", false, "Drive the simulated robot instead of hardware")

	// Overrides of the config file
	redisHost := flag.String("redis-host", "", "Redis host")
	redisPort := flag.Int("redis-port", 0, "Redis port")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address, empty to disable")
	driveTime := flag.Duration("drive-time", 0, "Timed drive duration")
	driveDistance := flag.Float64("drive-distance", 0, "Distance drive target in inches")
	turnDegrees := flag.Float64("turn-degrees", 0, "Gyro turn target in degrees")
	rangeDistance := flag.Float64("range-distance", 0, "Range drive target in inches")
	sonarDistance := flag.Float64("sonar-distance", 0, "Sonar drive target in inches")
	sonarIndex := flag.String("sonar-index", "", "Sonar used by the sonar drive (left, right, front)")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		stdLogger.Fatalf("Invalid log level: %v", err)
	}
	l := logger.NewLogger(stdLogger, level)

	l.Infof("Starting maneuver service...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		l.Fatalf("Failed to load config: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "redis-host":
			cfg.Redis.Host = *redisHost
		case "redis-port":
			cfg.Redis.Port = *redisPort
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "drive-time":
			cfg.Params.DriveTime = *driveTime
		case "drive-distance":
			cfg.Params.DriveDistance = *driveDistance
		case "turn-degrees":
			cfg.Params.TurnDegrees = *turnDegrees
		case "range-distance":
			cfg.Params.RangeDistance = *rangeDistance
		case "sonar-distance":
			cfg.Params.SonarDistance = *sonarDistance
		case "sonar-index":
			idx, err := types.ParseSonarIndex(*sonarIndex)
			if err != nil {
				l.Fatalf("Invalid sonar index: %v", err)
			}
			cfg.Params.SonarIndex = idx
		}
	})
	if err := cfg.Validate(); err != nil {
		l.Fatalf("Invalid configuration: %v", err)
	}

	var test types.Test
	if *testName != "" {
		if test, err = types.ParseTest(*testName); err != nil {
			l.Fatalf("Invalid test: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l)

	var system *core.TestSystem
	if *simulate {
		l.Infof("Running against the simulated robot")
		sim := hardware.NewSimRobot(cfg.Sim)
		r := robot.New(l, sm.NewMonotonicClock(), cfg.Robot, core.SimDevices(cfg, sim), redisClient, redisClient)
		system = core.NewTestSystem(cfg, r, nil, redisClient, l).WithSimulation(sim)
	} else {
		io := hardware.NewLinuxHardwareIO(l, cfg.IO)
		bus, err := hardware.DialCANBus(ctx, cfg.CANInterface, l)
		if err != nil {
			l.Fatalf("Failed to open CAN bus %s: %v", cfg.CANInterface, err)
		}
		defer bus.Close()
		bus.Start()

		r := robot.New(l, sm.NewMonotonicClock(), cfg.Robot, core.HardwareDevices(cfg, io, bus, redisClient), redisClient, redisClient)
		system = core.NewTestSystem(cfg, r, io, redisClient, l)
	}
	if test != "" {
		system.Select(test)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Errorf("Metrics server failed: %v", err)
			}
		}()
		l.Infof("Serving metrics on %s", cfg.MetricsAddr)
	}

	if err := system.Start(ctx); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}
	go system.Run(ctx)

	l.Infof("System started successfully")

	if test != "" {
		system.RequestStart(test)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	cancel()
	system.Shutdown()
	if metricsServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			l.Warnf("Metrics server shutdown: %v", err)
		}
	}
	l.Infof("Shutdown complete")
}
