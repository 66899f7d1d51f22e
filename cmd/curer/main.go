// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command curer reads an SHT31-class temperature and humidity sensor over
// I2C and serves the readings over HTTP. It runs in the foreground by
// default and understands the install, remove, start, stop and status
// subcommands to manage itself as a system service.
//
// With -debug it serves a fixed measurement without touching any hardware,
// which is handy when developing away from the sensor.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	logger "github.com/d2r2/go-logger"
	"github.com/takama/daemon"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"curer/sht3x"
	"curer/web"
)

const (
	// name of the service
	name        = "curer"
	description = "curing chamber temperature and humidity monitor"
)

var lg = logger.NewPackageLogger("main", logger.InfoLevel)

// debugSensor stands in for the hardware when running with -debug.
type debugSensor struct{}

func (debugSensor) ReadTemperatureHumidity() (sht3x.Measurement, error) {
	return sht3x.Measurement{Temperature: 22.7, Humidity: 75}, nil
}

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage() (string, error) {
	listenHost := flag.String("host", "127.0.0.1", "address to listen on")
	port := flag.Int("port", 5000, "port to listen on")
	sensorName := flag.String("name", "Sensor", "sensor name reported in responses")
	busName := flag.String("bus", "1", "I2C bus to open")
	addr := flag.String("addr", "0x44", "sensor address on the bus")
	interval := flag.Duration("interval", 5*time.Second, "push period of the live stream")
	debug := flag.Bool("debug", false, "serve a fixed measurement without hardware and log verbosely")
	flag.Parse()

	usage := "Usage: " + name + " install | remove | start | stop | status"
	// if received any kind of command, do it
	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	if *debug {
		logger.ChangePackageLogLevel("main", logger.DebugLevel)
		logger.ChangePackageLogLevel("web", logger.DebugLevel)
	}

	var sensor web.Sensor
	if *debug {
		lg.Debug("debug mode, serving a fixed measurement")
		sensor = debugSensor{}
	} else {
		if _, err := host.Init(); err != nil {
			return "", err
		}
		bus, err := i2creg.Open(*busName)
		if err != nil {
			return "", err
		}
		defer bus.Close()
		devAddr, err := strconv.ParseUint(*addr, 0, 16)
		if err != nil {
			return "", fmt.Errorf("invalid sensor address %q: %w", *addr, err)
		}
		dev, err := sht3x.New(bus, &sht3x.Opts{Addr: uint16(devAddr)})
		if err != nil {
			return "", err
		}
		defer dev.Halt()
		lg.Infof("opened %s on bus %s", dev, bus)
		sensor = dev
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", *listenHost, *port),
		Handler: web.NewServer(sensor, &web.Opts{Name: *sensorName, LiveInterval: *interval}),
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Infof("serving %s readings on http://%s", *sensorName, srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	// Set up channel on which to send signal notifications.
	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case killSignal := <-interrupt:
		lg.Infof("got signal: %v", killSignal)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return "", err
		}
		if killSignal == syscall.SIGINT {
			return "daemon was interrupted by system signal", nil
		}
		return "daemon was killed", nil
	case err := <-serveErr:
		return "", err
	}
}

func main() {
	defer logger.FinalizeLogger()
	srv, err := daemon.New(name, description, daemon.SystemDaemon)
	if err != nil {
		lg.Fatal(err)
	}
	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		lg.Error(status)
		lg.Fatal(err)
	}
	if status != "" {
		lg.Info(status)
	}
}
