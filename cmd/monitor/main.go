// cmd/monitor/main.go
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/config"
	"github.com/sseevri/substation-monitor/internal/notify"
	"github.com/sseevri/substation-monitor/internal/poller"
	"github.com/sseevri/substation-monitor/internal/storage"
	"github.com/sseevri/substation-monitor/internal/web"
)

func main() {
	if len(os.Args) < 2 {
		logrus.Fatal("usage: monitor <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("config load failed: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		logrus.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	log := newLogger(cfg.Monitor.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Poll engine
	// --------------------

	p, closePoller, err := poller.Build(cfg, log)
	if err != nil {
		log.Fatalf("poller build failed: %v", err)
	}
	defer closePoller()

	names := p.RegisterNames()

	// --------------------
	// Sinks (each optional)
	// --------------------

	type sink struct {
		name  string
		write func(poller.OutputRecord) error
	}
	var sinks []sink

	if path := cfg.Monitor.Storage.CSVFile; path != "" {
		w := storage.NewCSVWriter(path, names, log)
		sinks = append(sinks, sink{"csv", w.Write})
	}

	if path := cfg.Monitor.Storage.DBPath; path != "" {
		db, err := storage.Open(
			path,
			cfg.Monitor.Storage.DailyDBPath,
			names,
			time.Duration(cfg.Monitor.Storage.LogIntervalS)*time.Second,
			log,
		)
		if err != nil {
			log.Fatalf("storage open failed: %v", err)
		}
		defer db.Close()
		sinks = append(sinks, sink{"sqlite", db.Record})
	}

	if broker := cfg.Monitor.MQTT.Broker; broker != "" {
		pub, err := notify.NewPublisher(
			broker,
			cfg.Monitor.MQTT.ClientID,
			cfg.Monitor.MQTT.Topic,
			notify.DefaultThresholds(),
			log,
		)
		if err != nil {
			log.Fatalf("mqtt connect failed: %v", err)
		}
		defer pub.Close()
		sinks = append(sinks, sink{"mqtt", pub.Publish})
	}

	if listen := cfg.Monitor.Web.Listen; listen != "" {
		srv := web.NewServer(log)
		go func() {
			if err := srv.ListenAndServe(listen); err != nil {
				log.Errorf("web server stopped: %v", err)
			}
		}()
		sinks = append(sinks, sink{"web", func(rec poller.OutputRecord) error {
			srv.Update(rec)
			return nil
		}})
	}

	// --------------------
	// Poll loop -> sinks
	// --------------------

	out := make(chan poller.OutputRecord)
	go p.Run(ctx, out)

	log.WithFields(logrus.Fields{
		"port":     cfg.Monitor.Serial.Port,
		"meters":   len(cfg.Monitor.Meters),
		"interval": p.Interval(),
	}).Info("monitor started")

	for {
		select {
		case <-ctx.Done():
			log.Info("monitor stopping")
			return
		case rec := <-out:
			for _, s := range sinks {
				if err := s.write(rec); err != nil {
					log.WithError(err).WithField("sink", s.name).Error("sink write failed")
				}
			}
		}
	}
}

// newLogger builds the process logger from config: level plus an
// optional file target alongside stderr.
func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warnf("cannot open log file %s: %v", cfg.File, err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	}

	return log
}
