package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"blister-inspector/config"
	"blister-inspector/internal/api/dashboard"
	"blister-inspector/internal/api/telegram"
	"blister-inspector/internal/container"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/actuator"
	"blister-inspector/internal/infrastructure/camera"
	"blister-inspector/internal/infrastructure/classifier"
	"blister-inspector/internal/infrastructure/imaging"
	"blister-inspector/internal/infrastructure/notify"
	"blister-inspector/internal/infrastructure/params"
	"blister-inspector/internal/infrastructure/storage"
	"blister-inspector/internal/infrastructure/vision"
	"blister-inspector/internal/log"
)

const sinkTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the inspection line controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := openParams(cfg.ParamsPath)
	if err != nil {
		return err
	}

	detector, err := vision.NewContourDetector()
	if err != nil {
		return fmt.Errorf("detector: %w", err)
	}

	capture, err := camera.Open(cfg.CameraDevice)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	defer capture.Close()
	grabber := camera.NewGrabber(capture)

	out, closeOut, err := openActuator(cfg)
	if err != nil {
		return err
	}
	defer closeOut()
	act := actuator.NewLink(out, cfg.CommandTokens, cfg.ActuatorInterval)

	link := classifier.NewLink(imaging.NewEncoder(cfg.ClassifyImageSize, cfg.JPEGQuality), cfg.ClassifyTimeout)
	defer link.Close()
	mux := http.NewServeMux()
	mux.Handle("/classify", link)
	classifierSrv := &http.Server{Addr: cfg.ClassifierAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	inspections, subscribers, closeDB, err := openStorage(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer closeDB()

	dispatcher := notify.NewDispatcher(cfg.NotifyQueue, sinkTimeout, notify.RepositorySink{Repo: inspections})
	if cfg.MQTTBroker != "" {
		connectCtx, stop := context.WithTimeout(ctx, 10*time.Second)
		client, err := notify.ConnectMQTT(connectCtx, cfg.MQTTBroker, cfg.MQTTClientID)
		stop()
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		dispatcher.Add(notify.NewMQTTSink(client, cfg.MQTTTopic))
	}

	c := container.New(container.Ports{
		Frames:      grabber,
		Params:      store,
		Detector:    detector,
		Classifier:  link,
		Actuator:    act,
		Notifier:    dispatcher,
		Subscribers: subscribers,
	}, cfg.Timing())

	var wg sync.WaitGroup
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				log.Error("component stopped", "component", name, "error", err)
				cancel()
			}
		}()
	}

	if cfg.TelegramToken != "" {
		if _, err := c.Subscriptions.Subscribe(ctx, cfg.TelegramChatID); err != nil {
			return fmt.Errorf("subscribe default chat: %w", err)
		}
		bot, err := telegram.NewBot(cfg.TelegramToken, c.Subscriptions, inspections, c.Controller,
			&imaging.Encoder{Quality: cfg.JPEGQuality})
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		dispatcher.Add(bot)
		spawn("telegram", func() error { return bot.Run(ctx) })
	}

	if cfg.DashboardAddr != "" {
		dash := dashboard.NewServer(c.Controller, inspections, store,
			&imaging.Encoder{Size: image.Pt(320, 240), Quality: 70})
		dispatcher.Add(dash)
		spawn("dashboard", func() error { return dash.Run(ctx, cfg.DashboardAddr) })
	}

	spawn("camera", func() error { grabber.Run(ctx); return nil })
	spawn("actuator", func() error { act.Run(ctx); return nil })
	spawn("params", func() error { store.Watch(ctx, cfg.ParamsReloadInterval); return nil })
	spawn("notifier", func() error { dispatcher.Run(ctx); return nil })
	spawn("classifier", func() error {
		go func() {
			<-ctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			classifierSrv.Shutdown(shutdownCtx)
		}()
		log.Info("waiting for classifier", "addr", cfg.ClassifierAddr, "path", "/classify")
		if err := classifierSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = c.Controller.Run(ctx)
	cancel()
	wg.Wait()

	sent, failed := act.Stats()
	log.Info("line stopped",
		"dropped_frames", grabber.Dropped(),
		"actuator_sent", sent,
		"actuator_failed", failed,
		"actuator_superseded", act.Superseded(),
		"notifications_dropped", dispatcher.Dropped(),
	)

	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}

func openParams(path string) (*params.Store, error) {
	if path == "" {
		return params.NewStore(entity.DefaultDetectionParams())
	}
	store, err := params.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	log.Info("detection params loaded", "path", path, "params", store.Current())
	return store, nil
}

func openActuator(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.SerialPort == "" {
		log.Warn("SERIAL_PORT not set, actuator commands are only logged")
		w := &actuator.LogWriter{Logf: func(format string, args ...any) {
			log.Info(fmt.Sprintf(format, args...))
		}}
		return w, func() {}, nil
	}

	p, err := actuator.OpenSerial(cfg.SerialPort, cfg.SerialBaud)
	if err != nil {
		return nil, nil, err
	}
	log.Info("actuator serial port open", "port", cfg.SerialPort, "baud", cfg.SerialBaud)
	return p, func() { p.Close() }, nil
}

func openStorage(path string) (port.InspectionRepository, port.SubscriberRepository, func(), error) {
	if path == "" {
		log.Warn("DATABASE_PATH not set, inspection history is kept in memory")
		return storage.NewMemoryInspectionRepository(1000), storage.NewMemorySubscriberRepository(), func() {}, nil
	}

	db, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, nil, nil, err
	}
	return db, db.Subscribers(), func() { db.Close() }, nil
}
