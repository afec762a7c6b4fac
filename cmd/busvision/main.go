// Package main provides the CLI wrapper for busvision.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/busvision/busvision/internal/config"
	"github.com/busvision/busvision/pkg/busvision"
	"github.com/busvision/busvision/pkg/busvision/camera"
	"github.com/busvision/busvision/pkg/busvision/classifier"
	"github.com/busvision/busvision/pkg/busvision/detector"
	"github.com/busvision/busvision/pkg/busvision/gps"
	"github.com/busvision/busvision/pkg/busvision/writer"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	busID := flag.String("bus-id", "", "Bus identifier (overrides config)")
	routeID := flag.String("route-id", "", "Route identifier (overrides config)")
	onnxLibPath := flag.String("onnx-lib", "", "Path to the ONNX Runtime shared library")
	verbose := flag.Bool("verbose", false, "Enable verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "busvision - real-time bus passenger counting\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -config config.toml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config config.toml -bus-id 081433 -route-id 304A\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("busvision version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *busID != "" {
		cfg.Session.BusID = *busID
	}
	if *routeID != "" {
		cfg.Session.RouteID = *routeID
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		os.Exit(1)
	}

	if *verbose {
		log.Printf("configuration:")
		log.Printf("  session: bus=%s route=%s stop_hour=%d", cfg.Session.BusID, cfg.Session.RouteID, cfg.Session.StopHour)
		log.Printf("  cameras: %d", len(cfg.Cameras))
		log.Printf("  frame: %dx%d line_height=%d", cfg.Frame.Width, cfg.Frame.Height, cfg.Frame.LineHeight)
		log.Printf("  tracker: max_age=%d min_hits=%d iou=%.3f", cfg.Tracker.MaxAge, cfg.Tracker.MinHits, cfg.Tracker.IOU)
	}

	session := busvision.NewSession(cfg, time.Now())

	newCamera := func(stream *busvision.Stream) (busvision.CameraSource, error) {
		return camera.NewOpenCVCamera(), nil
	}
	newDetector := func(stream *busvision.Stream) (busvision.Detector, error) {
		return detector.NewONNXDetector(stream.Detector.Weights, *onnxLibPath, stream.Frame.Width, stream.Frame.Height)
	}
	newClassifier := func(stream *busvision.Stream) (busvision.Classifier, error) {
		return classifier.NewONNXClassifier(stream.Classifier.Weights, *onnxLibPath, stream.Classifier.Width, stream.Classifier.Height)
	}
	newSink := func(stream *busvision.Stream) (busvision.VideoSink, error) {
		return writer.NewHourRotatingWriter(session.OutVideoDir, stream.Camera, stream.Writer.FourCC, stream.Writer.FPS, stream.Frame.Width, stream.Frame.Height), nil
	}

	sup := busvision.NewSupervisor(session, session.Patience, gps.NoopSource{}, newCamera, newDetector, newClassifier, newSink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	log.Printf("session %s started, %d camera(s), stop hour %d", session.SessionID, len(session.Streams), session.StopHour)
	sup.Run(ctx)
	log.Printf("session %s stopped: count_in=%d count_out=%d total=%d",
		session.SessionID, session.CountIn(), session.CountOut(), session.CountTotal())
}
