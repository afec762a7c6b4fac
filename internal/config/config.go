// Package config provides TOML configuration loading for busvision.
//
// The configuration file supports the following structure:
//
//	[session]
//	bus_id = "081433"
//	route_id = "304A"
//	stop_hour = 2
//	logs_dir = "/tmp"
//	out_video_dir = "/tmp"
//
//	[[cameras]]
//	stream = "rtsp://192.168.1.10/cam1"
//
//	[detector]
//	weights = "models/detector.onnx"
//	conf = 0.45
//	iou = 0.01
//	half = true
//
//	[classifier]
//	weights = "models/classifier.onnx"
//	threshold = 0.25
//
//	[tracker]
//	max_age = 60
//	min_hits = 1
//	iou = 0.02
//
//	[gps]
//	patience = 120
//
// Example usage:
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the complete configuration for a busvision session.
type Config struct {
	Session    SessionConfig    `toml:"session"`
	Cameras    []CameraConfig   `toml:"cameras"`
	Frame      FrameConfig      `toml:"frame"`
	Detector   DetectorConfig   `toml:"detector"`
	Classifier ClassifierConfig `toml:"classifier"`
	Tracker    TrackerConfig    `toml:"tracker"`
	Writer     WriterConfig     `toml:"writer"`
	GPS        GPSConfig        `toml:"gps"`
}

// SessionConfig holds session identity and lifecycle settings.
type SessionConfig struct {
	// BusID identifies the vehicle (required).
	BusID string `toml:"bus_id"`
	// RouteID identifies the route (required).
	RouteID string `toml:"route_id"`
	// StopHour is the wall-clock hour (0-23) that ends the session.
	StopHour int `toml:"stop_hour"`
	// LogsDir is the directory for the append-only event log.
	LogsDir string `toml:"logs_dir"`
	// OutVideoDir is the root directory for rotated output videos.
	OutVideoDir string `toml:"out_video_dir"`
}

// CameraConfig holds one camera's stream source.
type CameraConfig struct {
	// Stream is a file path, URL, or RTSP URI (required).
	Stream string `toml:"stream"`
}

// FrameConfig holds the shared detector frame shape and counting geometry.
type FrameConfig struct {
	// Width is the detector frame width (default: 640).
	Width int `toml:"width"`
	// Height is the detector frame height (default: 640).
	Height int `toml:"height"`
	// LineHeight is the counting line y-coordinate (default: 130).
	LineHeight int `toml:"line_height"`
}

// DetectorConfig holds person-detector settings.
type DetectorConfig struct {
	// Weights is the path to the detector model handle (required).
	Weights string `toml:"weights"`
	// Conf is the minimum detection confidence (default: 0.45).
	Conf float64 `toml:"conf"`
	// IOU is the detector's own NMS IOU threshold (default: 0.01).
	IOU float64 `toml:"iou"`
	// Half enables half-precision inference (default: true).
	Half bool `toml:"half"`
	// MinSquare is the minimum accepted box area (default: 0).
	MinSquare float64 `toml:"min_square"`
	// MaxSidesRelation is the maximum accepted w/h or h/w ratio (default: +Inf).
	MaxSidesRelation float64 `toml:"max_sides_relation"`
}

// ClassifierConfig holds door-classifier settings.
type ClassifierConfig struct {
	// Weights is the path to the classifier model handle (required).
	Weights string `toml:"weights"`
	// Threshold is the P(closed) threshold above which the door is closed
	// (default: 0.25).
	Threshold float64 `toml:"threshold"`
	// Half enables half-precision inference (default: true).
	Half bool `toml:"half"`
	// Width is the classifier input frame width. It has no default, and
	// Validate does not check it.
	Width int `toml:"width"`
	// Height is the classifier input frame height. It has no default, and
	// Validate does not check it.
	Height int `toml:"height"`
}

// TrackerConfig holds identity-tracker and event-debounce settings.
type TrackerConfig struct {
	// MaxAge is the number of unseen frames before an id is dropped (default: 60).
	MaxAge int `toml:"max_age"`
	// MinHits is the minimum detections before a track is confirmed (default: 1).
	MinHits int `toml:"min_hits"`
	// IOU is the tracker's assignment IOU threshold (default: 0.02).
	IOU float64 `toml:"iou"`
	// NumFramesToAverage is the sliding-window size W (default: 5).
	NumFramesToAverage int `toml:"num_frames_to_average"`
	// MinFramesToCount is the debounce horizon in frames (default: 500).
	MinFramesToCount int `toml:"min_frames_to_count"`
	// MaxTrackedObjects is the LRU cap on per-id state (default: 100).
	MaxTrackedObjects int `toml:"max_tracked_objects"`
}

// WriterConfig holds output video codec settings.
type WriterConfig struct {
	// FourCC is the video codec FourCC code (default: "mp4v").
	FourCC string `toml:"fourcc"`
	// FPS is the output frame rate (default: 30).
	FPS int `toml:"fps"`
}

// GPSConfig holds geolocation provider settings.
type GPSConfig struct {
	// Patience is the staleness threshold in seconds (default: 120).
	Patience int `toml:"patience"`
	// APIKey is the geolocation provider credential. When empty, Load
	// falls back to the BUSVISION_GPS_API_KEY environment variable.
	APIKey string `toml:"gps_api_key"`
}

// Default returns the default configuration. Fields documented as
// "required" are left at their zero value and must be supplied by the
// config file or CLI overrides before Validate succeeds.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			StopHour:    2,
			LogsDir:     "/tmp",
			OutVideoDir: "/tmp",
		},
		Frame: FrameConfig{
			Width:      640,
			Height:     640,
			LineHeight: 130,
		},
		Detector: DetectorConfig{
			Conf:             0.45,
			IOU:              0.01,
			Half:             true,
			MinSquare:        0,
			MaxSidesRelation: math.Inf(1),
		},
		Classifier: ClassifierConfig{
			Threshold: 0.25,
			Half:      true,
		},
		Tracker: TrackerConfig{
			MaxAge:             60,
			MinHits:            1,
			IOU:                0.02,
			NumFramesToAverage: 5,
			MinFramesToCount:   500,
			MaxTrackedObjects:  100,
		},
		Writer: WriterConfig{
			FourCC: "mp4v",
			FPS:    30,
		},
		GPS: GPSConfig{
			Patience: 120,
		},
	}
}

// Load reads and parses a TOML configuration file, layered over Default.
// If the file does not exist, it returns the default configuration.
// Load does not validate required fields; callers must call Validate
// after applying any CLI overrides, per the exit-code contract of §6.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.GPS.APIKey == "" {
		cfg.GPS.APIKey = os.Getenv("BUSVISION_GPS_API_KEY")
	}

	return cfg, nil
}

// Validate checks the configuration for invalid or missing required
// values. It is the single pre-start gate: a non-nil return means the
// process must exit non-zero without starting any worker.
func (c *Config) Validate() error {
	if c.Session.BusID == "" {
		return fmt.Errorf("session.bus_id is required")
	}
	if c.Session.RouteID == "" {
		return fmt.Errorf("session.route_id is required")
	}
	if c.Session.StopHour < 0 || c.Session.StopHour > 23 {
		return fmt.Errorf("session.stop_hour must be between 0 and 23, got %d", c.Session.StopHour)
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera stream is required")
	}
	for i, cam := range c.Cameras {
		if cam.Stream == "" {
			return fmt.Errorf("cameras[%d].stream is required", i)
		}
	}
	if c.Frame.Width <= 0 {
		return fmt.Errorf("frame width must be positive, got %d", c.Frame.Width)
	}
	if c.Frame.Height <= 0 {
		return fmt.Errorf("frame height must be positive, got %d", c.Frame.Height)
	}
	if c.Detector.Weights == "" {
		return fmt.Errorf("detector.weights is required")
	}
	if c.Classifier.Weights == "" {
		return fmt.Errorf("classifier.weights is required")
	}
	if c.Tracker.NumFramesToAverage <= 0 {
		return fmt.Errorf("tracker.num_frames_to_average must be positive, got %d", c.Tracker.NumFramesToAverage)
	}
	if c.Tracker.MaxTrackedObjects <= 0 {
		return fmt.Errorf("tracker.max_tracked_objects must be positive, got %d", c.Tracker.MaxTrackedObjects)
	}
	if c.Writer.FPS <= 0 {
		return fmt.Errorf("writer.fps must be positive, got %d", c.Writer.FPS)
	}
	if c.GPS.Patience <= 0 {
		return fmt.Errorf("gps.patience must be positive, got %d", c.GPS.Patience)
	}
	return nil
}
