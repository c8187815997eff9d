// Package config builds runtime configuration from the environment so main
// stays lean. A local .env file is loaded when present; real deployments set
// the variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr        string
	MetricsAddr string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	// ScheduleFile seeds the in-memory schedule provider when no database is
	// configured. Ignored otherwise.
	ScheduleFile string

	FareBase     float64
	FarePerStage float64

	Engine EngineConfig
}

// EngineConfig holds the correlation thresholds. These are deployment
// configuration, not inferred defaults; the values below are the ones we run
// in the pilot fleet.
type EngineConfig struct {
	// ConfidenceThreshold is the minimum embedding-match confidence for a
	// detection to resolve to a passenger. Below it the event is Unknown.
	ConfidenceThreshold float64
	// SkewTolerance bounds how far behind a device's watermark an event
	// timestamp may fall before it is rejected as stale.
	SkewTolerance time.Duration
	// DedupWindow collapses repeated detections of the same passenger on the
	// same trip into a single boarding.
	DedupWindow time.Duration
	// InactivityTimeout auto-ends a trip that has recorded no boarding,
	// alighting, or stop-arrival activity.
	InactivityTimeout time.Duration
	// TicketRequiredDefault gates boarding on ticket validity for routes
	// that don't carry their own flag.
	TicketRequiredDefault bool
	// StopProximityKm is the radius within which a GPS hint counts as being
	// at a stop.
	StopProximityKm float64
	// LookupRetries bounds retries against the passenger/ticket store before
	// surfacing lookup_failed.
	LookupRetries int
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        getenvDefault("BUSTRACK_ADDR", ":8080"),
		MetricsAddr: os.Getenv("BUSTRACK_METRICS_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		NATSURL:     os.Getenv("NATS_URL"),
		KafkaTopic:  getenvDefault("KAFKA_TOPIC", "bustrack.face-events"),
		KafkaGroup:  getenvDefault("KAFKA_GROUP", "bustrack-server"),

		ScheduleFile: os.Getenv("SCHEDULE_FILE"),
	}

	var err error
	if cfg.FareBase, err = floatEnv("FARE_BASE", 30.0); err != nil {
		return Config{}, err
	}
	if cfg.FarePerStage, err = floatEnv("FARE_PER_STAGE", 10.0); err != nil {
		return Config{}, err
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	engine := EngineConfig{
		ConfidenceThreshold:   0.7,
		SkewTolerance:         2 * time.Minute,
		DedupWindow:           90 * time.Second,
		InactivityTimeout:     45 * time.Minute,
		TicketRequiredDefault: false,
		StopProximityKm:       2.0,
		LookupRetries:         3,
	}

	if engine.ConfidenceThreshold, err = floatEnv("CONFIDENCE_THRESHOLD", engine.ConfidenceThreshold); err != nil {
		return Config{}, err
	}
	if engine.SkewTolerance, err = durationEnv("SKEW_TOLERANCE", engine.SkewTolerance); err != nil {
		return Config{}, err
	}
	if engine.DedupWindow, err = durationEnv("DEDUP_WINDOW", engine.DedupWindow); err != nil {
		return Config{}, err
	}
	if engine.InactivityTimeout, err = durationEnv("TRIP_INACTIVITY_TIMEOUT", engine.InactivityTimeout); err != nil {
		return Config{}, err
	}
	if engine.StopProximityKm, err = floatEnv("STOP_PROXIMITY_KM", engine.StopProximityKm); err != nil {
		return Config{}, err
	}
	if engine.LookupRetries, err = intEnv("LOOKUP_RETRIES", engine.LookupRetries); err != nil {
		return Config{}, err
	}
	engine.TicketRequiredDefault = boolEnv("TICKET_REQUIRED_DEFAULT")
	cfg.Engine = engine

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolEnv(k string) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func floatEnv(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return d, nil
}
