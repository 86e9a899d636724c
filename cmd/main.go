package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chenBenjamin97/traffic-vision/pkg/api"
	"github.com/chenBenjamin97/traffic-vision/pkg/sink"
	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
	"github.com/chenBenjamin97/traffic-vision/pkg/utils"
	"github.com/chenBenjamin97/traffic-vision/pkg/video"
)

const shutdownTimeout = 10 * time.Second

func main() {
	//a missing .env is fine, the environment and config.yaml still apply
	_ = godotenv.Load()

	setDefaults()
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("TV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("Error: Could not read config file, got '%v'", err)
		}
	}

	logger, err := newLogger(viper.GetBool("log.development"))
	if err != nil {
		log.Fatalf("Error: Could not build logger, got '%v'", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	if err := run(sugar); err != nil {
		sugar.Fatalw("traffic vision stopped", "error", err)
	}
}

func setDefaults() {
	viper.SetDefault("http.port", "5000")
	viper.SetDefault("directory.root", "./data")
	viper.SetDefault("directory.source", "./data/uploads")
	viper.SetDefault("frontend.static-files-path", "./frontend/build/")
	viper.SetDefault("upload.max-bytes", utils.DefaultMaxUploadBytes)
	viper.SetDefault("detector.model", "./models/yolov8n.onnx")
	viper.SetDefault("detector.inference-size", 640)
	viper.SetDefault("detector.confidence", 0.3)
	viper.SetDefault("detector.serialize", true)
	viper.SetDefault("tracker.max-disappeared", tracking.DefaultMaxDisappeared)
	viper.SetDefault("tracker.max-distance", tracking.DefaultMaxDistance)
	viper.SetDefault("scheduler.detect-every", stream.DefaultDetectEvery)
	viper.SetDefault("lanes.count", tracking.DefaultLaneCount)
	viper.SetDefault("live.constrained-width", stream.DefaultConstrainedWidth)
	viper.SetDefault("stream.jpeg-quality", stream.FullProfile.JPEGQuality)
	viper.SetDefault("stream.event-buffer", 64)
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.bootstrap-servers", "localhost:9092")
	viper.SetDefault("kafka.topic", "traffic-vision-sessions")
	viper.SetDefault("log.development", false)
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.SugaredLogger) (err error) {
	if viper.GetString("http.port") == "" || viper.GetString("directory.source") == "" || viper.GetString("detector.model") == "" {
		return errors.New("missing critical configurations")
	}

	//create project's data directories
	if err := utils.EnsureDirs(viper.GetString("directory.root"), viper.GetString("directory.source")); err != nil {
		return err
	}

	yoloDetector, err := video.NewYOLODetector(viper.GetString("detector.model"))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, yoloDetector.Close()) }()

	var detector stream.Detector = yoloDetector
	if viper.GetBool("detector.serialize") {
		detector = video.Serialized(detector)
	}

	preview := api.NewPreviewSink()
	sinks := stream.MultiSink{preview}
	if viper.GetBool("kafka.enabled") {
		mirror, kafkaErr := sink.NewKafka(sink.KafkaConfig{
			BootstrapServers: viper.GetString("kafka.bootstrap-servers"),
			Topic:            viper.GetString("kafka.topic"),
		}, logger)
		if kafkaErr != nil {
			return kafkaErr
		}
		defer func() { err = multierr.Append(err, mirror.Close()) }()
		sinks = append(sinks, mirror)
	}

	fileProfile := stream.FullProfile
	fileProfile.Detector = stream.DetectorConfig{
		InferenceSize: viper.GetInt("detector.inference-size"),
		ConfidenceMin: viper.GetFloat64("detector.confidence"),
	}
	fileProfile.JPEGQuality = viper.GetInt("stream.jpeg-quality")

	hub := api.NewHub(api.HubOptions{
		SourceDir: viper.GetString("directory.source"),
		Session: stream.Config{
			DetectEvery: viper.GetInt("scheduler.detect-every"),
			Tracker: tracking.TrackerConfig{
				MaxDisappeared: viper.GetInt("tracker.max-disappeared"),
				MaxDistance:    viper.GetFloat64("tracker.max-distance"),
			},
			LaneCount:        viper.GetInt("lanes.count"),
			Profile:          fileProfile,
			ConstrainedWidth: viper.GetInt("live.constrained-width"),
		},
		Detector:  detector,
		Annotator: video.NewAnnotator(),
		Sink:      sinks,
		OpenFile:  video.FileOpener,
		Decode: func(data []byte) (stream.Frame, error) {
			return video.DecodeFrame(data)
		},
		EventBuffer:  viper.GetInt("stream.event-buffer"),
		OnDisconnect: preview.Drop,
		Logger:       logger,
	})

	if !viper.GetBool("log.development") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.SetRouter(api.RouterOptions{
		SourceDir:      viper.GetString("directory.source"),
		StaticDir:      viper.GetString("frontend.static-files-path"),
		MaxUploadBytes: viper.GetInt64("upload.max-bytes"),
		Hub:            hub,
		Preview:        preview,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + viper.GetString("http.port"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("traffic vision api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		//hijacked websockets outlive srv.Shutdown, the hub drains them before the detector is closed
		return multierr.Combine(srv.Shutdown(shutdownCtx), hub.Close(shutdownCtx))
	})

	return g.Wait()
}
