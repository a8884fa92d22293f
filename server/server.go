package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"

	"github.com/visionguard/visionguard/pkg/nn"
	"github.com/visionguard/visionguard/server/alerts"
	"github.com/visionguard/visionguard/server/auth"
	"github.com/visionguard/visionguard/server/configdb"
	"github.com/visionguard/visionguard/server/detect"
	"github.com/visionguard/visionguard/server/history"
	"github.com/visionguard/visionguard/server/live"
	"github.com/visionguard/visionguard/server/publish"
)

type Server struct {
	Log logs.Log

	cfg        Config
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router

	db        *configdb.ConfigDB
	auth      *auth.AuthServer
	google    *auth.GoogleOAuth
	pipeline  *detect.Pipeline
	publisher *publish.Publisher
	history   *history.History
	notifier  *alerts.Notifier
	live      *live.Controller
}

func NewServer(configFile string) (*Server, error) {
	cfg := Config{}
	if cfgB, err := os.ReadFile(configFile); err != nil {
		return nil, err
	} else {
		if err := json.Unmarshal(cfgB, &cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
		}
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}
	return NewServerFromConfig(logger, cfg)
}

func NewServerFromConfig(logger logs.Log, cfg Config) (*Server, error) {
	if cfg.ResultDir == "" {
		return nil, fmt.Errorf("'resultDir' must be configured")
	}
	if err := os.MkdirAll(cfg.ResultDir, 0755); err != nil {
		return nil, err
	}
	cfg.Camera.applyDefaults()

	db, err := configdb.NewConfigDB(logger, cfg.DB)
	if err != nil {
		return nil, err
	}
	authServer := auth.NewAuthServer(logger, db)

	var google *auth.GoogleOAuth
	if cfg.Google != nil {
		google = auth.NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}

	// Blob store
	localResults := strings.TrimSuffix(cfg.PublicURL, "/") + "/results"
	var storage publish.Storage
	if cfg.Storage.GCS != nil {
		storage, err = publish.NewStorageGCS(logger, cfg.Storage.GCS.Bucket, cfg.Storage.GCS.Public)
		if err != nil {
			return nil, err
		}
	} else if cfg.Storage.Filesystem != nil {
		storage, err = publish.NewStorageFS(logger, cfg.Storage.Filesystem.Root, strings.TrimSuffix(cfg.PublicURL, "/")+"/blobs")
		if err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')")
	}
	publisher := publish.NewPublisher(logger, storage, cfg.ResultDir, localResults)

	idcard, err := makeDetector(logger, "idcard", cfg.Models.IDCard, nn.IDCardClasses)
	if err != nil {
		return nil, err
	}
	generic, err := makeDetector(logger, "generic", cfg.Models.Generic, nn.COCOClasses)
	if err != nil {
		return nil, err
	}
	pipeline := detect.NewPipeline(logger, idcard, generic, cfg.ResultDir)

	var sender alerts.Sender
	if cfg.SMTP != nil {
		sender = alerts.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}
	notifier := alerts.NewNotifier(logger, sender)

	hist := history.NewHistory(logger, db, publisher)

	camera := cfg.Camera
	newCamera := func() (live.CameraSource, error) {
		return live.NewFFmpegCamera(camera.Device, camera.Width, camera.Height, camera.FPS), nil
	}
	liveController := live.NewController(logger, pipeline, publisher, hist, notifier, newCamera, cfg.ResultDir)

	s := &Server{
		Log:       logger,
		cfg:       cfg,
		db:        db,
		auth:      authServer,
		google:    google,
		pipeline:  pipeline,
		publisher: publisher,
		history:   hist,
		notifier:  notifier,
		live:      liveController,
	}
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func makeDetector(logger logs.Log, name string, cfg ModelConfig, defaultClasses []string) (nn.ObjectDetector, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("Model '%v' needs a 'url'", name)
	}
	classes := defaultClasses
	if cfg.ClassFile != "" {
		loaded, err := nn.LoadClassFile(cfg.ClassFile)
		if err != nil {
			return nil, fmt.Errorf("Failed to load class file for model '%v': %w", name, err)
		}
		classes = loaded
	}
	config := &nn.ModelConfig{
		Name:    name,
		Classes: classes,
	}
	return nn.NewRemoteDetector(logger, strings.TrimSuffix(cfg.URL, "/"), config, 0), nil
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.handler(),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'", sig.String())
			s.Shutdown()
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	s.live.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.Log.Close()
}
