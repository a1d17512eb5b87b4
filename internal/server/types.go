package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/mathfind/internal/detect"
)

// detectorInterface defines the methods the server needs from a detector.
type detectorInterface interface {
	Detect(ctx context.Context, page detect.PageInput, opts detect.Options) ([]detect.DetectedFormula, error)
	DetectDocument(ctx context.Context, pages []detect.PageInput, opts detect.DocumentOptions) ([][]detect.DetectedFormula, error)
	Config() detect.Config
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector    detectorInterface
	cache       detect.ResultCache
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	CORSOrigin   string
	MaxUploadMB  int64
	TimeoutSec   int
	DetectConfig detect.Config
	Cache        detect.ResultCache
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type DetectResponse struct {
	Success  bool                     `json:"success"`
	Formulas []detect.DetectedFormula `json:"formulas,omitempty"`
	Count    int                      `json:"count"`
	Width    int                      `json:"width,omitempty"`
	Height   int                      `json:"height,omitempty"`
	Error    string                   `json:"error,omitempty"`

	Processing struct {
		TotalTimeMs int64 `json:"total_time_ms"`
	} `json:"processing"`
}

type PageDetections struct {
	PageNumber int                      `json:"page_number"`
	Formulas   []detect.DetectedFormula `json:"formulas"`
	Count      int                      `json:"count"`
}

type PDFDetectResponse struct {
	Success  bool             `json:"success"`
	Filename string           `json:"filename,omitempty"`
	Pages    []PageDetections `json:"pages,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// NewServer creates a new detection server instance.
func NewServer(config Config) (*Server, error) {
	d, err := detect.NewBuilder().WithConfig(config.DetectConfig).Build()
	if err != nil {
		return nil, err
	}
	return &Server{
		detector:    d,
		cache:       config.Cache,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.detectImageHandler))
	mux.HandleFunc("/detect/pdf", s.corsMiddleware(s.detectPDFHandler))
	mux.HandleFunc("/ws", s.detectWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
