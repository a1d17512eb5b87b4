package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/mathfind/internal/detect"
	"github.com/MeKo-Tech/mathfind/internal/pdfsource"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketDetectRequest represents a detection request via WebSocket.
type WebSocketDetectRequest struct {
	Type     string                 `json:"type"` // "image" or "pdf"
	Image    []byte                 `json:"image,omitempty"`
	Filename string                 `json:"filename,omitempty"`
	Pages    string                 `json:"pages,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketDetectResponse represents a detection response via WebSocket.
type WebSocketDetectResponse struct {
	Type      string      `json:"type"`
	Status    string      `json:"status"` // "processing", "completed", "error"
	Progress  float64     `json:"progress,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// detectWebSocketHandler handles WebSocket connections for real-time
// detection.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage processes a WebSocket message.
func (s *Server) handleWebSocketMessage(conn *websocket.Conn, data []byte) {
	var req WebSocketDetectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	s.sendWebSocketResponse(conn, WebSocketDetectResponse{
		Type:      "detect_response",
		Status:    "processing",
		Progress:  0.0,
		RequestID: requestID,
	})

	switch req.Type {
	case "image":
		s.processWebSocketImage(conn, req, requestID)
	case "pdf":
		s.processWebSocketPDF(conn, req, requestID)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketImage processes an image detection request via WebSocket.
func (s *Server) processWebSocketImage(conn *websocket.Conn, req WebSocketDetectRequest, requestID string) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	opts := s.extractWebSocketOptions(req.Options)

	s.sendWebSocketResponse(conn, WebSocketDetectResponse{
		Type:      "detect_response",
		Status:    "processing",
		Progress:  0.5,
		RequestID: requestID,
	})

	ctx := context.Background()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	formulas, err := s.detector.Detect(ctx, detect.PageInput{Image: img, Number: 1}, opts)
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket_image", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Detection failed: %v", err))
		return
	}

	detectRequestsTotal.WithLabelValues("websocket_image", "success").Inc()
	detectDuration.WithLabelValues("websocket_image").Observe(duration.Seconds())
	formulasDetected.WithLabelValues("websocket_image").Observe(float64(len(formulas)))

	bounds := img.Bounds()
	result := DetectResponse{
		Success:  true,
		Formulas: formulas,
		Count:    len(formulas),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}
	result.Processing.TotalTimeMs = duration.Milliseconds()

	s.sendWebSocketResponse(conn, WebSocketDetectResponse{
		Type:      "detect_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    result,
		RequestID: requestID,
	})
}

// processWebSocketPDF processes a PDF detection request via WebSocket.
// The detection progress is streamed back as pages complete.
func (s *Server) processWebSocketPDF(conn *websocket.Conn, req WebSocketDetectRequest, requestID string) {
	if req.Filename == "" {
		s.sendWebSocketError(conn, "invalid_request", "No PDF filename provided")
		return
	}

	s.sendWebSocketResponse(conn, WebSocketDetectResponse{
		Type:      "detect_response",
		Status:    "processing",
		Progress:  0.2,
		RequestID: requestID,
	})

	pages, err := pdfsource.ExtractPages(req.Filename, req.Pages)
	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket_pdf", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("PDF extraction failed: %v", err))
		return
	}

	docOpts := detect.DocumentOptions{
		Options: s.extractWebSocketOptions(req.Options),
		Cache:   s.cache,
		Progress: func(done, total int) {
			s.sendWebSocketResponse(conn, WebSocketDetectResponse{
				Type:      "detect_response",
				Status:    "processing",
				Progress:  0.2 + 0.8*float64(done)/float64(total),
				RequestID: requestID,
			})
		},
	}

	ctx := context.Background()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	perPage, err := s.detector.DetectDocument(ctx, pages, docOpts)
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket_pdf", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("PDF detection failed: %v", err))
		return
	}

	detectRequestsTotal.WithLabelValues("websocket_pdf", "success").Inc()
	detectDuration.WithLabelValues("websocket_pdf").Observe(duration.Seconds())

	result := PDFDetectResponse{
		Success:  true,
		Filename: req.Filename,
		Pages:    make([]PageDetections, len(perPage)),
	}
	total := 0
	for i, formulas := range perPage {
		pageNum := 0
		if i < len(pages) {
			pageNum = pages[i].Number
		}
		result.Pages[i] = PageDetections{
			PageNumber: pageNum,
			Formulas:   formulas,
			Count:      len(formulas),
		}
		total += len(formulas)
	}
	formulasDetected.WithLabelValues("websocket_pdf").Observe(float64(total))

	s.sendWebSocketResponse(conn, WebSocketDetectResponse{
		Type:      "detect_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    result,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketDetectResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// extractWebSocketOptions extracts detection options from WebSocket options.
func (s *Server) extractWebSocketOptions(options map[string]interface{}) detect.Options {
	opts := detect.DefaultOptions()

	if options == nil {
		return opts
	}

	if val, ok := options["min_confidence"].(float64); ok && val >= 0 && val <= 1 {
		opts.MinConfidence = val
	}
	if val, ok := options["include_inline"].(bool); ok {
		opts.IncludeInline = val
	}
	if val, ok := options["include_display"].(bool); ok {
		opts.IncludeDisplay = val
	}

	return opts
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	response := WebSocketDetectResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	}

	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket error response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket error message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
