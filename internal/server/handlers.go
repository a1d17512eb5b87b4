package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/mathfind/internal/detect"
	"github.com/MeKo-Tech/mathfind/internal/pdfsource"
	"github.com/MeKo-Tech/mathfind/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// detectImageHandler runs formula detection on one uploaded page image.
func (s *Server) detectImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	if s.detector == nil {
		s.writeErrorResponse(w, "Detection pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	opts := s.parseDetectOptions(r)

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	formulas, err := s.detector.Detect(ctx, detect.PageInput{Image: img, Number: 1}, opts)
	if err != nil {
		detectRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}
	elapsed := time.Since(start)

	detectRequestsTotal.WithLabelValues("image", "success").Inc()
	detectDuration.WithLabelValues("image").Observe(elapsed.Seconds())
	formulasDetected.WithLabelValues("image").Observe(float64(len(formulas)))

	bounds := img.Bounds()
	response := DetectResponse{
		Success:  true,
		Formulas: formulas,
		Count:    len(formulas),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}
	response.Processing.TotalTimeMs = elapsed.Milliseconds()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding detect response: %v\n", err)
	}
}

// detectPDFHandler runs formula detection on every page image of an uploaded
// PDF.
func (s *Server) detectPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	if s.detector == nil {
		s.writeErrorResponse(w, "Detection pipeline not initialized", http.StatusInternalServerError)
		return
	}

	// pdfcpu works on files, so spool the upload to a temp path.
	tempDir, err := os.MkdirTemp("", "mathfind-upload-*")
	if err != nil {
		s.writeErrorResponse(w, "Failed to create temp directory", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	tempPath := filepath.Join(tempDir, "upload.pdf")
	out, err := os.Create(tempPath) //nolint:gosec // G304: path is under our own temp dir
	if err != nil {
		s.writeErrorResponse(w, "Failed to spool upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		s.writeErrorResponse(w, "Failed to spool upload", http.StatusInternalServerError)
		return
	}
	_ = out.Close()

	pages, err := pdfsource.ExtractPages(tempPath, r.FormValue("pages"))
	if err != nil {
		detectRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("PDF extraction failed: %v", err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	perPage, err := s.detector.DetectDocument(ctx, pages, detect.DocumentOptions{
		Options: s.parseDetectOptions(r),
		Cache:   s.cache,
	})
	if err != nil {
		detectRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	detectRequestsTotal.WithLabelValues("pdf", "success").Inc()
	detectDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())

	response := PDFDetectResponse{
		Success:  true,
		Filename: header.Filename,
		Pages:    make([]PageDetections, len(perPage)),
	}
	total := 0
	for i, formulas := range perPage {
		pageNum := 0
		if i < len(pages) {
			pageNum = pages[i].Number
		}
		response.Pages[i] = PageDetections{
			PageNumber: pageNum,
			Formulas:   formulas,
			Count:      len(formulas),
		}
		total += len(formulas)
	}
	formulasDetected.WithLabelValues("pdf").Observe(float64(total))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding PDF detect response: %v\n", err)
	}
}

// parseDetectOptions reads filter options from the form or query string.
func (s *Server) parseDetectOptions(r *http.Request) detect.Options {
	opts := detect.DefaultOptions()

	get := func(key string) string {
		if v := r.FormValue(key); v != "" {
			return v
		}
		return r.URL.Query().Get(key)
	}

	if v := get("min_confidence"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			opts.MinConfidence = f
		}
	}
	if v := get("include_inline"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.IncludeInline = b
		}
	}
	if v := get("include_display"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.IncludeDisplay = b
		}
	}
	return opts
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := DetectResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Log error, but can't send another response
		fmt.Fprintf(os.Stderr, "Error writing error response: %v\n", err)
	}
}
