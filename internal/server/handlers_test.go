package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mathfind/internal/classify"
	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/detect"
)

// fakeDetector returns canned results without running the pipeline.
type fakeDetector struct {
	formulas []detect.DetectedFormula
	err      error
}

func (f *fakeDetector) Detect(_ context.Context, _ detect.PageInput, opts detect.Options) ([]detect.DetectedFormula, error) {
	if f.err != nil {
		return nil, f.err
	}
	return opts.Filter(f.formulas), nil
}

func (f *fakeDetector) DetectDocument(_ context.Context, pages []detect.PageInput, opts detect.DocumentOptions) ([][]detect.DetectedFormula, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]detect.DetectedFormula, len(pages))
	for i := range pages {
		out[i] = opts.Filter(f.formulas)
	}
	return out, nil
}

func (f *fakeDetector) Config() detect.Config {
	return detect.DefaultConfig()
}

func sampleFormulas() []detect.DetectedFormula {
	return []detect.DetectedFormula{
		{
			ID:          "p1-f0",
			PageNumber:  1,
			Rect:        image.Rect(100, 100, 300, 140),
			ContentType: classify.ContentFormula,
			FormulaType: classify.FormulaDisplay,
			Confidence:  confidence.Score{Overall: 0.9, Level: confidence.LevelHigh},
		},
		{
			ID:          "p1-f1",
			PageNumber:  1,
			Rect:        image.Rect(120, 200, 180, 216),
			ContentType: classify.ContentFormula,
			FormulaType: classify.FormulaInline,
			Confidence:  confidence.Score{Overall: 0.65, Level: confidence.LevelMedium},
		},
	}
}

func encodeTestPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetRGBA(50, 50, color.RGBA{A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newImageUpload(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "page.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestServer_HealthHandler(t *testing.T) {
	server := &Server{}

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{
			name:           "GET request success",
			method:         "GET",
			expectedStatus: http.StatusOK,
			checkResponse:  true,
		},
		{
			name:           "POST request not allowed",
			method:         "POST",
			expectedStatus: http.StatusMethodNotAllowed,
			checkResponse:  false,
		},
		{
			name:           "PUT request not allowed",
			method:         "PUT",
			expectedStatus: http.StatusMethodNotAllowed,
			checkResponse:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				err := json.Unmarshal(w.Body.Bytes(), &response)
				require.NoError(t, err)

				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_DetectImageHandler(t *testing.T) {
	server := &Server{
		detector:    &fakeDetector{formulas: sampleFormulas()},
		maxUploadMB: 10,
	}

	body, contentType := newImageUpload(t, "image", encodeTestPNG(t))
	req := httptest.NewRequest("POST", "/detect", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	server.detectImageHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.True(t, response.Success)
	assert.Equal(t, 2, response.Count)
	assert.Len(t, response.Formulas, 2)
	assert.Equal(t, 200, response.Width)
	assert.Equal(t, 150, response.Height)
}

func TestServer_DetectImageHandlerFilters(t *testing.T) {
	server := &Server{
		detector:    &fakeDetector{formulas: sampleFormulas()},
		maxUploadMB: 10,
	}

	body, contentType := newImageUpload(t, "image", encodeTestPNG(t))
	req := httptest.NewRequest("POST", "/detect?min_confidence=0.8", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	server.detectImageHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Formulas, 1)
	assert.Equal(t, "p1-f0", response.Formulas[0].ID)
}

func TestServer_DetectImageHandlerErrors(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		field          string
		data           []byte
		expectedStatus int
	}{
		{
			name:           "method not allowed",
			method:         "GET",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "missing file",
			method:         "POST",
			field:          "attachment",
			data:           []byte("not-an-image"),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid image data",
			method:         "POST",
			field:          "image",
			data:           []byte("not-an-image"),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{
				detector:    &fakeDetector{},
				maxUploadMB: 10,
			}

			var req *http.Request
			if tt.method == "POST" {
				body, contentType := newImageUpload(t, tt.field, tt.data)
				req = httptest.NewRequest(tt.method, "/detect", body)
				req.Header.Set("Content-Type", contentType)
			} else {
				req = httptest.NewRequest(tt.method, "/detect", nil)
			}
			w := httptest.NewRecorder()

			server.detectImageHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestServer_ParseDetectOptions(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/detect?min_confidence=0.75&include_inline=false", nil)
	opts := server.parseDetectOptions(req)

	assert.InDelta(t, 0.75, opts.MinConfidence, 1e-9)
	assert.False(t, opts.IncludeInline)
	assert.True(t, opts.IncludeDisplay)

	req = httptest.NewRequest("POST", "/detect?min_confidence=7", nil)
	opts = server.parseDetectOptions(req)

	// Out-of-range values fall back to the default.
	assert.InDelta(t, detect.DefaultOptions().MinConfidence, opts.MinConfidence, 1e-9)
}

func TestServer_WriteErrorResponse(t *testing.T) {
	server := &Server{}

	tests := []struct {
		name       string
		message    string
		statusCode int
	}{
		{
			name:       "bad request error",
			message:    "Invalid input",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "internal server error",
			message:    "Something went wrong",
			statusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			server.writeErrorResponse(w, tt.message, tt.statusCode)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response DetectResponse
			err := json.Unmarshal(w.Body.Bytes(), &response)
			require.NoError(t, err)

			assert.False(t, response.Success)
			assert.Equal(t, tt.message, response.Error)
		})
	}
}
