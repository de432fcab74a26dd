package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/recibox/receipt-ocr-service/internal/db"
	"github.com/recibox/receipt-ocr-service/internal/models"
	"github.com/recibox/receipt-ocr-service/internal/pipeline"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// DocumentProcessor runs one uploaded document through the pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, filename string, data []byte, contentType string) (*pipeline.Result, error)
}

// InvoiceLister returns the persisted summary rows, newest first.
type InvoiceLister interface {
	ListInvoices(ctx context.Context) ([]models.InvoiceSummary, error)
}

// Handler handles HTTP requests for receipt digitizing
type Handler struct {
	config    *models.Config
	processor DocumentProcessor
	lister    InvoiceLister
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, processor DocumentProcessor, lister InvoiceLister) *Handler {
	return &Handler{
		config:    config,
		processor: processor,
		lister:    lister,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/process-invoice", h.ProcessInvoice).Methods("POST")
	router.HandleFunc("/api/invoices", h.GetInvoices).Methods("GET")
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// ProcessInvoice accepts one uploaded document (JPEG, PNG or PDF), runs the
// extraction pipeline and reports saved / duplicate / unreadable outcomes.
// A duplicate still returns the extracted record for display.
func (h *Handler) ProcessInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	startTime := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	// Accept both "file" and "image" field names
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' or 'image' field)")
			return
		}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromName(header.Filename)
	}

	result, err := h.processor.Process(r.Context(), header.Filename, data, contentType)
	totalDuration := time.Since(startTime).Seconds()

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrUnreadableDocument) {
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(models.ProcessResponse{
			Success:       false,
			Error:         err.Error(),
			TotalDuration: totalDuration,
		})
		return
	}

	response := models.ProcessResponse{
		Success:       true,
		Saved:         result.Saved,
		Duplicate:     result.Duplicate,
		Invoice:       result.Record,
		RawText:       result.Record.RawText,
		Pages:         result.Pages,
		OCRDuration:   result.OCRDuration.Seconds(),
		TotalDuration: totalDuration,
	}
	if result.Duplicate {
		response.Error = "invoice already exists, duplicate not saved"
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// GetInvoices returns all persisted invoice summaries, newest first
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	invoices, err := h.lister.ListInvoices(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get invoices: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// contentTypeFromName falls back to the filename extension when the client
// did not send a usable content type.
func contentTypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Tesseract ServiceStatus `json:"tesseract"`
	Database  ServiceStatus `json:"database"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - reports dependency status for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := checkTesseract()
	databaseStatus := checkDatabase()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract: tesseractStatus,
		Database:  databaseStatus,
	}

	if !tesseractStatus.Available || !databaseStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkTesseract verifies the Tesseract engine is installed
func checkTesseract() ServiceStatus {
	output, err := exec.Command("tesseract", "--version").CombinedOutput()
	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "tesseract not found or not executable",
		}
	}

	version := "unknown"
	if lines := strings.Split(string(output), "\n"); len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}
	return ServiceStatus{Available: true, Version: version}
}

// checkDatabase verifies PostgreSQL connection
func checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	return ServiceStatus{Available: true, Version: "PostgreSQL"}
}
