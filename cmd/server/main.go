package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/recibox/receipt-ocr-service/api"
	"github.com/recibox/receipt-ocr-service/internal/auth"
	"github.com/recibox/receipt-ocr-service/internal/db"
	"github.com/recibox/receipt-ocr-service/internal/models"
	"github.com/recibox/receipt-ocr-service/internal/ocr"
	"github.com/recibox/receipt-ocr-service/internal/pdf"
	"github.com/recibox/receipt-ocr-service/internal/pipeline"
	"github.com/recibox/receipt-ocr-service/internal/storage"
)

func main() {
	// .env values become regular env vars before anything reads them
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	if err := db.Init(); err != nil {
		log.Fatalf("Database not available: %v", err)
	}
	defer db.Close()

	store := db.NewStore(db.Pool)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.CreateTables(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to create tables: %v", err)
	}
	cancel()
	log.Println("Invoices table ready")

	uploads, err := newUploadStorage(config)
	if err != nil {
		log.Fatalf("Failed to initialize upload storage: %v", err)
	}
	log.Printf("Upload storage initialized (%s)", config.Storage.Backend)

	processor := pipeline.NewProcessor(
		ocr.NewTesseractOCR(config.OCR.Language),
		pdf.NewRasterizer(config.PDF.DPI),
		store,
		uploads,
	)

	handler := api.NewHandler(config, processor, store)
	router := handler.SetupRoutes()
	router.HandleFunc("/api/login", auth.LoginHandler(config.Auth.Username, config.Auth.Password)).Methods("POST")

	// JWT middleware skips /health and /api/login
	protectedRouter := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Receipt OCR Service v%s on %s", api.Version, addr)
	log.Printf("OCR language: %s, PDF rasterization: %d DPI", config.OCR.Language, config.PDF.DPI)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login            - Authenticate", addr)
	log.Printf("  POST http://%s/api/process-invoice  - Digitize document (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/invoices         - List saved invoices (requires JWT)", addr)
	log.Printf("  GET  http://%s/health               - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func newUploadStorage(config *models.Config) (storage.Storage, error) {
	switch config.Storage.Backend {
	case "minio":
		return storage.NewMinIOStorage()
	default:
		return storage.NewLocalStorage(config.Storage.Dir)
	}
}

func loadConfig(path string) (*models.Config, error) {
	var config models.Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if lang := os.Getenv("OCR_LANGUAGE"); lang != "" {
		config.OCR.Language = lang
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		config.Storage.Dir = dir
	}
	if user := os.Getenv("AUTH_USERNAME"); user != "" {
		config.Auth.Username = user
	}
	if pass := os.Getenv("AUTH_PASSWORD"); pass != "" {
		config.Auth.Password = pass
	}

	config.Defaults()

	if config.Auth.Username == "" || config.Auth.Password == "" {
		return nil, fmt.Errorf("auth credentials not configured (auth.username/auth.password or AUTH_USERNAME/AUTH_PASSWORD)")
	}

	return &config, nil
}
