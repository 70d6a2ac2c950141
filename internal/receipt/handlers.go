package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

// maxUploadSize bounds receipt uploads; high-resolution phone photos run large
const maxUploadSize = int64(50 << 20)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// amountBody is the JSON body for the paycheck and budget endpoints.
// On PUT the amount may be a number or a user-typed string such as "$1,500".
type amountBody struct {
	Amount json.RawMessage `json:"amount"`
}

type amountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	setCORSHeaders(w)
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

// serviceErrorStatus maps a Service error onto an HTTP status
func serviceErrorStatus(err error) int {
	switch ErrorKind(err) {
	case KindInvalidReceipt:
		return http.StatusBadRequest
	case KindExtractionFailed, KindClassificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// contentTypeFromFilename guesses a MIME type when the upload carries none
func contentTypeFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleScanReceipt ingests an uploaded receipt image.
// Every failure ends with a JSON error carrying a kind the client must render.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB.", "")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form", "")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a receipt image.", "")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.", "")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromFilename(header.Filename)
	}

	receipt, err := s.service.Ingest(r.Context(), data, contentType)
	if err != nil {
		slog.Error("Error ingesting receipt", "filename", header.Filename, "error", err)
		writeError(w, serviceErrorStatus(err), err.Error(), ErrorKind(err))
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleCreateReceipt stores a manually entered receipt
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req NewReceipt
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", KindInvalidReceipt)
		return
	}

	receipt, err := s.service.AddReceipt(req)
	if err != nil {
		slog.Error("Error adding receipt", "error", err)
		writeError(w, serviceErrorStatus(err), err.Error(), ErrorKind(err))
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", KindInternal)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleDashboard returns the 30-day summary
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dashboard.Summary()
	if err != nil {
		slog.Error("Error computing dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", KindInternal)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleCategories returns the categories offered to the classifier
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Categories())
}

func (s *Server) handleGetAmount(get func() (decimal.Decimal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		amount, err := get()
		if err != nil {
			slog.Error("Error reading amount", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", KindInternal)
			return
		}
		writeJSON(w, http.StatusOK, amountResponse{Amount: amount})
	}
}

func (s *Server) handlePutAmount(set func(decimal.Decimal) (decimal.Decimal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body amountBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Amount) == 0 {
			writeError(w, http.StatusBadRequest, "Invalid request body", "")
			return
		}

		// Strings are unquoted first; bare numbers pass through as their literal text
		raw := string(body.Amount)
		var text string
		if err := json.Unmarshal(body.Amount, &text); err == nil {
			raw = text
		}

		amount, err := set(ParseAmount(raw))
		if err != nil {
			slog.Error("Error writing amount", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", KindInternal)
			return
		}
		writeJSON(w, http.StatusOK, amountResponse{Amount: amount})
	}
}
