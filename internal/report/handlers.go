package report

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/transparentcare/billcheck/internal/bill"
	"github.com/transparentcare/billcheck/internal/dispute"
	"github.com/transparentcare/billcheck/internal/extraction"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSONError writes a JSON error payload. Malformed-bill and
// unstructured-input failures are marked retryable so the client can
// prompt a retake of the photo.
func writeJSONError(w http.ResponseWriter, err error, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	var malformed *bill.MalformedBillError
	var unstructured *extraction.UnstructuredInputError
	retryable := errors.As(err, &malformed) || errors.As(err, &unstructured)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     err.Error(),
		"retryable": retryable,
	})
}

// processErrorStatus maps pipeline failures to HTTP status codes.
func processErrorStatus(err error) int {
	var malformed *bill.MalformedBillError
	var unstructured *extraction.UnstructuredInputError
	switch {
	case errors.As(err, &malformed), errors.As(err, &unstructured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// handleListReports returns a list of all reports
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.service.ListReports()
	if err != nil {
		slog.Error("Error listing reports", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reports); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUploadBill accepts a bill document, runs extraction, and
// returns the processed report
func (s *Server) handleUploadBill(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB to handle high-resolution phone photos)
	maxFormSize := int64(50 << 20) // 50MB
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "File is too large. Maximum size is 50MB. Please compress or resize your image.",
		})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error reading file. Please try again.",
		})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	rep, err := s.service.ProcessDocument(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing bill", "filename", header.Filename, "error", err)
		writeJSONError(w, err, processErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleProcessStructured runs the pipeline on a caller-supplied
// extraction result, skipping the vision service
func (s *Server) handleProcessStructured(w http.ResponseWriter, r *http.Request) {
	var raw bill.RawBill
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rep, err := s.service.ProcessStructured(&raw)
	if err != nil {
		slog.Error("Error processing structured bill", "error", err)
		writeJSONError(w, err, processErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetReport returns a single report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Report ID required", http.StatusBadRequest)
		return
	}
	rep, err := s.service.GetReport(id)
	if err != nil {
		corsError(w, "Report not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetReportDocument returns the source document for a report
func (s *Server) handleGetReportDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Report ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetReportDocument(id)
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReport deletes a report
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Report ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteReport(id); err != nil {
		corsError(w, "Error deleting report", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateLetter generates (or regenerates) the dispute letter
// for a report. "Nothing to dispute" is a positive outcome, not an
// error banner.
func (s *Server) handleGenerateLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Report ID required", http.StatusBadRequest)
		return
	}

	letter, err := s.service.GenerateLetterByID(id)
	if errors.Is(err, dispute.ErrNothingToDispute) {
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"nothing_to_dispute": true,
			"flagged_count":      0,
		})
		return
	}
	if err != nil {
		slog.Error("Error generating letter", "report_id", id, "error", err)
		corsError(w, "Error generating letter", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(letter); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetLetter returns the stored letter as plain text so it can be
// saved as a file
func (s *Server) handleGetLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Report ID required", http.StatusBadRequest)
		return
	}
	letter, err := s.service.GetLetter(id)
	if err != nil {
		corsError(w, "Letter not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(letter.Body))
}
