package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeErrorDetail attaches the underlying error text outside production.
func writeErrorDetail(w http.ResponseWriter, status int, message string, err error, environment string) {
	body := map[string]string{"message": message}
	if err != nil && environment != "production" {
		body["error"] = err.Error()
	}
	writeJSON(w, status, body)
}

func toImageResponse(img *model.Image) dto.ImageResponse {
	return dto.ImageResponse{
		ID:        img.ID,
		URL:       img.URL,
		Type:      img.Type,
		Metadata:  img.Metadata,
		CreatedAt: img.CreatedAt,
	}
}
