package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type stubTryOnService struct {
	img       *model.Image
	remaining int
	err       error
}

func (s *stubTryOnService) Generate(ctx context.Context, userID, personImageID, outfitImageID string) (*model.Image, int, error) {
	return s.img, s.remaining, s.err
}

func newTryOnRequest(t *testing.T, body string, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tryon/generate", strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, userID))
	}
	return req
}

func serveTryOn(t *testing.T, svc service.TryOnService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	h := NewTryOnHandler(svc, validator.New(validator.WithRequiredStructEnabled()), "test", zerolog.Nop())
	rr := httptest.NewRecorder()
	h.generate(rr, req)
	return rr
}

func TestGenerateHandler_Success(t *testing.T) {
	svc := &stubTryOnService{
		img:       &model.Image{ID: "g1", UserID: "u1", URL: "https://cdn.example.com/g1.png", Type: model.ImageTypeGenerated},
		remaining: 4,
	}
	rr := serveTryOn(t, svc, newTryOnRequest(t, `{"personImageId":"p1","outfitImageId":"o1"}`, "u1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Image struct {
			ID string `json:"id"`
		} `json:"image"`
		CreditsRemaining int `json:"creditsRemaining"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Image.ID != "g1" || resp.CreditsRemaining != 4 {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Response keys are camelCase like the request side.
	var raw struct {
		Image map[string]json.RawMessage `json:"image"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := raw.Image["createdAt"]; !ok {
		t.Errorf("image payload missing createdAt key: %v", rr.Body.String())
	}
}

func TestGenerateHandler_MissingAuth(t *testing.T) {
	rr := serveTryOn(t, &stubTryOnService{}, newTryOnRequest(t, `{"personImageId":"p1","outfitImageId":"o1"}`, ""))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestGenerateHandler_InvalidBody(t *testing.T) {
	rr := serveTryOn(t, &stubTryOnService{}, newTryOnRequest(t, `{not json`, "u1"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid json, got %d", rr.Code)
	}

	rr = serveTryOn(t, &stubTryOnService{}, newTryOnRequest(t, `{"personImageId":"p1"}`, "u1"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing field, got %d", rr.Code)
	}
}

func TestGenerateHandler_InsufficientCredits(t *testing.T) {
	svc := &stubTryOnService{err: &service.InsufficientCreditsError{Credits: 0, Required: 1}}
	rr := serveTryOn(t, svc, newTryOnRequest(t, `{"personImageId":"p1","outfitImageId":"o1"}`, "u1"))

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rr.Code)
	}
	var resp struct {
		Message  string `json:"message"`
		Credits  int    `json:"credits"`
		Required int    `json:"required"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Credits != 0 || resp.Required != 1 || resp.Message == "" {
		t.Errorf("unexpected 402 body: %+v", resp)
	}
}

func TestGenerateHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"image not found", service.ErrImageNotFound, http.StatusNotFound},
		{"user not found", service.ErrUserNotFound, http.StatusNotFound},
		{"not owner", service.ErrNotImageOwner, http.StatusForbidden},
		{"type mismatch", service.ErrImageTypeMismatch, http.StatusBadRequest},
		{"generation failed", service.ErrGenerationFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serveTryOn(t, &stubTryOnService{err: tc.err}, newTryOnRequest(t, `{"personImageId":"p1","outfitImageId":"o1"}`, "u1"))
			if rr.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestGenerateHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tryon/generate", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, "u1"))
	rr := serveTryOn(t, &stubTryOnService{}, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for GET, got %d", rr.Code)
	}
}
