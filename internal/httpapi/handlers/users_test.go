package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/lectigo/lectigo/internal/config"
	"github.com/lectigo/lectigo/internal/dialogue"
	"github.com/lectigo/lectigo/internal/httpapi/middleware"
	"github.com/lectigo/lectigo/internal/models"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.EmotionalEntry{},
		&dialogue.Session{}, &dialogue.Message{}, &dialogue.ParamSnapshot{},
		&dialogue.ProgressEntry{}, &dialogue.SummaryJob{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:         "test-secret",
		AIProvider:        "gemini",
		GeminiBaseURL:     "http://127.0.0.1:1", // never reached in these tests
		GeminiModel:       "gemini-2.0-flash",
		ContextWindowSize: 6,
	}
	h := NewHandler(db, cfg, nil, nil)

	r := gin.New()
	r.POST("/api/users", h.CreateUser)
	r.POST("/api/login", h.Login)
	authGroup := r.Group("/api")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.POST("/sessions", h.CreateSession)
	authGroup.POST("/sessions/:session_id/messages", h.SendMessage)
	return r
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	return w, env
}

func TestCreateUserAndLogin(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/api/users", "", gin.H{
		"us_id":      "u-reg-1",
		"usuario":    "ana_reg",
		"contrasena": "secreta123",
		"nombre":     "Ana",
		"edad":       8,
		"intereses":  []string{"dragones", "cuentos"},
	})
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("create user: status %d, code %d (%s)", w.Code, env.Code, env.Message)
	}
	var created struct {
		ID    uint64 `json:"id"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if created.ID == 0 || created.Token == "" {
		t.Fatalf("registration must return id and token, got %+v", created)
	}

	// the fresh token is valid for protected routes
	w, env = doJSON(t, r, http.MethodGet, "/api/me", created.Token, nil)
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("me: status %d, code %d (%s)", w.Code, env.Code, env.Message)
	}
	var me struct {
		Name string `json:"nombre"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Name != "Ana" {
		t.Fatalf("me returned %q, want Ana", me.Name)
	}

	w, env = doJSON(t, r, http.MethodPost, "/api/login", "", gin.H{
		"usuario":    "ana_reg",
		"contrasena": "secreta123",
	})
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("login: status %d, code %d (%s)", w.Code, env.Code, env.Message)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/login", "", gin.H{
		"usuario":    "ana_reg",
		"contrasena": "equivocada",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", w.Code)
	}
}

func TestDuplicateExternalIDRejected(t *testing.T) {
	r := newTestRouter(t)

	body := gin.H{"us_id": "u-dup-1", "usuario": "dup1", "contrasena": "secreta123"}
	if w, _ := doJSON(t, r, http.MethodPost, "/api/users", "", body); w.Code != http.StatusOK {
		t.Fatalf("first create: status %d", w.Code)
	}
	body["usuario"] = "dup2"
	if w, _ := doJSON(t, r, http.MethodPost, "/api/users", "", body); w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate us_id: status %d, want 400", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodGet, "/api/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/me", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d, want 401", w.Code)
	}
}
