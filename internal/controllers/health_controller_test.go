package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"qr_transit/internal/config"
)

func serveHealth(t *testing.T) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	r := gin.New()
	r.GET("/healthz", Health)
	w := get(r, "/healthz")
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealth_NoDatabase(t *testing.T) {
	prev := config.DB
	config.DB = nil
	t.Cleanup(func() { config.DB = prev })

	w, body := serveHealth(t)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not initialised", body["database"])
}

func TestHealth_UnreachableDatabase(t *testing.T) {
	db, err := gorm.Open(postgres.Open("host=127.0.0.1 port=1 user=test dbname=test sslmode=disable connect_timeout=1"),
		&gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	prev := config.DB
	config.DB = db
	t.Cleanup(func() { config.DB = prev })

	w, body := serveHealth(t)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", body["status"])
	assert.NotEmpty(t, body["database"])
}
