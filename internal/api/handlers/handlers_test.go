package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/med-tracker/backend/internal/cache/memory"
	"github.com/med-tracker/backend/internal/ingestion"
	"github.com/med-tracker/backend/internal/query"
	"github.com/med-tracker/backend/internal/storage/sqlite"
	"github.com/med-tracker/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

const fixtureXML = `<?xml version="1.0" encoding="UTF-8"?>
<drugbank xmlns="http://www.drugbank.ca">
  <drug>
    <drugbank-id primary="true">DB00945</drugbank-id>
    <name>Acetylsalicylic acid</name>
    <description>Commonly marketed as aspirin.</description>
    <drug-interactions>
      <drug-interaction>
        <drugbank-id>DB00682</drugbank-id>
        <name>Warfarin</name>
        <description>Increased risk of bleeding.</description>
      </drug-interaction>
    </drug-interactions>
  </drug>
  <drug>
    <drugbank-id primary="true">DB00682</drugbank-id>
    <name>Warfarin</name>
    <food-interactions>
      <food-interaction>Avoid drastic changes in dietary leafy vegetable intake.</food-interaction>
    </food-interactions>
  </drug>
</drugbank>`

func newTestApp(t *testing.T, built bool) *fiber.App {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "drugbank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema())

	if built {
		builder := ingestion.NewBuilder(store)
		_, err = builder.Build(context.Background(), strings.NewReader(fixtureXML), false)
		require.NoError(t, err)
	}

	engine := query.NewEngine(store, nil)
	cache := memory.New(memory.Config{})

	drugHandler := NewDrugHandler(engine, cache)
	interactionHandler := NewInteractionHandler(engine, cache)
	cacheHandler := NewCacheHandler(cache)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Get("/drugs/search", drugHandler.Search)
	api.Get("/drugs/:name", drugHandler.GetDetails)
	api.Get("/drugs/:name/food-interactions", drugHandler.GetFoodInteractions)
	api.Post("/interactions", interactionHandler.CheckInteractions)
	api.Get("/status", drugHandler.Status)
	api.Get("/cache/stats", cacheHandler.Stats)
	api.Post("/cache/clear", cacheHandler.Clear)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestStatusEndpoint(t *testing.T) {
	app := newTestApp(t, true)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/status", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["initialized"])
	assert.Equal(t, float64(2), body["drugs"])
}

func TestSearchEndpoint(t *testing.T) {
	app := newTestApp(t, true)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/drugs/search?q=asp", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
}

func TestDetailsServedFromCacheOnSecondRequest(t *testing.T) {
	app := newTestApp(t, true)

	code, first := doJSON(t, app, http.MethodGet, "/api/v1/drugs/aspirin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DB00945", first["id"])
	assert.Equal(t, false, first["cached"])

	code, second := doJSON(t, app, http.MethodGet, "/api/v1/drugs/aspirin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DB00945", second["id"])
	assert.Equal(t, true, second["cached"])
}

func TestDetailsUnknownDrugIs404(t *testing.T) {
	app := newTestApp(t, true)

	code, _ := doJSON(t, app, http.MethodGet, "/api/v1/drugs/unknownsubstance", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInteractionsReversedOrderHitsCache(t *testing.T) {
	app := newTestApp(t, true)

	payload := map[string]interface{}{"drugs": []string{"aspirin", "warfarin"}}
	code, first := doJSON(t, app, http.MethodPost, "/api/v1/interactions", payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), first["count"])
	assert.Equal(t, false, first["cached"])

	reversed := map[string]interface{}{"drugs": []string{"Warfarin", "Aspirin"}}
	code, second := doJSON(t, app, http.MethodPost, "/api/v1/interactions", reversed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), second["count"])
	assert.Equal(t, true, second["cached"])
}

func TestInteractionsRequiresTwoNames(t *testing.T) {
	app := newTestApp(t, true)

	payload := map[string]interface{}{"drugs": []string{"aspirin"}}
	code, _ := doJSON(t, app, http.MethodPost, "/api/v1/interactions", payload)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFoodInteractionsEndpoint(t *testing.T) {
	app := newTestApp(t, true)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/drugs/warfarin/food-interactions", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
}

func TestQueriesAgainstEmptyStoreReturn503(t *testing.T) {
	app := newTestApp(t, false)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/drugs/search?q=asp", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body["error"], "not initialized")

	payload := map[string]interface{}{"drugs": []string{"aspirin", "warfarin"}}
	code, _ = doJSON(t, app, http.MethodPost, "/api/v1/interactions", payload)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestCacheStatsAndClear(t *testing.T) {
	app := newTestApp(t, true)

	doJSON(t, app, http.MethodGet, "/api/v1/drugs/aspirin", nil)
	doJSON(t, app, http.MethodGet, "/api/v1/drugs/aspirin", nil)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, code)
	tiers := body["tiers"].(map[string]interface{})
	drugTier := tiers["drug"].(map[string]interface{})
	assert.Equal(t, float64(1), drugTier["hits"])
	assert.Equal(t, float64(1), drugTier["entries"])

	code, _ = doJSON(t, app, http.MethodPost, "/api/v1/cache/clear", nil)
	require.Equal(t, http.StatusOK, code)

	code, body = doJSON(t, app, http.MethodGet, "/api/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, code)
	tiers = body["tiers"].(map[string]interface{})
	drugTier = tiers["drug"].(map[string]interface{})
	assert.Equal(t, float64(0), drugTier["entries"])
}
