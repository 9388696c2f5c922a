package http

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/installer"
	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/state"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/installd"
	"github.com/GriffinCanCode/BundleOS/backend/internal/profile"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/paths"
)

func newRouter(t *testing.T) (*gin.Engine, *bundle.DataMgr, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	codeRoot := filepath.Join(root, "code")
	logger := logging.NewDefault()

	records, err := state.NewRecordStore(filepath.Join(root, "bms", paths.BundleRecordFile))
	require.NoError(t, err)
	states, err := state.NewUserStateStore(filepath.Join(root, "bms", paths.UserStateFile))
	require.NoError(t, err)

	data := bundle.NewDataMgr(records, states, 10000, logger)
	require.NoError(t, data.LoadFromStores())

	daemon := installd.New(installd.Config{
		CodeRoot:       codeRoot,
		DataRoot:       filepath.Join(root, "data"),
		DistRoot:       filepath.Join(root, "hmdfs"),
		DatabaseGID:    int32(os.Getgid()),
		DistributedGID: int32(os.Getgid()),
	}, logger)
	parser := profile.New("phone", []string{"arm64-v8a"}, logger)
	inst := installer.New(data, daemon, parser, codeRoot, logger)

	handlers := NewHandlers(data, inst, daemon, nil)

	router := gin.New()
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.POST("/bundles/install", handlers.InstallBundle)
	router.DELETE("/bundles/:name", handlers.UninstallBundle)
	router.GET("/bundles", handlers.ListBundles)
	router.GET("/bundles/:name", handlers.GetBundle)
	router.POST("/bundles/query/abilities", handlers.QueryAbilities)
	router.PUT("/bundles/:name/enabled", handlers.SetBundleEnabled)
	router.GET("/bundles/:name/enabled", handlers.GetBundleEnabled)
	router.GET("/bundles/:name/stats", handlers.GetBundleStats)

	return router, data, root
}

func stageHap(t *testing.T, dir, bundleName string) string {
	t.Helper()
	manifest := fmt.Sprintf(`{
	  "app": {
	    "bundleName": %q,
	    "versionCode": 1,
	    "versionName": "1.0.0",
	    "minAPIVersion": 9,
	    "targetAPIVersion": 9
	  },
	  "module": {
	    "name": "entry",
	    "type": "entry",
	    "mainElement": "MainAbility",
	    "deviceTypes": ["phone"],
	    "deliveryWithInstall": true,
	    "pages": "$profile:main_pages",
	    "abilities": [{
	      "name": "MainAbility",
	      "visible": true,
	      "skills": [{
	        "actions": ["action.system.home"],
	        "entities": ["entity.system.home"]
	      }]
	    }]
	  }
	}`, bundleName)

	path := filepath.Join(dir, bundleName+".hap")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	entry, err := w.Create("module.json")
	require.NoError(t, err)
	_, err = entry.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func do(router *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	router, _, _ := newRouter(t)

	w := do(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestInstallAndGet(t *testing.T) {
	router, _, root := newRouter(t)
	hap := stageHap(t, root, "com.example.web")

	w := do(router, http.MethodPost, "/bundles/install", gin.H{"path": hap})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "com.example.web", decode(t, w)["bundle"])

	w = do(router, http.MethodGet, "/bundles/com.example.web?userId=100&flags=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode(t, w)["bundle"].(map[string]any)
	assert.Equal(t, float64(1), info["versionCode"])

	w = do(router, http.MethodGet, "/bundles?userId=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestGetUnknownBundle(t *testing.T) {
	router, _, _ := newRouter(t)

	w := do(router, http.MethodGet, "/bundles/com.example.missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "bundle_not_found", decode(t, w)["code"])
}

func TestInstallRequiresPath(t *testing.T) {
	router, _, _ := newRouter(t)

	w := do(router, http.MethodPost, "/bundles/install", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryAbilities(t *testing.T) {
	router, _, root := newRouter(t)
	hap := stageHap(t, root, "com.example.web")
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/bundles/install", gin.H{"path": hap}).Code)

	w := do(router, http.MethodPost, "/bundles/query/abilities?userId=100", gin.H{
		"action":   "action.system.home",
		"entities": []string{"entity.system.home"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestEnableDisable(t *testing.T) {
	router, _, root := newRouter(t)
	hap := stageHap(t, root, "com.example.web")
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/bundles/install", gin.H{"path": hap}).Code)

	w := do(router, http.MethodPut, "/bundles/com.example.web/enabled", gin.H{"userId": 100, "enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodGet, "/bundles/com.example.web/enabled?userId=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["enabled"])

	// Missing body fields are rejected before touching state
	w = do(router, http.MethodPut, "/bundles/com.example.web/enabled", gin.H{"userId": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUninstall(t *testing.T) {
	router, _, root := newRouter(t)
	hap := stageHap(t, root, "com.example.web")
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/bundles/install", gin.H{"path": hap}).Code)

	w := do(router, http.MethodDelete, "/bundles/com.example.web?userId=100", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodGet, "/bundles/com.example.web", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	router, _, root := newRouter(t)
	hap := stageHap(t, root, "com.example.web")
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/bundles/install", gin.H{"path": hap}).Code)

	w := do(router, http.MethodGet, "/bundles/com.example.web/stats?userId=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	vector := decode(t, w)["vector"].([]any)
	assert.Len(t, vector, 5)
}
