package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/micrenda/circlesim-sub000/internal/config"
	"github.com/micrenda/circlesim-sub000/internal/metrics"
	"github.com/micrenda/circlesim-sub000/internal/storage"
)

func newTestHandler(t *testing.T) (http.Handler, *storage.Store) {
	t.Helper()
	return newTestHandlerWith(t, Options{})
}

func newTestHandlerWith(t *testing.T, opts Options) (http.Handler, *storage.Store) {
	t.Helper()
	st := storage.New(t.TempDir())
	require.NoError(t, st.Init())
	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	require.NoError(t, err)
	opts.Store, opts.Gatherer, opts.Collector = st, reg, col
	return NewHandler(opts), st
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func presetYAML(t *testing.T, name string) string {
	t.Helper()
	return configYAML(t, config.GetPreset(name))
}

func configYAML(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	return string(data)
}

// crossingWithLua is the crossing preset with an inline Lua field.
func crossingWithLua(t *testing.T, src string) string {
	t.Helper()
	cfg := config.GetPreset("crossing")
	cfg.Field = config.FieldConfig{Type: config.FieldLua, Source: src}
	return configYAML(t, cfg)
}

func TestHealthAndPresets(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(h, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())

	w = do(h, "GET", "/presets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var names []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &names))
	assert.Equal(t, config.ListPresets(), names)
}

func TestCreateRunAndFetch(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(h, "POST", "/runs?label=crossing", presetYAML(t, "crossing"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created runResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.RunID)
	assert.True(t, strings.HasPrefix(created.RunID, "crossing_"))
	assert.Equal(t, 150.0, created.Time)
	assert.Equal(t, "free", created.Regime)
	assert.Equal(t, 1, created.Result.Interactions)

	w = do(h, "GET", "/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []storage.RunMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, created.RunID, runs[0].ID)

	w = do(h, "GET", "/runs/"+created.RunID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var meta storage.RunMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, storage.StatusComplete, meta.Status)

	w = do(h, "GET", "/runs/"+created.RunID+"/trajectory", "")
	require.Equal(t, http.StatusOK, w.Code)
	var export storage.ExportData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	assert.NotEmpty(t, export.Trajectory.Laser)

	w = do(h, "GET", "/runs/"+created.RunID+"/trajectory.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "event,segment,t"))

	w = do(h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `circlesim_runs_total{status="complete"} 1`)
	assert.Contains(t, w.Body.String(), `circlesim_node_visits_total{node_id="0"} 1`)
}

func TestCreateRunErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(h, "POST", "/runs", "simulation: [not, a, map]")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, "POST", "/runs", "simulation:\n  duration: -5\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "duration")

	w = do(h, "POST", "/runs", "field:\n  type: lua\n  script: /etc/field.lua\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, "POST", "/runs", strings.Repeat("#", maxConfigBytes+10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGetRunNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, path := range []string{"/runs/nope", "/runs/nope/trajectory", "/runs/nope/trajectory.csv"} {
		w := do(h, "GET", path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestCreateRun_LuaSandbox(t *testing.T) {
	h, st := newTestHandler(t)
	marker := filepath.Join(t.TempDir(), "marker")
	zero := "\nfunction field(t, x, y, z) return 0, 0, 0, 0, 0, 0 end\n"

	for _, src := range []string{
		`os.execute("touch ` + marker + `")`,
		`io.open(` + strconv.Quote(marker) + `, "w"):close()`,
		`dofile(` + strconv.Quote(marker) + `)`,
		`require("os")`,
	} {
		w := do(h, "POST", "/runs", crossingWithLua(t, src+zero))
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s: %s", src, w.Body.String())
		_, err := os.Stat(marker)
		assert.True(t, os.IsNotExist(err), "%s created %s", src, marker)
	}

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	// math and string stay available
	w := do(h, "POST", "/runs", crossingWithLua(t,
		`local k = math.sqrt(4) - #string.rep("x", 2)`+zero))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateRun_Timeout(t *testing.T) {
	h, st := newTestHandlerWith(t, Options{RunTimeout: 100 * time.Millisecond})

	start := time.Now()
	w := do(h, "POST", "/runs", crossingWithLua(t, `function field(t, x, y, z) while true do end end`))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code, w.Body.String())
	assert.Less(t, time.Since(start), 30*time.Second)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.RunID)
	meta, err := st.Load(body.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, meta.Status)
}
