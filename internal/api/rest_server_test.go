package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/annel0/scc-replay/internal/app"
	"github.com/annel0/scc-replay/internal/engine"
	"github.com/annel0/scc-replay/internal/volume"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "kind,name,owner,faction,factionColor,entityId,health,position,rotation,gridSize"

func writeRecording(t *testing.T) string {
	t.Helper()
	raw := volume.PackBits(3, 3, 3, func(x, y, z int) bool { return true })
	payload := volume.Encode(3, 3, 3, raw)

	rows := []string{"version 2", header}
	for i := 0; i < 3; i++ {
		rows = append(rows, "start_block",
			fmt.Sprintf("grid,Ship,Owner,Red,1 0 0,E1,100,%d 0 0,0 0 0 1,Small", i*10),
			fmt.Sprintf("grid,Large Grid 7,Owner,Red,1 0 0,E2,100,0 %d 0,0 0 0 1,Large", i))
	}
	rows = append(rows, "volume,E1,"+payload)
	path := filepath.Join(t.TempDir(), "rec.scc")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

func newServer(t *testing.T) (*RestServer, *app.Viewer) {
	t.Helper()
	viewer := app.NewViewer(engine.New(engine.Options{}), app.Options{})
	rs := NewRestServer(Config{Viewer: viewer, Registry: prometheus.NewRegistry()})
	return rs, viewer
}

func do(t *testing.T, rs *RestServer, method, path string, body interface{}) (int, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	rs.Router().ServeHTTP(w, req)

	var resp GenericResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

// decode перекладывает Data ответа в типизированную структуру
func decode(t *testing.T, data interface{}, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHealth(t *testing.T) {
	rs, _ := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	rs.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestEndpointsWithoutSession(t *testing.T) {
	rs, _ := newServer(t)
	for _, path := range []string{"/api/session", "/api/poses", "/api/entities", "/api/volumes/E1"} {
		code, resp := do(t, rs, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusConflict, code, path)
		assert.False(t, resp.Success)
	}
}

func TestLoadAndQuery(t *testing.T) {
	rs, _ := newServer(t)

	code, resp := do(t, rs, http.MethodPost, "/api/load", LoadRequest{Path: writeRecording(t)})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = do(t, rs, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, code)
	var status engine.Status
	decode(t, resp.Data, &status)
	assert.Equal(t, 3, status.Frames)
	assert.Equal(t, 1, status.Volumes)
	assert.True(t, status.Playing)

	_, resp = do(t, rs, http.MethodGet, "/api/poses", nil)
	var markers []engine.Marker
	decode(t, resp.Data, &markers)
	assert.Len(t, markers, 2)

	_, resp = do(t, rs, http.MethodGet, "/api/entities", nil)
	var items []engine.EntityItem
	decode(t, resp.Data, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "E1", items[0].EntityID)

	code, resp = do(t, rs, http.MethodGet, "/api/volumes/E1", nil)
	require.Equal(t, http.StatusOK, code)
	var vol VolumeResponse
	decode(t, resp.Data, &vol)
	assert.Equal(t, 27, vol.Cells)
	// у заполненного куба 3x3x3 внутренняя ячейка не на поверхности
	assert.Len(t, vol.Surface, 26)

	code, _ = do(t, rs, http.MethodGet, "/api/volumes/E2", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLoadFailure(t *testing.T) {
	rs, _ := newServer(t)

	code, _ := do(t, rs, http.MethodPost, "/api/load", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := do(t, rs, http.MethodPost, "/api/load", LoadRequest{Path: filepath.Join(t.TempDir(), "missing.scc")})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, resp.Success)
}

func TestPlaybackControls(t *testing.T) {
	rs, viewer := newServer(t)
	_, err := viewer.Load(context.Background(), writeRecording(t))
	require.NoError(t, err)

	code, resp := do(t, rs, http.MethodPost, "/api/cursor", map[string]float64{"cursor": 7})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, resp.Data.(map[string]interface{})["cursor"])

	code, resp = do(t, rs, http.MethodPost, "/api/play", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["playing"])

	code, resp = do(t, rs, http.MethodPost, "/api/play", map[string]bool{"playing": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["playing"])

	code, _ = do(t, rs, http.MethodPost, "/api/speed", map[string]int{"preset": 0})
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, rs, http.MethodPost, "/api/speed", map[string]int{"preset": 99})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, rs, http.MethodPost, "/api/loop", map[string]bool{"looping": true})
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, rs, http.MethodPost, "/api/scrub/start", nil)
	assert.Equal(t, http.StatusOK, code)
	_, resp = do(t, rs, http.MethodGet, "/api/session", nil)
	var status engine.Status
	decode(t, resp.Data, &status)
	assert.True(t, status.Scrubbing)
	assert.True(t, status.Looping)
	assert.Equal(t, 0, status.PresetIndex)

	code, _ = do(t, rs, http.MethodPost, "/api/scrub/end", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestPlayWithChunkedBody(t *testing.T) {
	rs, viewer := newServer(t)
	_, err := viewer.Load(context.Background(), writeRecording(t))
	require.NoError(t, err)

	play := func(body string) (int, GenericResponse) {
		// MultiReader скрывает длину: ContentLength == -1
		req := httptest.NewRequest(http.MethodPost, "/api/play", io.MultiReader(strings.NewReader(body)))
		require.Equal(t, int64(-1), req.ContentLength)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		rs.Router().ServeHTTP(w, req)

		var resp GenericResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w.Code, resp
	}

	// После загрузки воспроизведение уже идет; переключение дало бы false
	code, resp := play(`{"playing":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["playing"])

	code, resp = play(`{"playing":false}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["playing"])

	code, resp = play("")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["playing"], "пустое тело переключает")

	code, _ = play("{")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTrackEndpoint(t *testing.T) {
	rs, viewer := newServer(t)
	_, err := viewer.Load(context.Background(), writeRecording(t))
	require.NoError(t, err)

	code, resp := do(t, rs, http.MethodPost, "/api/track", TrackRequest{EntityID: "E1"})
	require.Equal(t, http.StatusOK, code)
	var tr engine.Tracking
	decode(t, resp.Data, &tr)
	assert.True(t, tr.Found)
	assert.True(t, tr.Visible)

	_, resp = do(t, rs, http.MethodGet, "/api/track", nil)
	decode(t, resp.Data, &tr)
	assert.Equal(t, "E1", tr.EntityID)
}

func TestMetricsEndpoint(t *testing.T) {
	rs, _ := newServer(t)
	do(t, rs, http.MethodGet, "/api/session", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	rs.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scc_api_http_request_errors_total")
}
