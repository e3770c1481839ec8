package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ko-stant/tilewall/internal/geometry"
	"github.com/Ko-stant/tilewall/internal/protocol"
)

type staticStatus protocol.StatusSnapshot

func (s staticStatus) Status() protocol.StatusSnapshot { return protocol.StatusSnapshot(s) }

func sampleStatus() staticStatus {
	return staticStatus{
		Extents: geometry.NewRectangle(0, 0, 3840, 1080),
		XScale:  1920,
		YScale:  1080,
		Screens: 2,
		Regions: 1,
		Clients: []protocol.ClientStatus{{ID: "c1", Rect: geometry.NewRectangle(0, 0, 1920, 1080)}},
		Modules: []protocol.ModuleStatus{{ID: "7", Namespace: "/module7"}},
		Errors: []protocol.ErrorRecord{{
			Origin:    "CLIENT",
			Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			Message:   "<script>alert(1)</script>",
		}},
	}
}

func TestStatusHandler_RendersSnapshot(t *testing.T) {
	rec := httptest.NewRecorder()
	StatusHandler(sampleStatus())(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "extents 0,0,3840,1080, scale 1920x1080, 2 screens in 1 regions")
	assert.Contains(t, body, "<td>c1</td><td>0,0,1920,1080</td>")
	assert.Contains(t, body, "<td>/module7</td>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestErrorsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorsHandler(sampleStatus())(rec, httptest.NewRequest(http.MethodGet, "/errors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var records []protocol.ErrorRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "CLIENT", records[0].Origin)

	rec = httptest.NewRecorder()
	ErrorsHandler(staticStatus{})(rec, httptest.NewRequest(http.MethodGet, "/errors", nil))
	assert.JSONEq(t, "[]", rec.Body.String())
}
