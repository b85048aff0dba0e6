package coreplaylist

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateMedia(t *testing.T) {
	s, mock := setupMockServer(t)
	defer mock.Close()

	cols := []string{"id", "title", "source_kind", "storage_ref", "embed_url", "duration_ms", "created_at"}

	t.Run("StoredMedia", func(t *testing.T) {
		body := map[string]any{
			"title":      "Breathing Drill",
			"sourceKind": "stored",
			"storageRef": "audio/breathing-drill.mp3",
			"durationMs": 90000,
		}
		req := newParamRequest("POST", "/medias", "", "", body)
		w := httptest.NewRecorder()

		mock.ExpectQuery("INSERT INTO medias").
			WithArgs(pgxmock.AnyArg(), "Breathing Drill", "stored", "audio/breathing-drill.mp3", "", 90000).
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("m-new", "Breathing Drill", "stored", "audio/breathing-drill.mp3", "", 90000, time.Now()))

		s.handleCreateMedia(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var m Media
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
		assert.Equal(t, "stored", m.SourceKind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmbedMedia", func(t *testing.T) {
		body := map[string]any{
			"title":      "Guided Session",
			"sourceKind": "embed",
			"embedUrl":   "https://example.com/embed/42",
		}
		req := newParamRequest("POST", "/medias", "", "", body)
		w := httptest.NewRecorder()

		mock.ExpectQuery("INSERT INTO medias").
			WithArgs(pgxmock.AnyArg(), "Guided Session", "embed", "", "https://example.com/embed/42", 0).
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("m-new2", "Guided Session", "embed", "", "https://example.com/embed/42", 0, time.Now()))

		s.handleCreateMedia(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("RejectsBothSourcesSet", func(t *testing.T) {
		body := map[string]any{
			"title":      "Confused",
			"sourceKind": "stored",
			"storageRef": "audio/x.mp3",
			"embedUrl":   "https://example.com/embed/1",
		}
		req := newParamRequest("POST", "/medias", "", "", body)
		w := httptest.NewRecorder()

		s.handleCreateMedia(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsMissingSource", func(t *testing.T) {
		body := map[string]any{
			"title":      "Empty Source",
			"sourceKind": "embed",
		}
		req := newParamRequest("POST", "/medias", "", "", body)
		w := httptest.NewRecorder()

		s.handleCreateMedia(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
