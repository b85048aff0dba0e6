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

func sectionMediaRowColumns() []string {
	return []string{
		"id", "section_id", "media_id", "position",
		"is_required", "is_optional", "default_selected", "created_at",
	}
}

func expectSectionForUpdate(mock pgxmock.PgxPoolIface, sectionID, playlistID, status string, version int64) {
	mock.ExpectQuery("SELECT s.playlist_id, p.status, s.medias_version").
		WithArgs(sectionID).
		WillReturnRows(pgxmock.NewRows([]string{"playlist_id", "status", "medias_version"}).
			AddRow(playlistID, status, version))
}

func TestHandleAddMediaToSection(t *testing.T) {
	s, mock := setupMockServer(t)
	defer mock.Close()

	sectionID := "sec-1"

	t.Run("Success", func(t *testing.T) {
		body := map[string]any{"mediaId": "m3", "isRequired": true}
		req := newParamRequest("POST", "/sections/"+sectionID+"/medias", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 1)
		mock.ExpectQuery("SELECT media_id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"media_id"}).AddRow("m1").AddRow("m2"))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("m3").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("INSERT INTO section_medias").
			WithArgs(pgxmock.AnyArg(), sectionID, "m3", true, false, false).
			WillReturnRows(pgxmock.NewRows(sectionMediaRowColumns()).
				AddRow("sm-new", sectionID, "m3", 3, true, false, false, time.Now()))
		mock.ExpectExec("UPDATE sections").
			WithArgs(sectionID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()

		s.handleAddMediaToSection(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var sm SectionMedia
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sm))
		assert.Equal(t, 3, sm.Order)
		assert.True(t, sm.IsRequired)
		assert.False(t, sm.IsOptional)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateMembership", func(t *testing.T) {
		body := map[string]any{"mediaId": "m2"}
		req := newParamRequest("POST", "/sections/"+sectionID+"/medias", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 1)
		mock.ExpectQuery("SELECT media_id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"media_id"}).AddRow("m1").AddRow("m2"))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("m2").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		s.handleAddMediaToSection(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "DUPLICATE_MEMBERSHIP")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PublishedPlaylistIsLocked", func(t *testing.T) {
		body := map[string]any{"mediaId": "m3"}
		req := newParamRequest("POST", "/sections/"+sectionID+"/medias", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "published", 1)
		mock.ExpectQuery("SELECT media_id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"media_id"}))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("m3").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		s.handleAddMediaToSection(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "PUBLISHED_LOCKED")
	})

	t.Run("UnknownMedia", func(t *testing.T) {
		body := map[string]any{"mediaId": "ghost"}
		req := newParamRequest("POST", "/sections/"+sectionID+"/medias", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 1)
		mock.ExpectQuery("SELECT media_id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"media_id"}))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		s.handleAddMediaToSection(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NOT_FOUND")
	})
}

func TestHandleRemoveMedia_CompactsPositions(t *testing.T) {
	s, mock := setupMockServer(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM section_medias sm").
		WithArgs("sm-2").
		WillReturnRows(pgxmock.NewRows([]string{"section_id", "position", "playlist_id", "status"}).
			AddRow("sec-1", 2, "pl-1", "draft"))
	mock.ExpectExec("DELETE FROM section_medias").
		WithArgs("sm-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("SET position = position - 1").
		WithArgs("sec-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("UPDATE sections").
		WithArgs("sec-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	req := newParamRequest("DELETE", "/section-medias/sm-2", "id", "sm-2", nil)
	w := httptest.NewRecorder()

	s.handleRemoveMedia(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleReorderSectionMedia(t *testing.T) {
	s, mock := setupMockServer(t)
	defer mock.Close()

	sectionID := "sec-1"

	t.Run("Success", func(t *testing.T) {
		body := map[string]any{
			"reorderedItems": []OrderPair{
				{ID: "sm-2", Order: 1},
				{ID: "sm-1", Order: 2},
			},
			"baseVersion": 7,
		}
		req := newParamRequest("PUT", "/sections/"+sectionID+"/medias/order", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 7)
		mock.ExpectQuery("SELECT id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sm-1").AddRow("sm-2"))
		mock.ExpectExec("SET position = -position").
			WithArgs(sectionID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		mock.ExpectExec("UPDATE section_medias").
			WithArgs(sectionID, "sm-2", 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE section_medias").
			WithArgs(sectionID, "sm-1", 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE sections").
			WithArgs(sectionID, int64(8)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()

		s.handleReorderSectionMedia(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success       bool  `json:"success"`
			MediasVersion int64 `json:"mediasVersion"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, int64(8), resp.MediasVersion)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StaleBaseVersion", func(t *testing.T) {
		body := map[string]any{
			"reorderedItems": []OrderPair{
				{ID: "sm-2", Order: 1},
				{ID: "sm-1", Order: 2},
			},
			"baseVersion": 6,
		}
		req := newParamRequest("PUT", "/sections/"+sectionID+"/medias/order", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 7)
		mock.ExpectQuery("SELECT id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sm-1").AddRow("sm-2"))
		mock.ExpectRollback()

		s.handleReorderSectionMedia(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "ORDER_CONFLICT")
	})
}

func TestHandleBatchAddMedias(t *testing.T) {
	s, mock := setupMockServer(t)
	defer mock.Close()

	sectionID := "sec-1"

	t.Run("SkipsDuplicatesAndUnknown", func(t *testing.T) {
		// mDup is already a member; mA and mB are new and known.
		body := map[string]any{
			"mediaIds": []string{"mA", "mB", "mDup"},
		}
		req := newParamRequest("POST", "/sections/"+sectionID+"/medias/batch", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 1)
		mock.ExpectQuery("SELECT media_id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"media_id"}).AddRow("mDup"))
		mock.ExpectQuery("SELECT id FROM medias").
			WithArgs([]string{"mA", "mB", "mDup"}).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("mA").AddRow("mB").AddRow("mDup"))
		mock.ExpectQuery("SELECT id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sm-1"))
		mock.ExpectExec("SET position = -position").
			WithArgs(sectionID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		// Existing row keeps slot 1, the two new rows land at 2 and 3.
		mock.ExpectExec("UPDATE section_medias").
			WithArgs(sectionID, "sm-1", 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO section_medias").
			WithArgs(pgxmock.AnyArg(), sectionID, "mA", 2, false, true, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO section_medias").
			WithArgs(pgxmock.AnyArg(), sectionID, "mB", 3, false, true, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("UPDATE sections").
			WithArgs(sectionID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()

		s.handleBatchAddMedias(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			AddedCount   int `json:"addedCount"`
			SkippedCount int `json:"skippedCount"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.AddedCount)
		assert.Equal(t, 1, resp.SkippedCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertAtStartOrderShiftsSiblings", func(t *testing.T) {
		body := map[string]any{
			"mediaIds":   []string{"mC"},
			"startOrder": 1,
		}
		req := newParamRequest("POST", "/sections/"+sectionID+"/medias/batch", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 1)
		mock.ExpectQuery("SELECT media_id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"media_id"}).AddRow("m1"))
		mock.ExpectQuery("SELECT id FROM medias").
			WithArgs([]string{"mC"}).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("mC"))
		mock.ExpectQuery("SELECT id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sm-1"))
		mock.ExpectExec("SET position = -position").
			WithArgs(sectionID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO section_medias").
			WithArgs(pgxmock.AnyArg(), sectionID, "mC", 1, false, true, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("UPDATE section_medias").
			WithArgs(sectionID, "sm-1", 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE sections").
			WithArgs(sectionID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()

		s.handleBatchAddMedias(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"addedCount":1`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AllSkippedCommitsWithoutWrites", func(t *testing.T) {
		body := map[string]any{
			"mediaIds": []string{"mDup"},
		}
		req := newParamRequest("POST", "/sections/"+sectionID+"/medias/batch", "id", sectionID, body)
		w := httptest.NewRecorder()

		mock.ExpectBegin()
		expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 1)
		mock.ExpectQuery("SELECT media_id FROM section_medias").
			WithArgs(sectionID).
			WillReturnRows(pgxmock.NewRows([]string{"media_id"}).AddRow("mDup"))
		mock.ExpectQuery("SELECT id FROM medias").
			WithArgs([]string{"mDup"}).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("mDup"))
		mock.ExpectCommit()
		mock.ExpectRollback()

		s.handleBatchAddMedias(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"addedCount":0`)
		assert.Contains(t, w.Body.String(), `"skippedCount":1`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHandleBatchRemoveMedias(t *testing.T) {
	s, mock := setupMockServer(t)
	defer mock.Close()

	sectionID := "sec-1"

	body := map[string]any{"mediaIds": []string{"m2", "ghost"}}
	req := newParamRequest("POST", "/sections/"+sectionID+"/medias/batch-remove", "id", sectionID, body)
	w := httptest.NewRecorder()

	mock.ExpectBegin()
	expectSectionForUpdate(mock, sectionID, "pl-1", "draft", 1)
	mock.ExpectExec("DELETE FROM section_medias").
		WithArgs(sectionID, []string{"m2", "ghost"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("SELECT id FROM section_medias").
		WithArgs(sectionID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sm-1").AddRow("sm-3"))
	mock.ExpectExec("SET position = -position").
		WithArgs(sectionID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("UPDATE section_medias").
		WithArgs(sectionID, "sm-1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE section_medias").
		WithArgs(sectionID, "sm-3", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE sections").
		WithArgs(sectionID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	s.handleBatchRemoveMedias(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"removedCount":1`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
