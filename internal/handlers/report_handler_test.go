package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"noisewatch/internal/escalation"
	"noisewatch/internal/models"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, fileField, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func sampleReport(id string) *models.NoiseReport {
	now := time.Date(2025, 3, 3, 2, 0, 0, 0, time.UTC)
	return &models.NoiseReport{
		ID:              id,
		MediaReference:  "/media/" + id + ".wav",
		MediaKind:       models.MediaAudio,
		Reason:          "Construction",
		Geo:             models.NewGeoPoint(121.0, 14.6),
		NoiseLevel:      escalation.LevelRed,
		ConsecutiveDays: 1,
		Status:          escalation.StatusPending,
		AdminActions:    []models.AdminAction{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestReportHandler_SubmitReport(t *testing.T) {
	env := newTestEnv(t)
	fields := map[string]string{
		"reason":     "Construction",
		"comment":    "Jackhammer since 6am",
		"location":   `{"lat":14.6,"lng":121.0,"address":"Purok 3"}`,
		"mediaType":  "audio",
		"noiseLevel": "red",
	}
	expectedForm := services.SubmissionForm{
		HasMedia:   true,
		Reason:     "Construction",
		Comment:    "Jackhammer since 6am",
		Location:   `{"lat":14.6,"lng":121.0,"address":"Purok 3"}`,
		MediaType:  "audio",
		NoiseLevel: "red",
	}

	t.Run("anonymous", func(t *testing.T) {
		body, ct := multipartBody(t, "media", "clip.wav", []byte("RIFF-audio-bytes"), fields)
		env.reports.On("Submit", mock.Anything, expectedForm, "RIFF-audio-bytes", (*string)(nil)).
			Return(sampleReport("r-1"), nil).Once()

		w := env.do(request{method: http.MethodPost, path: "/reports/new-report", body: body, contentType: ct})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var got models.NoiseReport
		decodeJSON(t, w, &got)
		assert.Equal(t, "r-1", got.ID)
		assert.Equal(t, escalation.StatusPending, got.Status)
	})

	t.Run("authenticated submitter is recorded", func(t *testing.T) {
		body, ct := multipartBody(t, "media", "clip.wav", []byte("RIFF-audio-bytes"), fields)
		env.reports.On("Submit", mock.Anything, expectedForm, "RIFF-audio-bytes",
			mock.MatchedBy(func(id *string) bool { return id != nil && *id == testCitizen.ID })).
			Return(sampleReport("r-2"), nil).Once()

		w := env.do(request{method: http.MethodPost, path: "/reports/new-report", body: body, contentType: ct, token: citizenToken})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("missing media", func(t *testing.T) {
		body, ct := multipartBody(t, "", "", nil, map[string]string{"reason": "Karaoke", "noiseLevel": "yellow"})
		env.reports.On("Submit", mock.Anything, mock.MatchedBy(func(f services.SubmissionForm) bool { return !f.HasMedia }), "", (*string)(nil)).
			Return(nil, contextutils.WrapError(contextutils.ErrMissingRequired, "media file is required")).Once()

		w := env.do(request{method: http.MethodPost, path: "/reports/new-report", body: body, contentType: ct})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "media file is required", errorBody(t, w)["error"])
	})

	t.Run("not multipart", func(t *testing.T) {
		w := env.do(request{method: http.MethodPost, path: "/reports/new-report", body: jsonBody(`{"reason":"x"}`), contentType: "application/json"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	env.reports.AssertExpectations(t)
}

func TestReportHandler_ListReports(t *testing.T) {
	env := newTestEnv(t)
	red := escalation.LevelRed
	pending := escalation.StatusPending

	env.reports.On("List", mock.Anything, models.ReportFilter{}).Return([]models.NoiseReport{*sampleReport("r-1")}, nil).Once()
	env.reports.On("List", mock.Anything, models.ReportFilter{Status: &pending, NoiseLevel: &red, Limit: 10}).
		Return(nil, nil).Once()

	all := env.do(request{method: http.MethodGet, path: "/reports/get-report"})
	require.Equal(t, http.StatusOK, all.Code)
	var reports []models.NoiseReport
	decodeJSON(t, all, &reports)
	require.Len(t, reports, 1)

	filtered := env.do(request{method: http.MethodGet, path: "/reports/get-report?status=PENDING&noiseLevel=red&limit=10"})
	require.Equal(t, http.StatusOK, filtered.Code)
	assert.JSONEq(t, `[]`, filtered.Body.String())

	bad := env.do(request{method: http.MethodGet, path: "/reports/get-report?status=escalated"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	badLimit := env.do(request{method: http.MethodGet, path: "/reports/get-report?limit=ten"})
	assert.Equal(t, http.StatusBadRequest, badLimit.Code)

	env.reports.AssertExpectations(t)
}

func TestReportHandler_GetAndOptions(t *testing.T) {
	env := newTestEnv(t)
	env.reports.On("Get", mock.Anything, "r-1").Return(sampleReport("r-1"), nil).Once()
	env.reports.On("Get", mock.Anything, "missing").Return(nil, notFound("report not found")).Once()
	env.reports.On("Options", mock.Anything, "r-1").Return(&models.ReportOptions{
		ReportID:        "r-1",
		NoiseLevel:      escalation.LevelRed,
		ConsecutiveDays: 3,
		Status:          escalation.StatusPending,
		ResponseText:    escalation.PendingText,
		Threshold:       3,
		Options:         escalation.Options(escalation.LevelRed, 3),
	}, nil).Once()

	ok := env.do(request{method: http.MethodGet, path: "/reports/r-1"})
	assert.Equal(t, http.StatusOK, ok.Code)

	missing := env.do(request{method: http.MethodGet, path: "/reports/missing"})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	opts := env.do(request{method: http.MethodGet, path: "/reports/r-1/options"})
	require.Equal(t, http.StatusOK, opts.Code)
	var got models.ReportOptions
	decodeJSON(t, opts, &got)
	require.Len(t, got.Options, 3)
	assert.Equal(t, escalation.StatusActionRequired, got.Options[1].Status)
}

func TestReportHandler_UpdateStatus(t *testing.T) {
	env := newTestEnv(t)

	updated := sampleReport("r-1")
	updated.Status = escalation.StatusMonitoring
	updated.Version = 2
	updated.AdminActions = []models.AdminAction{{Action: escalation.LabelMonitoring, Status: escalation.StatusMonitoring}}

	env.reports.On("UpdateStatus", mock.Anything, services.StatusUpdateRequest{
		ReportID: "r-1",
		Status:   "monitoring",
		Version:  1,
		AdminID:  testAdmin.ID,
	}).Return(updated, nil).Once()
	env.reports.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(r services.StatusUpdateRequest) bool { return r.ReportID == "stale" })).
		Return(nil, contextutils.WrapError(contextutils.ErrConflict, "report was modified")).Once()
	env.reports.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(r services.StatusUpdateRequest) bool { return r.ReportID == "early" })).
		Return(nil, contextutils.WrapError(contextutils.ErrValidationFailed, "status action_required is not available for a red report on day 1")).Once()
	env.reports.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(r services.StatusUpdateRequest) bool { return r.ReportID == "ghost" })).
		Return(nil, notFound("report not found")).Once()

	put := func(id, body, token string) int {
		return env.do(request{
			method:      http.MethodPut,
			path:        "/reports/update-status/" + id,
			body:        jsonBody(body),
			contentType: "application/json",
			token:       token,
		}).Code
	}

	w := env.do(request{
		method:      http.MethodPut,
		path:        "/reports/update-status/r-1",
		body:        jsonBody(`{"status":"monitoring","version":1}`),
		contentType: "application/json",
		token:       adminToken,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.NoiseReport
	decodeJSON(t, w, &got)
	assert.Equal(t, escalation.StatusMonitoring, got.Status)
	assert.Len(t, got.AdminActions, 1)

	assert.Equal(t, http.StatusConflict, put("stale", `{"status":"resolved","version":1}`, adminToken))
	assert.Equal(t, http.StatusBadRequest, put("early", `{"status":"action_required"}`, adminToken))
	assert.Equal(t, http.StatusNotFound, put("ghost", `{"status":"resolved"}`, adminToken))
	assert.Equal(t, http.StatusForbidden, put("r-1", `{"status":"resolved"}`, citizenToken))
	assert.Equal(t, http.StatusUnauthorized, put("r-1", `{"status":"resolved"}`, ""))
	assert.Equal(t, http.StatusBadRequest, put("r-1", `not json`, adminToken))

	env.reports.AssertExpectations(t)
}

func TestReportHandler_MyReportsAndNearby(t *testing.T) {
	env := newTestEnv(t)
	env.reports.On("ListUserReports", mock.Anything, testCitizen.ID).Return([]models.NoiseReport{*sampleReport("r-1")}, nil).Once()
	env.reports.On("Nearby", mock.Anything, 14.6, 121.0, 250.0, 0).Return(nil, nil).Once()

	mine := env.do(request{method: http.MethodGet, path: "/reports/my-reports", token: citizenToken})
	assert.Equal(t, http.StatusOK, mine.Code)

	anon := env.do(request{method: http.MethodGet, path: "/reports/my-reports"})
	assert.Equal(t, http.StatusUnauthorized, anon.Code)

	near := env.do(request{method: http.MethodGet, path: "/reports/nearby?lat=14.6&lng=121.0&radius=250"})
	require.Equal(t, http.StatusOK, near.Code)
	assert.JSONEq(t, `[]`, near.Body.String())

	noLat := env.do(request{method: http.MethodGet, path: "/reports/nearby?lng=121.0"})
	assert.Equal(t, http.StatusBadRequest, noLat.Code)

	env.reports.AssertExpectations(t)
}

func TestReportHandler_DeleteReport(t *testing.T) {
	env := newTestEnv(t)
	env.reports.On("Delete", mock.Anything, "r-1").Return(nil).Once()

	assert.Equal(t, http.StatusForbidden, env.do(request{method: http.MethodDelete, path: "/reports/r-1", token: citizenToken}).Code)
	assert.Equal(t, http.StatusOK, env.do(request{method: http.MethodDelete, path: "/reports/r-1", token: adminToken}).Code)
	env.reports.AssertExpectations(t)
}
