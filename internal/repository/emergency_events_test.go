package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"wisefido-vitals/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockEmergencyEventsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *EmergencyEventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewEmergencyEventsRepository(db, logger)

	return db, mock, repo
}

func sampleEvent() *models.EmergencyEvent {
	now := time.Now()
	return &models.EmergencyEvent{
		EventID:    uuid.New().String(),
		DeviceID:   "device-1",
		PatientID:  "patient-1",
		HospitalID: "hospital-1",
		EventType:  "tachycardia",
		Severity:   models.SeverityHigh,
		Status:     models.EmergencyStatusDetected,
		Vitals:     models.VitalSigns{HeartRate: 152.0, Temperature: 36.9},
		Latitude:   21.1460,
		Longitude:  79.0880,
		DetectedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateEmergencyEvent_Success(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	event := sampleEvent()

	mock.ExpectExec(`INSERT INTO emergency_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateEmergencyEvent(context.Background(), event)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEmergencyEvent_Validation(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.CreateEmergencyEvent(ctx, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event is required")

	err = repo.CreateEmergencyEvent(ctx, &models.EmergencyEvent{DeviceID: "device-1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmergencyEvent_Success(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	eventID := uuid.New().String()
	detectedAt := time.Now()
	createdAt := time.Now()

	rows := sqlmock.NewRows([]string{
		"event_id", "device_id", "patient_id", "hospital_id", "event_type",
		"severity", "status", "vitals", "latitude", "longitude",
		"detected_at", "analysis", "created_at", "updated_at",
	}).AddRow(
		eventID, "device-1", "patient-1", "hospital-1", "tachycardia",
		"high", "detected", `{"heartRate": 152.0}`, 21.1460, 79.0880,
		detectedAt, `{"emergency_detected": true, "severity": "critical"}`, createdAt, createdAt,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(eventID).
		WillReturnRows(rows)

	event, err := repo.GetEmergencyEvent(context.Background(), eventID)

	require.NoError(t, err)
	assert.Equal(t, eventID, event.EventID)
	assert.Equal(t, "device-1", event.DeviceID)
	assert.Equal(t, "patient-1", event.PatientID)
	assert.Equal(t, "hospital-1", event.HospitalID)
	assert.Equal(t, "tachycardia", event.EventType)
	assert.Equal(t, 152.0, event.Vitals.HeartRate)
	require.NotNil(t, event.Analysis)
	assert.True(t, event.Analysis.EmergencyDetected)
	assert.Equal(t, "critical", event.Analysis.Severity)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmergencyEvent_HeuristicOnlyHasNoAnalysis(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	eventID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"event_id", "device_id", "patient_id", "hospital_id", "event_type",
		"severity", "status", "vitals", "latitude", "longitude",
		"detected_at", "analysis", "created_at", "updated_at",
	}).AddRow(
		eventID, "device-1", "patient-1", nil, "hyperthermia",
		"high", "detected", `{"temperature": 39.2}`, 21.1460, 79.0880,
		now, nil, now, now,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(eventID).
		WillReturnRows(rows)

	event, err := repo.GetEmergencyEvent(context.Background(), eventID)

	require.NoError(t, err)
	assert.Nil(t, event.Analysis)
	assert.Empty(t, event.HospitalID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmergencyEvent_NotFound(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	eventID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(eventID).
		WillReturnError(sql.ErrNoRows)

	event, err := repo.GetEmergencyEvent(context.Background(), eventID)

	assert.Nil(t, event)
	assert.ErrorIs(t, err, ErrEventNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEmergencyEvents_WithFilters(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	patientID := "patient-1"
	status := models.EmergencyStatusDetected

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(patientID, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"event_id", "device_id", "patient_id", "hospital_id", "event_type",
		"severity", "status", "vitals", "latitude", "longitude",
		"detected_at", "analysis", "created_at", "updated_at",
	}).AddRow(
		uuid.New().String(), "device-1", patientID, "hospital-1", "tachycardia",
		"high", status, `{"heartRate": 150.0}`, 21.1460, 79.0880,
		now, nil, now, now,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(patientID, status, 20, 0).
		WillReturnRows(rows)

	events, total, err := repo.ListEmergencyEvents(context.Background(), EmergencyEventFilters{
		PatientID: &patientID,
		Status:    &status,
	}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, patientID, events[0].PatientID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmergencyEventStatus_Transitions(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	eventID := uuid.New().String()

	mock.ExpectExec(`UPDATE emergency_events`).
		WithArgs(models.EmergencyStatusAcknowledged, eventID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AcknowledgeEmergencyEvent(ctx, eventID))

	mock.ExpectExec(`UPDATE emergency_events`).
		WithArgs(models.EmergencyStatusResolved, eventID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ResolveEmergencyEvent(ctx, eventID))

	mock.ExpectExec(`UPDATE emergency_events`).
		WithArgs(models.EmergencyStatusCancelled, eventID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CancelEmergencyEvent(ctx, eventID))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmergencyEventStatus_InvalidStatus(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	err := repo.UpdateEmergencyEventStatus(context.Background(), uuid.New().String(), "escalated")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmergencyEventStatus_NotFound(t *testing.T) {
	db, mock, repo := setupMockEmergencyEventsDB(t)
	defer db.Close()

	eventID := uuid.New().String()

	mock.ExpectExec(`UPDATE emergency_events`).
		WithArgs(models.EmergencyStatusResolved, eventID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ResolveEmergencyEvent(context.Background(), eventID)

	assert.ErrorIs(t, err, ErrEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
