package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

// ErrEventNotFound 紧急事件不存在
var ErrEventNotFound = errors.New("emergency event not found")

// EmergencyEventsRepository 紧急事件仓库
type EmergencyEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmergencyEventsRepository 创建紧急事件仓库
func NewEmergencyEventsRepository(db *sql.DB, logger *zap.Logger) *EmergencyEventsRepository {
	return &EmergencyEventsRepository{
		db:     db,
		logger: logger,
	}
}

// EmergencyEventFilters 紧急事件过滤条件
type EmergencyEventFilters struct {
	// 时间段过滤（detected_at）
	StartTime *time.Time
	EndTime   *time.Time

	DeviceID   *string
	PatientID  *string
	HospitalID *string

	EventType *string
	Severity  *string
	Status    *string
	Statuses  []string // IN 查询
}

const emergencyEventColumns = `
	event_id,
	device_id,
	patient_id,
	hospital_id,
	event_type,
	severity,
	status,
	vitals,
	latitude,
	longitude,
	detected_at,
	analysis,
	created_at,
	updated_at`

// CreateEmergencyEvent 写入一条紧急事件
func (r *EmergencyEventsRepository) CreateEmergencyEvent(ctx context.Context, event *models.EmergencyEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	vitalsJSON, err := json.Marshal(event.Vitals)
	if err != nil {
		return fmt.Errorf("failed to marshal vitals: %w", err)
	}

	// 仅启发式触发的事件没有分析结果
	var analysisJSON interface{}
	if event.Analysis != nil {
		data, err := json.Marshal(event.Analysis)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
		analysisJSON = data
	}

	query := `
		INSERT INTO emergency_events (
			event_id,
			device_id,
			patient_id,
			hospital_id,
			event_type,
			severity,
			status,
			vitals,
			latitude,
			longitude,
			detected_at,
			analysis,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.EventID,
		event.DeviceID,
		event.PatientID,
		nullString(event.HospitalID),
		event.EventType,
		event.Severity,
		event.Status,
		vitalsJSON,
		event.Latitude,
		event.Longitude,
		event.DetectedAt,
		analysisJSON,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create emergency event: %w", err)
	}

	return nil
}

// GetEmergencyEvent 根据 event_id 获取单个紧急事件
func (r *EmergencyEventsRepository) GetEmergencyEvent(ctx context.Context, eventID string) (*models.EmergencyEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM emergency_events
		WHERE event_id = $1
	`, emergencyEventColumns)

	row := r.db.QueryRowContext(ctx, query, eventID)
	event, err := scanEmergencyEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get emergency event: %w", err)
	}
	return event, nil
}

// ListEmergencyEvents 列表查询（支持多条件过滤、分页），按检测时间倒序
func (r *EmergencyEventsRepository) ListEmergencyEvents(ctx context.Context, filters EmergencyEventFilters, page, size int) ([]*models.EmergencyEvent, int, error) {
	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	// 计算总数
	queryCount := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM emergency_events
		%s
	`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count emergency events: %w", err)
	}

	// 分页处理
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT %s
		FROM emergency_events
		%s
		ORDER BY detected_at DESC
		LIMIT $%d OFFSET $%d
	`, emergencyEventColumns, whereClause, argN, argN+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query emergency events: %w", err)
	}
	defer rows.Close()

	events := []*models.EmergencyEvent{}
	for rows.Next() {
		event, err := scanEmergencyEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan emergency event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate emergency events: %w", err)
	}

	return events, total, nil
}

// UpdateEmergencyEventStatus 更新事件状态（状态流转归外部紧急事件管理方所有）
func (r *EmergencyEventsRepository) UpdateEmergencyEventStatus(ctx context.Context, eventID, status string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	validStatuses := map[string]bool{
		models.EmergencyStatusAcknowledged: true,
		models.EmergencyStatusResolved:     true,
		models.EmergencyStatusCancelled:    true,
	}
	if !validStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}

	query := `
		UPDATE emergency_events
		SET status = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, eventID)
	if err != nil {
		return fmt.Errorf("failed to update emergency event status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEventNotFound
	}

	return nil
}

// AcknowledgeEmergencyEvent 确认紧急事件
func (r *EmergencyEventsRepository) AcknowledgeEmergencyEvent(ctx context.Context, eventID string) error {
	return r.UpdateEmergencyEventStatus(ctx, eventID, models.EmergencyStatusAcknowledged)
}

// ResolveEmergencyEvent 解除紧急事件
func (r *EmergencyEventsRepository) ResolveEmergencyEvent(ctx context.Context, eventID string) error {
	return r.UpdateEmergencyEventStatus(ctx, eventID, models.EmergencyStatusResolved)
}

// CancelEmergencyEvent 取消紧急事件（误报）
func (r *EmergencyEventsRepository) CancelEmergencyEvent(ctx context.Context, eventID string) error {
	return r.UpdateEmergencyEventStatus(ctx, eventID, models.EmergencyStatusCancelled)
}

// CountEmergencyEvents 统计紧急事件数量（按条件）
func (r *EmergencyEventsRepository) CountEmergencyEvents(ctx context.Context, filters EmergencyEventFilters) (int, error) {
	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM emergency_events
		%s
	`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count emergency events: %w", err)
	}
	return total, nil
}

// GetEmergencyEventsByPatient 获取患者的紧急事件列表
func (r *EmergencyEventsRepository) GetEmergencyEventsByPatient(ctx context.Context, patientID string, filters EmergencyEventFilters, page, size int) ([]*models.EmergencyEvent, int, error) {
	filters.PatientID = &patientID
	return r.ListEmergencyEvents(ctx, filters, page, size)
}

// buildWhereClause 构建 WHERE 子句
func (r *EmergencyEventsRepository) buildWhereClause(filters EmergencyEventFilters, args *[]interface{}, argN *int) []string {
	where := []string{}

	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("detected_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("detected_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}
	if filters.DeviceID != nil {
		where = append(where, fmt.Sprintf("device_id = $%d", *argN))
		*args = append(*args, *filters.DeviceID)
		*argN++
	}
	if filters.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", *argN))
		*args = append(*args, *filters.PatientID)
		*argN++
	}
	if filters.HospitalID != nil {
		where = append(where, fmt.Sprintf("hospital_id = $%d", *argN))
		*args = append(*args, *filters.HospitalID)
		*argN++
	}
	if filters.EventType != nil {
		where = append(where, fmt.Sprintf("event_type = $%d", *argN))
		*args = append(*args, *filters.EventType)
		*argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", *argN))
		*args = append(*args, *filters.Severity)
		*argN++
	}
	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, *filters.Status)
		*argN++
	}
	if len(filters.Statuses) > 0 {
		placeholders := make([]string, len(filters.Statuses))
		for i := range filters.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.Statuses[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	return where
}

// scanner 同时覆盖 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEmergencyEvent(row scanner) (*models.EmergencyEvent, error) {
	var event models.EmergencyEvent
	var hospitalID sql.NullString
	var vitalsData, analysisData []byte

	err := row.Scan(
		&event.EventID,
		&event.DeviceID,
		&event.PatientID,
		&hospitalID,
		&event.EventType,
		&event.Severity,
		&event.Status,
		&vitalsData,
		&event.Latitude,
		&event.Longitude,
		&event.DetectedAt,
		&analysisData,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if hospitalID.Valid {
		event.HospitalID = hospitalID.String
	}

	if len(vitalsData) > 0 {
		if err := json.Unmarshal(vitalsData, &event.Vitals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vitals: %w", err)
		}
	}
	if len(analysisData) > 0 {
		var analysis models.AnalysisResult
		if err := json.Unmarshal(analysisData, &analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		event.Analysis = &analysis
	}

	return &event, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
