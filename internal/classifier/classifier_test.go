package classifier

import (
	"testing"
	"time"

	"wisefido-vitals/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalFrame() models.TelemetryFrame {
	return models.TelemetryFrame{
		DeviceID:   "device-1",
		PatientID:  "patient-1",
		CapturedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Vitals: models.VitalSigns{
			HeartRate:   76.2,
			Temperature: 36.7,
		},
		Latitude:  21.1460,
		Longitude: 79.0880,
	}
}

func anomalousFrame() models.TelemetryFrame {
	frame := normalFrame()
	frame.Vitals.HeartRate = 152.0
	frame.HeuristicEmergency = true
	frame.HeuristicType = "tachycardia"
	return frame
}

func TestClassify_AnalysisPositiveWins(t *testing.T) {
	analysis := &models.AnalysisResult{
		OverallStatus:     "critical",
		EmergencyDetected: true,
		EmergencyType:     "cardiac_arrhythmia",
		Severity:          models.SeverityCritical,
		Confidence:        0.95,
	}

	// 即使本地启发式没有标记，分析的阳性结论也成立
	verdict := Classify(normalFrame(), analysis)

	assert.True(t, verdict.Emergency)
	assert.Equal(t, "cardiac_arrhythmia", verdict.EventType)
	assert.Equal(t, models.SeverityCritical, verdict.Severity)
	assert.Equal(t, SourceAnalysis, verdict.Source)
	assert.Same(t, analysis, verdict.Analysis)
}

func TestClassify_AnalysisNegativeDoesNotSuppressHeuristic(t *testing.T) {
	analysis := &models.AnalysisResult{
		OverallStatus:     "normal",
		EmergencyDetected: false,
		Confidence:        0.9,
	}

	// 分析判定非紧急但启发式为真：本地报警仍然触发（不漏报）
	verdict := Classify(anomalousFrame(), analysis)

	assert.True(t, verdict.Emergency)
	assert.Equal(t, "tachycardia", verdict.EventType)
	assert.Equal(t, models.SeverityHigh, verdict.Severity)
	assert.Equal(t, SourceHeuristic, verdict.Source)
	// 阴性的分析结果不是事件来源，不附在判定上
	assert.Nil(t, verdict.Analysis)

	// 启发式为假时分析的阴性结论直接生效
	verdict = Classify(normalFrame(), analysis)
	assert.False(t, verdict.Emergency)
}

func TestClassify_HeuristicFallbackWhenAnalysisAbsent(t *testing.T) {
	verdict := Classify(anomalousFrame(), nil)

	assert.True(t, verdict.Emergency)
	assert.Equal(t, "tachycardia", verdict.EventType)
	// 启发式判定的级别固定为 high
	assert.Equal(t, models.SeverityHigh, verdict.Severity)
	assert.Equal(t, SourceHeuristic, verdict.Source)
	assert.Nil(t, verdict.Analysis)
}

func TestClassify_NegativeWhenNothingDetected(t *testing.T) {
	verdict := Classify(normalFrame(), nil)

	assert.False(t, verdict.Emergency)
	assert.Empty(t, verdict.EventType)
	assert.Empty(t, verdict.Severity)
}

func TestClassify_AnalysisPositiveWithoutTypeOrSeverity(t *testing.T) {
	analysis := &models.AnalysisResult{
		EmergencyDetected: true,
	}

	verdict := Classify(anomalousFrame(), analysis)

	assert.True(t, verdict.Emergency)
	// 缺类型时退回启发式类型，缺级别时默认 high
	assert.Equal(t, "tachycardia", verdict.EventType)
	assert.Equal(t, models.SeverityHigh, verdict.Severity)

	// 启发式也没有类型时兜底为 unspecified
	verdict = Classify(normalFrame(), analysis)
	assert.Equal(t, "unspecified", verdict.EventType)
}

func TestBuildEmergencyEvent(t *testing.T) {
	frame := anomalousFrame()
	analysis := &models.AnalysisResult{
		EmergencyDetected: true,
		EmergencyType:     "cardiac_arrhythmia",
		Severity:          models.SeverityCritical,
	}
	verdict := Classify(frame, analysis)

	event := BuildEmergencyEvent(frame, "hospital-1", verdict)

	require.NotEmpty(t, event.EventID)
	assert.Equal(t, "device-1", event.DeviceID)
	assert.Equal(t, "patient-1", event.PatientID)
	assert.Equal(t, "hospital-1", event.HospitalID)
	assert.Equal(t, "cardiac_arrhythmia", event.EventType)
	assert.Equal(t, models.SeverityCritical, event.Severity)
	assert.Equal(t, models.EmergencyStatusDetected, event.Status)
	// 事件携带检测时刻的快照
	assert.Equal(t, frame.Vitals, event.Vitals)
	assert.Equal(t, frame.Latitude, event.Latitude)
	assert.Equal(t, frame.CapturedAt, event.DetectedAt)
	assert.Same(t, analysis, event.Analysis)
	assert.False(t, event.CreatedAt.IsZero())

	// 每次构建生成唯一的事件ID
	another := BuildEmergencyEvent(frame, "hospital-1", verdict)
	assert.NotEqual(t, event.EventID, another.EventID)
}
