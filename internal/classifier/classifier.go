package classifier

import (
	"wisefido-vitals/internal/models"
)

// 判定来源
const (
	SourceAnalysis  = "analysis"
	SourceHeuristic = "heuristic"
)

// Verdict 分类结果。Emergency 为 false 时其余字段为空
type Verdict struct {
	Emergency bool
	EventType string
	Severity  string
	// Source 标记判定依据：AI分析或本地启发式
	Source string
	// Analysis 触发判定的分析结果（仅启发式判定时为空）
	Analysis *models.AnalysisResult
}

// Classify 对一帧遥测数据做紧急判定（纯函数，无副作用）
//
// 决策表（按优先级）：
//  1. 分析存在且判定紧急 → 阳性，采用分析给出的类型和级别
//  2. 否则启发式为真 → 阳性，采用启发式类型，级别固定为 high
//     （本地报警不会被分析的阴性结论压掉，宁可误报也不漏报）
//  3. 否则 → 阴性
func Classify(frame models.TelemetryFrame, analysis *models.AnalysisResult) Verdict {
	if analysis != nil && analysis.EmergencyDetected {
		eventType := analysis.EmergencyType
		if eventType == "" {
			// 分析判定紧急但没给类型时退回启发式类型
			eventType = frame.HeuristicType
			if eventType == "" {
				eventType = "unspecified"
			}
		}
		severity := analysis.Severity
		if severity == "" {
			severity = models.SeverityHigh
		}

		return Verdict{
			Emergency: true,
			EventType: eventType,
			Severity:  severity,
			Source:    SourceAnalysis,
			Analysis:  analysis,
		}
	}

	if frame.HeuristicEmergency {
		return Verdict{
			Emergency: true,
			EventType: frame.HeuristicType,
			Severity:  models.SeverityHigh,
			Source:    SourceHeuristic,
		}
	}

	return Verdict{}
}
