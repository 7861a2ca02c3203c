package models

// ServiceHealth 外部分析服务健康状态
type ServiceHealth string

const (
	ServiceHealthOK          ServiceHealth = "ok"
	ServiceHealthDegraded    ServiceHealth = "degraded"
	ServiceHealthUnreachable ServiceHealth = "unreachable"
)

// AnalysisResult 外部AI分析结果（帧的可选注解）
// 缺失本身有含义：表示分析不可用，分类必须退化为仅启发式
type AnalysisResult struct {
	OverallStatus     string        `json:"overall_status"`
	EmergencyDetected bool          `json:"emergency_detected"`
	EmergencyType     string        `json:"emergency_type,omitempty"`
	Severity          string        `json:"severity,omitempty"`
	Confidence        float64       `json:"confidence"` // 0-1
	ServiceHealth     ServiceHealth `json:"service_health"`
}
