package analysis

import (
	"context"
	"time"

	"wisefido-vitals/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// analyzeRequest 发送给外部AI分析服务的请求体
type analyzeRequest struct {
	PatientID              string  `json:"patientId"`
	DeviceID               string  `json:"deviceId"`
	HeartRate              float64 `json:"heartRate"`
	BloodPressureSystolic  float64 `json:"bloodPressureSystolic"`
	BloodPressureDiastolic float64 `json:"bloodPressureDiastolic"`
	Temperature            float64 `json:"temperature"`
	OxygenSaturation       float64 `json:"oxygenSaturation"`
	RespiratoryRate        float64 `json:"respiratoryRate"`
	HeuristicEmergency     bool    `json:"heuristicEmergency"`
	HeuristicType          string  `json:"heuristicType,omitempty"`
}

// analyzeResponse 外部AI分析服务的响应体
type analyzeResponse struct {
	Success  bool `json:"success"`
	Analysis struct {
		OverallStatus     string  `json:"overall_status"`
		EmergencyDetected bool    `json:"emergency_detected"`
		EmergencyType     string  `json:"emergency_type"`
		Severity          string  `json:"severity"`
		Confidence        float64 `json:"confidence"`
	} `json:"analysis"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Client 外部AI分析服务客户端
// 约定：单次调用由固定超时限定；超时、非2xx、传输失败都返回"缺失"而不是错误——
// 调用方必须把缺失当作"分析不可用"处理，退化为仅启发式分类。
// 单帧分析内不做重试：下一帧马上就到，过期的重试结果没有价值（新鲜度优先于完整性）
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建分析服务客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Analyze 对一帧遥测数据发起分析。任何失败都返回 nil（缺失）
func (c *Client) Analyze(ctx context.Context, frame models.TelemetryFrame) *models.AnalysisResult {
	request := analyzeRequest{
		PatientID:              frame.PatientID,
		DeviceID:               frame.DeviceID,
		HeartRate:              frame.Vitals.HeartRate,
		BloodPressureSystolic:  frame.Vitals.BloodPressureSystolic,
		BloodPressureDiastolic: frame.Vitals.BloodPressureDiastolic,
		Temperature:            frame.Vitals.Temperature,
		OxygenSaturation:       frame.Vitals.OxygenSaturation,
		RespiratoryRate:        frame.Vitals.RespiratoryRate,
		HeuristicEmergency:     frame.HeuristicEmergency,
		HeuristicType:          frame.HeuristicType,
	}

	var response analyzeResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/analyze/health-data")

	if err != nil {
		// 超时或传输失败：分析缺失，不向上抛错
		c.logger.Warn("Analysis service unreachable",
			zap.String("device_id", frame.DeviceID),
			zap.Error(err),
		)
		return nil
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		c.logger.Warn("Analysis service returned non-2xx",
			zap.String("device_id", frame.DeviceID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil
	}

	if !response.Success {
		// 响应不符合约定，同样视为缺失
		c.logger.Warn("Analysis service returned unsuccessful response",
			zap.String("device_id", frame.DeviceID),
		)
		return nil
	}

	return &models.AnalysisResult{
		OverallStatus:     response.Analysis.OverallStatus,
		EmergencyDetected: response.Analysis.EmergencyDetected,
		EmergencyType:     response.Analysis.EmergencyType,
		Severity:          response.Analysis.Severity,
		Confidence:        response.Analysis.Confidence,
		ServiceHealth:     models.ServiceHealthOK,
	}
}

// CheckHealth 独立的健康探测（用于启动检查和可观测性，不在每帧的热路径上）
func (c *Client) CheckHealth(ctx context.Context) models.ServiceHealth {
	var response healthResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/health")

	if err != nil {
		return models.ServiceHealthUnreachable
	}
	if resp.StatusCode() != 200 || response.Status != "healthy" {
		return models.ServiceHealthDegraded
	}
	return models.ServiceHealthOK
}
