package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterVitalsRoutes 注册监测服务路由。validator 为 nil 时关闭鉴权
func (r *Router) RegisterVitalsRoutes(h *VitalsHandler, validator TokenValidator) {
	// 健康检查不鉴权
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Health(w, req)
	})

	r.Handle("/vitals/api/v1/devices/register", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.RegisterDevice(w, req)
	}))

	r.Handle("/vitals/api/v1/devices", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListDevices(w, req)
	}))

	// devices/{id}/deactivate | devices/{id}/realtime
	r.Handle("/vitals/api/v1/devices/", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/vitals/api/v1/devices/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		deviceID, action := parts[0], parts[1]

		switch action {
		case "deactivate":
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.DeactivateDevice(w, req, deviceID)
		case "realtime":
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.GetRealtime(w, req, deviceID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	r.Handle("/vitals/api/v1/telemetry/push", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.PushTelemetry(w, req)
	}))

	r.Handle("/vitals/api/v1/monitoring/start", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.StartMonitoring(w, req)
	}))

	r.Handle("/vitals/api/v1/monitoring/stop", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.StopMonitoring(w, req)
	}))

	r.Handle("/vitals/api/v1/monitoring/status", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.MonitoringStatus(w, req)
	}))

	r.Handle("/vitals/api/v1/events", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListEvents(w, req)
	}))

	// events/{id}/acknowledge | resolve | cancel
	r.Handle("/vitals/api/v1/events/", requireAuth(validator, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(req.URL.Path, "/vitals/api/v1/events/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.UpdateEventStatus(w, req, parts[0], parts[1])
	}))
}
