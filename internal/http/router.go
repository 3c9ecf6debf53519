package httpapi

import (
	"net/http"

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

// HandleHandler 支持 http.Handler 接口（用于 WebSocket 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAlertRoutes 注册报警相关路由
func (r *Router) RegisterAlertRoutes(a *AlertHandler) {
	r.HandleHandler("/alert/api/v1/alerts", a)
	r.HandleHandler("/alert/api/v1/alerts/", a)

	r.Handle("/alert/api/v1/metrics/response-times", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		a.ResponseTimeMetrics(w, req)
	})
}

// RegisterAuditRoutes 注册审计日志路由
func (r *Router) RegisterAuditRoutes(a *AuditHandler) {
	r.Handle("/alert/api/v1/audit-logs", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		a.ListAuditLogs(w, req)
	})
}

// RegisterAdminRoutes 注册医院和医护人员管理路由
func (r *Router) RegisterAdminRoutes(h *HospitalHandler, u *UserHandler) {
	r.HandleHandler("/alert/api/v1/hospitals", h)
	r.HandleHandler("/alert/api/v1/hospitals/", h)

	r.HandleHandler("/alert/api/v1/healthcare-users", u)
	r.HandleHandler("/alert/api/v1/healthcare-users/", u)
}

// RegisterReportRoutes 注册报表导出路由
func (r *Router) RegisterReportRoutes(rep *ReportHandler) {
	r.Handle("/alert/api/v1/reports/alerts.xlsx", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rep.ExportAlerts(w, req)
	})
}
