package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/repository"
	"medguard-alert/internal/service"
)

// AlertReportHeader 报警历史导出表头
var AlertReportHeader = []string{
	"Alert ID",
	"Room Number",
	"Alert Type",
	"Urgency Level",
	"Status",
	"Escalation Level",
	"Current Role",
	"Created By",
	"Created At",
	"Acknowledged By",
	"Acknowledged At",
	"Resolved By",
	"Resolved At",
}

// ReportHandler 报警历史报表 Handler
type ReportHandler struct {
	alertService *service.AlertService
	logger       *zap.Logger
}

// NewReportHandler 创建报表 Handler
func NewReportHandler(alertService *service.AlertService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		alertService: alertService,
		logger:       logger,
	}
}

// ExportAlerts 导出报警历史 Excel
func (h *ReportHandler) ExportAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filters := repository.AlertFilters{
		StartTime: parseTimeParam(strings.TrimSpace(q.Get("start_time"))),
		EndTime:   parseTimeParam(strings.TrimSpace(q.Get("end_time"))),
	}
	if status := strings.TrimSpace(q.Get("status")); status != "" {
		filters.Status = &status
	}

	// 导出上限 100 条（单页最大值）
	alerts, _, err := h.alertService.ListAlerts(ctx, hospitalID, filters, 1, 100)
	if err != nil {
		h.logger.Error("ExportAlerts failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	data, err := GenerateAlertReport(alerts)
	if err != nil {
		h.logger.Error("Failed to generate alert report", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to generate report"))
		return
	}

	filename := fmt.Sprintf("alerts_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(data)
}

// GenerateAlertReport 生成报警历史 Excel 文件
func GenerateAlertReport(alerts []*domain.Alert) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Alerts"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range AlertReportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{
		38, // Alert ID
		12, // Room Number
		18, // Alert Type
		14, // Urgency Level
		14, // Status
		16, // Escalation Level
		18, // Current Role
		38, // Created By
		22, // Created At
		38, // Acknowledged By
		22, // Acknowledged At
		38, // Resolved By
		22, // Resolved At
	}
	for i := range AlertReportHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据
	for rowIdx, alert := range alerts {
		row := rowIdx + 2
		values := []any{
			alert.AlertID,
			alert.RoomNumber,
			alert.AlertType,
			alert.UrgencyLevel,
			alert.Status,
			alert.EscalationLevel,
			alert.CurrentRole,
			alert.CreatedBy,
			alert.CreatedAt.UTC().Format(time.RFC3339),
			derefString(alert.AcknowledgedBy),
			formatTimePtr(alert.AcknowledgedAt),
			derefString(alert.ResolvedBy),
			formatTimePtr(alert.ResolvedAt),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	out, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return out.Bytes(), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
