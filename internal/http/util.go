package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// parseTimeParam 解析 RFC3339 时间查询参数；为空或非法返回 nil
func parseTimeParam(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// hospitalIDFromReq 从请求头提取医院ID（所有数据按 hospital_id 隔离）
// 缺失时写入错误响应并返回 false
func hospitalIDFromReq(w http.ResponseWriter, r *http.Request) (string, bool) {
	hospitalID := r.Header.Get("X-Hospital-Id")
	if hospitalID == "" {
		writeJSON(w, http.StatusOK, Fail("hospital ID is required"))
		return "", false
	}
	return hospitalID, true
}
