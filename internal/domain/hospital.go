package domain

import (
	"encoding/json"
	"time"
)

// Hospital 医院领域模型（对应 hospitals 表）
// 根租户实体：所有报警数据按 hospital_id 隔离
type Hospital struct {
	// 主键
	HospitalID string `json:"hospital_id" db:"hospital_id"` // UUID, PRIMARY KEY

	// 基本信息
	Name    string `json:"name" db:"name"`       // VARCHAR(255), NOT NULL
	Address string `json:"address" db:"address"` // TEXT, nullable

	// 扩展配置
	ContactInfo json.RawMessage `json:"contact_info" db:"contact_info"` // JSONB
	Settings    json.RawMessage `json:"settings" db:"settings"`         // JSONB

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
