package policy

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"medguard-alert/internal/domain"
)

// TypePolicy 单个报警类型的升级策略（缺省字段回落到全局配置）
type TypePolicy struct {
	InitialRole string      `yaml:"initial_role"`
	Ladder      []string    `yaml:"ladder"`
	Timeouts    map[int]int `yaml:"timeouts"` // urgency_level → 超时（秒）
}

// Policy 升级策略（来自 YAML 策略文件）
type Policy struct {
	DefaultLadder   []string              `yaml:"default_ladder"`
	DefaultTimeouts map[int]int           `yaml:"default_timeouts"` // urgency_level → 超时（秒）
	AlertTypes      map[string]TypePolicy `yaml:"alert_types"`
}

// 内置默认策略：策略文件缺失字段时的兜底
var builtinLadder = []string{
	domain.RoleNurse,
	domain.RoleChargeNurse,
	domain.RoleDepartmentHead,
	domain.RoleOnCallPhysician,
}

var builtinTimeouts = map[int]int{
	1: 900, // 15分钟
	2: 600,
	3: 300,
	4: 120,
	5: 60, // 最高紧急度 1分钟
}

// Load 从文件加载并校验策略
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	p.applyDefaults()
	return &p, nil
}

// Default 返回内置默认策略（策略文件不存在时使用）
func Default() *Policy {
	p := &Policy{}
	p.applyDefaults()
	return p
}

func (p *Policy) validate() error {
	if len(p.DefaultLadder) == 1 {
		return fmt.Errorf("default_ladder must have at least 2 roles")
	}
	for urgency := range p.DefaultTimeouts {
		if urgency < 1 || urgency > 5 {
			return fmt.Errorf("default_timeouts key out of range [1,5]: %d", urgency)
		}
	}
	for alertType, tp := range p.AlertTypes {
		if !domain.ValidAlertTypes[alertType] {
			return fmt.Errorf("unknown alert_type in policy: %s", alertType)
		}
		if len(tp.Ladder) == 1 {
			return fmt.Errorf("ladder for %s must have at least 2 roles", alertType)
		}
		for urgency := range tp.Timeouts {
			if urgency < 1 || urgency > 5 {
				return fmt.Errorf("timeouts key for %s out of range [1,5]: %d", alertType, urgency)
			}
		}
	}
	return nil
}

func (p *Policy) applyDefaults() {
	if len(p.DefaultLadder) == 0 {
		p.DefaultLadder = builtinLadder
	}
	if p.DefaultTimeouts == nil {
		p.DefaultTimeouts = map[int]int{}
	}
	for urgency, seconds := range builtinTimeouts {
		if _, ok := p.DefaultTimeouts[urgency]; !ok {
			p.DefaultTimeouts[urgency] = seconds
		}
	}
}

// ladderFor 返回报警类型的升级阶梯
func (p *Policy) ladderFor(alertType string) []string {
	if tp, ok := p.AlertTypes[alertType]; ok && len(tp.Ladder) > 0 {
		return tp.Ladder
	}
	return p.DefaultLadder
}

// InitialRole 报警创建时的初始责任角色
func (p *Policy) InitialRole(alertType string) string {
	if tp, ok := p.AlertTypes[alertType]; ok && tp.InitialRole != "" {
		return tp.InitialRole
	}
	return p.ladderFor(alertType)[0]
}

// NextRole 当前角色的下一级；已在阶梯顶端返回 ("", false)
func (p *Policy) NextRole(alertType, currentRole string) (string, bool) {
	ladder := p.ladderFor(alertType)
	for i, role := range ladder {
		if role == currentRole {
			if i+1 < len(ladder) {
				return ladder[i+1], true
			}
			return "", false
		}
	}
	// 当前角色不在阶梯上（策略热更新后可能发生）：从阶梯第二级重新开始
	if len(ladder) > 1 {
		return ladder[1], true
	}
	return "", false
}

// Timeout 确认超时时长（按报警类型和紧急度）
func (p *Policy) Timeout(alertType string, urgencyLevel int) time.Duration {
	if urgencyLevel < 1 {
		urgencyLevel = 1
	}
	if urgencyLevel > 5 {
		urgencyLevel = 5
	}

	if tp, ok := p.AlertTypes[alertType]; ok {
		if seconds, ok := tp.Timeouts[urgencyLevel]; ok {
			return time.Duration(seconds) * time.Second
		}
	}
	if seconds, ok := p.DefaultTimeouts[urgencyLevel]; ok {
		return time.Duration(seconds) * time.Second
	}
	return time.Duration(builtinTimeouts[urgencyLevel]) * time.Second
}

// Store 策略快照容器（热加载时整体替换，读取无锁争用）
type Store struct {
	mu     sync.RWMutex
	policy *Policy
}

// NewStore 创建策略容器
func NewStore(p *Policy) *Store {
	if p == nil {
		p = Default()
	}
	return &Store{policy: p}
}

// Current 获取当前策略快照
func (s *Store) Current() *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Replace 替换策略（热加载）
func (s *Store) Replace(p *Policy) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}
