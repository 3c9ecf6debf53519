package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"medguard-alert/internal/domain"
)

const testPolicyYAML = `
default_ladder: [nurse, charge_nurse, department_head, on_call_physician]
default_timeouts:
  1: 900
  2: 600
  3: 300
  4: 120
  5: 60
alert_types:
  cardiac_arrest:
    initial_role: charge_nurse
    ladder: [charge_nurse, on_call_physician]
    timeouts:
      5: 30
  fire:
    initial_role: nurse
`

func writeTestPolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "escalation_policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Success(t *testing.T) {
	path := writeTestPolicy(t, testPolicyYAML)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"nurse", "charge_nurse", "department_head", "on_call_physician"}, p.DefaultLadder)
	assert.Equal(t, "charge_nurse", p.InitialRole(domain.AlertTypeCardiacArrest))
	assert.Equal(t, "nurse", p.InitialRole(domain.AlertTypeFire))
	// 未配置的类型走默认阶梯
	assert.Equal(t, "nurse", p.InitialRole(domain.AlertTypeSecurity))
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/policy.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidAlertType(t *testing.T) {
	path := writeTestPolicy(t, `
alert_types:
  earthquake:
    initial_role: nurse
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown alert_type")
}

func TestLoad_InvalidUrgencyKey(t *testing.T) {
	path := writeTestPolicy(t, `
default_timeouts:
  9: 100
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestNextRole_Ladder(t *testing.T) {
	path := writeTestPolicy(t, testPolicyYAML)
	p, err := Load(path)
	require.NoError(t, err)

	// 默认阶梯逐级上升
	next, ok := p.NextRole(domain.AlertTypeSecurity, "nurse")
	require.True(t, ok)
	assert.Equal(t, "charge_nurse", next)

	next, ok = p.NextRole(domain.AlertTypeSecurity, "department_head")
	require.True(t, ok)
	assert.Equal(t, "on_call_physician", next)

	// 阶梯顶端
	_, ok = p.NextRole(domain.AlertTypeSecurity, "on_call_physician")
	assert.False(t, ok)

	// 类型专属阶梯
	next, ok = p.NextRole(domain.AlertTypeCardiacArrest, "charge_nurse")
	require.True(t, ok)
	assert.Equal(t, "on_call_physician", next)
}

func TestNextRole_UnknownCurrentRole(t *testing.T) {
	p := Default()

	// 策略热更新后当前角色可能不在阶梯上：从第二级重新开始
	next, ok := p.NextRole(domain.AlertTypeCodeBlue, "retired_role")
	require.True(t, ok)
	assert.Equal(t, domain.RoleChargeNurse, next)
}

func TestTimeout_Resolution(t *testing.T) {
	path := writeTestPolicy(t, testPolicyYAML)
	p, err := Load(path)
	require.NoError(t, err)

	// 类型专属超时优先
	assert.Equal(t, 30*time.Second, p.Timeout(domain.AlertTypeCardiacArrest, 5))
	// 类型未配置的紧急度回落到全局
	assert.Equal(t, 300*time.Second, p.Timeout(domain.AlertTypeCardiacArrest, 3))
	// 紧急度越界收敛到边界
	assert.Equal(t, 900*time.Second, p.Timeout(domain.AlertTypeFire, 0))
	assert.Equal(t, 60*time.Second, p.Timeout(domain.AlertTypeFire, 9))
}

func TestDefault_Builtin(t *testing.T) {
	p := Default()

	assert.Equal(t, domain.RoleNurse, p.InitialRole(domain.AlertTypeCodeBlue))
	assert.Equal(t, 60*time.Second, p.Timeout(domain.AlertTypeCodeBlue, 5))
}

func TestStore_Replace(t *testing.T) {
	store := NewStore(nil)
	assert.Equal(t, domain.RoleNurse, store.Current().InitialRole(domain.AlertTypeFire))

	path := writeTestPolicy(t, testPolicyYAML)
	p, err := Load(path)
	require.NoError(t, err)

	store.Replace(p)
	assert.Equal(t, "charge_nurse", store.Current().InitialRole(domain.AlertTypeCardiacArrest))

	// nil 替换被忽略
	store.Replace(nil)
	assert.NotNil(t, store.Current())
}
