package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"medguard-alert/internal/config"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/repository"
)

// 通知事件类型（报警生命周期）
const (
	EventAlertCreated      = "alert_created"
	EventAlertEscalated    = "alert_escalated"
	EventAlertAcknowledged = "alert_acknowledged"
	EventAlertResolved     = "alert_resolved"
)

// Recipient 通知接收人（值班的目标角色人员）
type Recipient struct {
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Department *string `json:"department,omitempty"`
}

// Event 通知事件载荷（三条通道共用）
type Event struct {
	Event      string        `json:"event"`
	HospitalID string        `json:"hospital_id"`
	Alert      *domain.Alert `json:"alert"`
	TargetRole string        `json:"target_role,omitempty"`
	Recipients []Recipient   `json:"recipients"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// MQTTPublisher MQTT 发布接口（未启用时为 nil）
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Dispatcher 通知分发器
// 扇出到 Redis Stream、MQTT、Webhook；任一通道失败只记录日志，
// 不影响报警状态转换（转换已在事务内提交）
type Dispatcher struct {
	config      *config.Config
	redisClient *redis.Client
	mqttClient  MQTTPublisher
	webhook     *WebhookClient
	usersRepo   repository.HealthcareUsersRepository
	logger      *zap.Logger
}

// NewDispatcher 创建通知分发器
// mqttClient 和 webhook 可为 nil（对应通道关闭）
func NewDispatcher(
	cfg *config.Config,
	redisClient *redis.Client,
	mqttClient MQTTPublisher,
	webhook *WebhookClient,
	usersRepo repository.HealthcareUsersRepository,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		config:      cfg,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		webhook:     webhook,
		usersRepo:   usersRepo,
		logger:      logger,
	}
}

// Dispatch 分发一次生命周期事件
// targetRole 为当前责任角色；接收人解析失败不阻塞分发（Recipients 为空）
func (d *Dispatcher) Dispatch(ctx context.Context, event string, alert *domain.Alert, targetRole string) {
	if alert == nil {
		return
	}

	payload := Event{
		Event:      event,
		HospitalID: alert.HospitalID,
		Alert:      alert,
		TargetRole: targetRole,
		Recipients: d.resolveRecipients(ctx, alert.HospitalID, targetRole),
		OccurredAt: time.Now(),
	}

	if err := d.publishToStream(ctx, &payload); err != nil {
		d.logger.Error("Failed to publish notification to stream",
			zap.String("event", event),
			zap.String("alert_id", alert.AlertID),
			zap.Error(err),
		)
	}

	if err := d.publishToMQTT(&payload); err != nil {
		d.logger.Error("Failed to publish notification to MQTT",
			zap.String("event", event),
			zap.String("alert_id", alert.AlertID),
			zap.Error(err),
		)
	}

	if d.webhook != nil {
		if err := d.webhook.Deliver(ctx, &payload); err != nil {
			d.logger.Error("Failed to deliver webhook notification",
				zap.String("event", event),
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
		}
	}

	d.logger.Info("Notification dispatched",
		zap.String("event", event),
		zap.String("alert_id", alert.AlertID),
		zap.String("hospital_id", alert.HospitalID),
		zap.String("target_role", targetRole),
		zap.Int("recipient_count", len(payload.Recipients)),
	)
}

// resolveRecipients 解析目标角色的值班人员
func (d *Dispatcher) resolveRecipients(ctx context.Context, hospitalID, targetRole string) []Recipient {
	if targetRole == "" {
		return []Recipient{}
	}

	users, err := d.usersRepo.ListOnDutyByRole(ctx, hospitalID, targetRole)
	if err != nil {
		d.logger.Warn("Failed to resolve on-duty recipients",
			zap.String("hospital_id", hospitalID),
			zap.String("role", targetRole),
			zap.Error(err),
		)
		return []Recipient{}
	}

	recipients := make([]Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, Recipient{
			UserID:     u.UserID,
			Name:       u.Name,
			Role:       u.Role,
			Department: u.Department,
		})
	}
	return recipients
}

// publishToStream 发布到 Redis Stream（XADD）
func (d *Dispatcher) publishToStream(ctx context.Context, payload *Event) error {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = d.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: d.config.Notify.Stream,
		Values: map[string]interface{}{
			"event":       payload.Event,
			"hospital_id": payload.HospitalID,
			"alert_id":    payload.Alert.AlertID,
			"data":        string(jsonBytes),
			"timestamp":   payload.OccurredAt.Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to XADD notification: %w", err)
	}

	return nil
}

// publishToMQTT 发布到 MQTT（病房显示屏/移动端推送桥接）
// 主题：{prefix}{hospital_id}/alerts
func (d *Dispatcher) publishToMQTT(payload *Event) error {
	if d.mqttClient == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := fmt.Sprintf("%s%s/alerts", d.config.Notify.TopicPrefix, payload.HospitalID)
	if err := d.mqttClient.Publish(topic, d.config.MQTT.QoS, false, jsonBytes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}
