package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"regmap/internal/pkg"
)

func init() {
	Register("mqtt", NewMqttSink)
}

// MQTTClientInterface 定义了我们需要的 MQTT 客户端方法
type MQTTClientInterface interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MqttInfo MQTT 的专属配置
type MqttInfo struct {
	Broker         string        `mapstructure:"broker"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ClientID       string        `mapstructure:"clientID"`
	Topic          string        `mapstructure:"topic"` // 基础 topic
	QoS            byte          `mapstructure:"qos"`
	Retained       bool          `mapstructure:"retained"`
	KeepAliveSec   uint          `mapstructure:"keepAliveSec"`
	PublishTimeout time.Duration `mapstructure:"publishTimeout"`
}

// MqttSink 将数据点以 JSON 发布到 MQTT
type MqttSink struct {
	client MQTTClientInterface
	info   MqttInfo
	logger *zap.Logger
}

// mqttPayload 是发布到 broker 的消息体
type mqttPayload struct {
	Device string            `json:"device"`
	Fields map[string]uint64 `json:"fields"`
	Ts     int64             `json:"ts"`
}

func decodeMqttInfo(para map[string]any) (MqttInfo, error) {
	var info MqttInfo
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &info,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return info, err
	}
	if err := decoder.Decode(para); err != nil {
		return info, fmt.Errorf("failed to decode MQTT config: %w", err)
	}
	if info.Broker == "" {
		return info, fmt.Errorf("mqtt config validation failed: 'broker' is required")
	}
	if info.Topic == "" {
		return info, fmt.Errorf("mqtt config validation failed: 'topic' is required")
	}
	if info.Port == 0 {
		info.Port = 1883
	}
	if info.ClientID == "" {
		info.ClientID = "regmap-" + uuid.NewString()
	}
	if info.KeepAliveSec == 0 {
		info.KeepAliveSec = 60
	}
	if info.PublishTimeout == 0 {
		info.PublishTimeout = 2 * time.Second
	}
	return info, nil
}

// NewMqttSink 连接 broker 并创建 MQTT 导出
func NewMqttSink(ctx context.Context, para map[string]any) (Template, error) {
	log := pkg.LoggerFromContext(ctx)
	info, err := decodeMqttInfo(para)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", info.Broker, info.Port))
	opts.SetClientID(info.ClientID)
	opts.SetUsername(info.Username)
	opts.SetPassword(info.Password)
	opts.SetKeepAlive(time.Duration(info.KeepAliveSec) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.OnConnect = func(client mqtt.Client) {
		log.Info("MQTT connected", zap.String("broker", info.Broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Error("MQTT connection lost", zap.Error(err), zap.String("broker", info.Broker))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connection failed for %s: %w", info.Broker, token.Error())
	}
	return newMqttSink(client, info, log), nil
}

func newMqttSink(client MQTTClientInterface, info MqttInfo, log *zap.Logger) *MqttSink {
	return &MqttSink{
		client: client,
		info:   info,
		logger: log.With(zap.String("sink_type", "mqtt"), zap.String("broker", info.Broker), zap.String("base_topic", info.Topic)),
	}
}

func (m *MqttSink) Type() string { return "mqtt" }

// Topic 返回设备对应的 topic, 设备路径中的 . 替换为 /
func (m *MqttSink) Topic(device string) string {
	return strings.TrimSuffix(m.info.Topic, "/") + "/" + strings.ReplaceAll(device, ".", "/")
}

// Publish 发布一个数据点并等待 broker 确认
func (m *MqttSink) Publish(point pkg.Point) error {
	topic := m.Topic(point.Device)
	jsonData, err := json.Marshal(mqttPayload{Device: point.Device, Fields: point.Field, Ts: point.Ts.UnixNano()})
	if err != nil {
		return fmt.Errorf("序列化 JSON 失败: %w", err)
	}
	token := m.client.Publish(topic, m.info.QoS, m.info.Retained, jsonData)
	if !token.WaitTimeout(m.info.PublishTimeout) {
		return fmt.Errorf("发布到 %s 超时", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("发布到 %s 失败: %w", topic, err)
	}
	m.logger.Debug("Message published", zap.String("topic", topic), zap.Int("payload_size", len(jsonData)))
	return nil
}

// Close 断开与 broker 的连接
func (m *MqttSink) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}
