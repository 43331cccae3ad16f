package sink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"regmap/internal/device"
	"regmap/internal/pkg"
	"regmap/internal/surf/ethernet/udp"
	"regmap/internal/transport"
)

type mockToken struct {
	err  error
	done chan struct{}
}

func newMockToken(err error) *mockToken {
	t := &mockToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{}          { return t.done }
func (t *mockToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type mockClient struct {
	connected    bool
	disconnected bool
	publishErr   error
	messages     []published
}

func (c *mockClient) Connect() mqtt.Token {
	c.connected = true
	return newMockToken(nil)
}

func (c *mockClient) Disconnect(uint) {
	c.connected = false
	c.disconnected = true
}

func (c *mockClient) IsConnected() bool { return c.connected }

func (c *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newMockToken(c.publishErr)
}

func testPoint() pkg.Point {
	return pkg.Point{
		Device: "Root.UdpEngineServer",
		Field:  map[string]uint64{"ServerRemotePort": 8080, "ServerRemoteIp": 0xc0a8020a},
		Ts:     time.Unix(1700000000, 0),
	}
}

func TestDecodeMqttInfo(t *testing.T) {
	info, err := decodeMqttInfo(map[string]any{
		"broker":         "localhost",
		"topic":          "regmap/",
		"qos":            "1",
		"publishTimeout": "500ms",
	})
	require.NoError(t, err)
	assert.Equal(t, 1883, info.Port)
	assert.Equal(t, byte(1), info.QoS)
	assert.Equal(t, 500*time.Millisecond, info.PublishTimeout)
	assert.True(t, strings.HasPrefix(info.ClientID, "regmap-"))

	_, err = decodeMqttInfo(map[string]any{"topic": "regmap"})
	assert.ErrorContains(t, err, "broker")
	_, err = decodeMqttInfo(map[string]any{"broker": "localhost"})
	assert.ErrorContains(t, err, "topic")
}

func TestMqttSink_Publish(t *testing.T) {
	client := &mockClient{connected: true}
	info, err := decodeMqttInfo(map[string]any{"broker": "localhost", "topic": "regmap/", "qos": 1})
	require.NoError(t, err)
	s := newMqttSink(client, info, zap.NewNop())

	require.NoError(t, s.Publish(testPoint()))
	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "regmap/Root/UdpEngineServer", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var payload mqttPayload
	require.NoError(t, json.Unmarshal(msg.payload, &payload))
	assert.Equal(t, "Root.UdpEngineServer", payload.Device)
	assert.Equal(t, uint64(8080), payload.Fields["ServerRemotePort"])
	assert.Equal(t, time.Unix(1700000000, 0).UnixNano(), payload.Ts)

	client.publishErr = errors.New("not connected")
	assert.ErrorContains(t, s.Publish(testPoint()), "not connected")

	require.NoError(t, s.Close())
	assert.True(t, client.disconnected)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := pkg.WithLogger(context.Background(), zap.New(core))
	s, err := NewLogSink(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "log", s.Type())

	require.NoError(t, s.Publish(testPoint()))
	entries := logs.FilterMessage("导出数据点").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Root.UdpEngineServer", entries[0].ContextMap()["device"])
	assert.NoError(t, s.Close())
}

func newEngineRoot(t *testing.T, size uint64) (*device.Root, *transport.Memory) {
	t.Helper()
	mem := transport.NewMemory(size)
	root := device.NewRoot(mem, zap.NewNop())
	dev, err := udp.NewEngineServer()
	require.NoError(t, err)
	require.NoError(t, root.Add(dev))
	return root, mem
}

func TestPrometheusSink(t *testing.T) {
	root, mem := newEngineRoot(t, 0)
	mem.Poke(0x00, []byte{0x1f, 0x90})
	mem.Poke(0x04, []byte{0, 0, 0, 5})

	ctx := WithRoot(context.Background(), root)
	s, err := NewPrometheusSink(ctx, map[string]any{"scrapeTimeout": "1s"})
	require.NoError(t, err)
	promSink := s.(*PrometheusSink)

	expected := `
# HELP regmap_variable_value Raw register value read at scrape time
# TYPE regmap_variable_value gauge
regmap_variable_value{mode="RO",path="Root.UdpEngineServer.ServerRemoteIp"} 5
regmap_variable_value{mode="RO",path="Root.UdpEngineServer.ServerRemotePort"} 8080
`
	require.NoError(t, testutil.GatherAndCompare(promSink.Registry(), strings.NewReader(expected), "regmap_variable_value"))

	require.NoError(t, promSink.Publish(testPoint()))
	require.NoError(t, promSink.Publish(testPoint()))
	assert.Equal(t, float64(2), testutil.ToFloat64(promSink.exported.WithLabelValues("Root.UdpEngineServer")))
}

func TestCollector_ReadErrors(t *testing.T) {
	// 地址空间只覆盖端口寄存器
	root, mem := newEngineRoot(t, 0x02)
	mem.Poke(0x00, []byte{0x00, 0x50})
	c := NewCollector(root, time.Second, zap.NewNop())

	expected := `
# HELP regmap_read_errors_total Register reads that failed at scrape time
# TYPE regmap_read_errors_total counter
regmap_read_errors_total{path="Root.UdpEngineServer.ServerRemoteIp"} 1
# HELP regmap_variable_value Raw register value read at scrape time
# TYPE regmap_variable_value gauge
regmap_variable_value{mode="RO",path="Root.UdpEngineServer.ServerRemotePort"} 80
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "regmap_read_errors_total", "regmap_variable_value"))
}

func TestNew(t *testing.T) {
	config := &pkg.Config{Sinks: []pkg.SinkConfig{
		{Type: "log", Enable: true},
		{Type: "prometheus", Enable: true},
		{Type: "mqtt", Enable: false},
	}}
	ctx := pkg.WithConfig(context.Background(), config)
	collection, err := New(ctx)
	require.NoError(t, err)
	require.Len(t, collection, 2)

	_, ok := collection.Find("prometheus")
	assert.True(t, ok)
	_, ok = collection.Find("mqtt")
	assert.False(t, ok)

	assert.NoError(t, collection.Publish([]pkg.Point{testPoint()}))
	assert.NoError(t, collection.Close())

	config.Sinks = append(config.Sinks, pkg.SinkConfig{Type: "kafka", Enable: true})
	_, err = New(ctx)
	assert.ErrorContains(t, err, "kafka")
}
