package sink

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"regmap/internal/device"
	"regmap/internal/pkg"
	"regmap/internal/transport"
)

func init() {
	Register("prometheus", NewPrometheusSink)
}

// PrometheusInfo Prometheus 的专属配置
type PrometheusInfo struct {
	ScrapeTimeout time.Duration `mapstructure:"scrapeTimeout"` // 单次抓取读取整棵树的超时
}

var (
	valueDesc = prometheus.NewDesc(
		"regmap_variable_value",
		"Raw register value read at scrape time",
		[]string{"path", "mode"}, nil,
	)
	readErrorDesc = prometheus.NewDesc(
		"regmap_read_errors_total",
		"Register reads that failed at scrape time",
		[]string{"path"}, nil,
	)
)

// Collector 在每次抓取时读取设备树中的所有可读变量
type Collector struct {
	root    *device.Root
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	errors map[string]float64
}

// NewCollector 创建一个读取 root 的 Collector
func NewCollector(root *device.Root, timeout time.Duration, logger *zap.Logger) *Collector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Collector{root: root, timeout: timeout, logger: logger, errors: make(map[string]float64)}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- valueDesc
	ch <- readErrorDesc
}

// Collect 实现 prometheus.Collector, 并发抓取串行执行
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.root.Walk(func(v *device.Variable) error {
		if !v.Mode().CanRead() {
			return nil
		}
		value, err := c.root.ReadVariable(ctx, v)
		if err != nil {
			c.errors[v.Path()]++
			c.logger.Warn("抓取时读取变量失败", zap.String("path", v.Path()), zap.Error(err))
			return nil
		}
		ch <- prometheus.MustNewConstMetric(valueDesc, prometheus.GaugeValue, float64(value), v.Path(), v.Mode().String())
		return nil
	})
	for path, n := range c.errors {
		ch <- prometheus.MustNewConstMetric(readErrorDesc, prometheus.CounterValue, n, path)
	}
}

// PrometheusSink 通过私有 Registry 暴露寄存器值和导出计数
type PrometheusSink struct {
	registry *prometheus.Registry
	exported *prometheus.CounterVec
	logger   *zap.Logger
}

// NewPrometheusSink 构造函数, context 中有设备树时注册 Collector
func NewPrometheusSink(ctx context.Context, para map[string]any) (Template, error) {
	log := pkg.LoggerFromContext(ctx)
	var info PrometheusInfo
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &info,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(para); err != nil {
		return nil, fmt.Errorf("[NewPrometheusSink] Error decoding map to struct: %w", err)
	}

	registry := prometheus.NewRegistry()
	exported := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regmap_exported_points_total",
		Help: "Points published to the prometheus sink",
	}, []string{"device"})
	for _, c := range append(transport.Collectors(), exported) {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("注册 Prometheus 指标失败: %w", err)
		}
	}
	if root, ok := RootFromContext(ctx); ok {
		if err := registry.Register(NewCollector(root, info.ScrapeTimeout, log)); err != nil {
			return nil, fmt.Errorf("注册 Prometheus 指标失败: %w", err)
		}
	} else {
		log.Warn("context 中没有设备树, 只导出计数指标")
	}
	return &PrometheusSink{registry: registry, exported: exported, logger: log.With(zap.String("sink_type", "prometheus"))}, nil
}

func (p *PrometheusSink) Type() string { return "prometheus" }

// Publish 记录导出的数据点, 寄存器值在抓取时由 Collector 读取
func (p *PrometheusSink) Publish(point pkg.Point) error {
	p.exported.WithLabelValues(point.Device).Inc()
	p.logger.Debug("[PrometheusSink] 记录数据点", zap.String("device", point.Device))
	return nil
}

// Registry 返回私有 Registry
func (p *PrometheusSink) Registry() *prometheus.Registry { return p.registry }

// Handler 返回 /metrics 的 http.Handler
func (p *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusSink) Close() error { return nil }
