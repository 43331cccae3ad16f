package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"regmap/internal/admin/router"
	"regmap/internal/device"
	"regmap/internal/pkg"
	"regmap/internal/sink"
	"regmap/internal/surf/ethernet/udp"
	"regmap/internal/transport"
)

// BuildRoot 按配置在 tr 之上创建设备树, 未配置 engines 时挂载一个默认的 UdpEngineServer
func BuildRoot(ctx context.Context, tr transport.Transport) (*device.Root, error) {
	config := pkg.ConfigFromContext(ctx)
	root := device.NewRoot(tr, pkg.LoggerFromContext(ctx).With(zap.String("module", "Device")))
	engines := config.Engines
	if len(engines) == 0 {
		engines = []pkg.EngineConfig{{Name: udp.EngineServerName}}
	}
	for _, e := range engines {
		opts := []device.Option{device.WithOffset(e.Offset)}
		if e.Name != "" {
			opts = append(opts, device.WithName(e.Name))
		}
		dev, err := udp.NewEngineServer(opts...)
		if err != nil {
			return nil, err
		}
		if err := root.Add(dev); err != nil {
			return nil, fmt.Errorf("挂载 %s 失败: %w", dev.Name(), err)
		}
	}
	return root, nil
}

// NewRoot 按配置创建寄存器访问后端和设备树
func NewRoot(ctx context.Context) (*device.Root, error) {
	tr, err := transport.New(pkg.WithLoggerAndModule(ctx, pkg.LoggerFromContext(ctx), "Transport"))
	if err != nil {
		return nil, err
	}
	root, err := BuildRoot(ctx, tr)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	return root, nil
}

// Export 读取一次快照并发布到所有导出目标。
// 部分变量读取失败时仍会发布读到的值, 错误合并后返回
func Export(ctx context.Context, root *device.Root, sinks sink.Collection) error {
	points, readErr := root.Snapshot(ctx)
	pkg.LoggerFromContext(ctx).Debug("读取快照完成", zap.Int("points", len(points)), zap.Error(readErr))
	publishErr := sinks.Publish(points)
	return errors.Join(readErr, publishErr)
}

// Simulator 是模拟的 UDP 寄存器引擎: 内存后端加 UDP 服务端
type Simulator struct {
	Memory *transport.Memory
	Server *transport.Server
	Root   *device.Root
}

// NewSimulator 创建模拟引擎并写入预置值, 预置值绕过读写权限直接写入内存
func NewSimulator(ctx context.Context) (*Simulator, error) {
	config := pkg.ConfigFromContext(ctx)
	log := pkg.LoggerFromContext(ctx)
	mem := transport.NewMemory(config.Simulate.Size)
	root, err := BuildRoot(ctx, mem)
	if err != nil {
		return nil, err
	}
	for _, preset := range config.Simulate.Values {
		if err := poke(ctx, root, mem, preset); err != nil {
			return nil, err
		}
	}
	server, err := transport.NewServer(config.Simulate.Listen, mem, log.With(zap.String("module", "Server")))
	if err != nil {
		return nil, err
	}
	return &Simulator{Memory: mem, Server: server, Root: root}, nil
}

func poke(ctx context.Context, root *device.Root, mem *transport.Memory, preset pkg.PresetValue) error {
	v, err := root.FindVariable(preset.Path)
	if err != nil {
		return fmt.Errorf("预置值 %s: %w", preset.Path, err)
	}
	buf := make([]byte, v.ByteSize())
	if err := mem.Read(ctx, v.Address(), buf); err != nil {
		return err
	}
	if err := v.Encode(preset.Value, buf); err != nil {
		return fmt.Errorf("预置值 %s: %w", preset.Path, err)
	}
	mem.Poke(v.Address(), buf)
	return nil
}

// Start 在后台运行 UDP 服务端, 出错时上报到错误通道
func (s *Simulator) Start(ctx context.Context) {
	pkg.LoggerFromContext(ctx).Info("===模拟引擎已启动===", zap.String("addr", s.Server.Addr().String()))
	go func() {
		if err := s.Server.Serve(ctx); err != nil {
			pkg.ReportErr(ctx, fmt.Errorf("模拟引擎退出: %w", err))
		}
	}()
}

// StartAPI 按配置启动 HTTP 接口, ctx 取消时关闭。
// 启用了 prometheus 导出时挂载 /metrics
func StartAPI(ctx context.Context, root *device.Root, sinks sink.Collection) *http.Server {
	config := pkg.ConfigFromContext(ctx)
	log := pkg.LoggerFromContext(ctx)
	if !config.API.Enable {
		return nil
	}
	var metrics http.Handler
	if s, ok := sinks.Find("prometheus"); ok {
		metrics = s.(*sink.PrometheusSink).Handler()
	}
	srv := &http.Server{
		Addr:              config.API.Addr,
		Handler:           router.SetupRouter(root, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("===HTTP 接口已启动===", zap.String("addr", config.API.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pkg.ReportErr(ctx, fmt.Errorf("HTTP 接口退出: %w", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv
}
