package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"regmap/internal/pkg"
	"regmap/internal/transport"
)

// Root 是设备树的根, 持有寄存器访问后端
type Root struct {
	*Device
	transport transport.Transport
	logger    *zap.Logger
}

// NewRoot 创建设备树的根, 名称默认为 "Root"
func NewRoot(tr transport.Transport, logger *zap.Logger, opts ...Option) *Root {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]Option{WithName("Root")}, opts...)
	return &Root{
		Device:    New(opts...),
		transport: tr,
		logger:    logger,
	}
}

// Transport 返回寄存器访问后端
func (r *Root) Transport() transport.Transport { return r.transport }

// Close 关闭寄存器访问后端
func (r *Root) Close() error {
	if r.transport == nil {
		return nil
	}
	return r.transport.Close()
}

// Read 按路径读取一个变量
func (r *Root) Read(ctx context.Context, path string) (uint64, error) {
	v, err := r.FindVariable(path)
	if err != nil {
		return 0, err
	}
	return r.ReadVariable(ctx, v)
}

// ReadVariable 对变量发起一次读事务并解码
func (r *Root) ReadVariable(ctx context.Context, v *Variable) (uint64, error) {
	if err := r.owns(v); err != nil {
		return 0, err
	}
	if !v.Mode().CanRead() {
		return 0, fmt.Errorf("%w: %s", ErrWriteOnly, v.Path())
	}
	buf := make([]byte, v.ByteSize())
	if err := r.transport.Read(ctx, v.Address(), buf); err != nil {
		return 0, fmt.Errorf("读取变量 %s 失败: %w", v.Path(), err)
	}
	value, err := v.Decode(buf)
	if err != nil {
		return 0, err
	}
	r.logger.Debug("读取变量",
		zap.String("path", v.Path()), zap.Uint64("addr", v.Address()), zap.Uint64("value", value))
	return value, nil
}

// Write 按路径写入一个变量
func (r *Root) Write(ctx context.Context, path string, value uint64) error {
	v, err := r.FindVariable(path)
	if err != nil {
		return err
	}
	return r.WriteVariable(ctx, v, value)
}

// WriteVariable 写入变量, RW 变量做读-改-写以保留相邻位, 只读变量拒绝写入
func (r *Root) WriteVariable(ctx context.Context, v *Variable, value uint64) error {
	if err := r.owns(v); err != nil {
		return err
	}
	if !v.Mode().CanWrite() {
		return fmt.Errorf("%w: %s", ErrReadOnly, v.Path())
	}
	buf := make([]byte, v.ByteSize())
	if v.Mode().CanRead() {
		if err := r.transport.Read(ctx, v.Address(), buf); err != nil {
			return fmt.Errorf("读取变量 %s 失败: %w", v.Path(), err)
		}
	}
	if err := v.Encode(value, buf); err != nil {
		return err
	}
	if err := r.transport.Write(ctx, v.Address(), buf); err != nil {
		return fmt.Errorf("写入变量 %s 失败: %w", v.Path(), err)
	}
	r.logger.Debug("写入变量",
		zap.String("path", v.Path()), zap.Uint64("addr", v.Address()), zap.Uint64("value", value))
	return nil
}

// ReadAll 读取所有可读变量, 返回路径到值的映射。
// 单个变量失败不影响其他变量, 所有错误合并后返回
func (r *Root) ReadAll(ctx context.Context) (map[string]uint64, error) {
	values := make(map[string]uint64)
	var errs []error
	_ = r.Walk(func(v *Variable) error {
		if !v.Mode().CanRead() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := r.ReadVariable(ctx, v)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		values[v.Path()] = value
		return nil
	})
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return values, errors.Join(errs...)
}

// Snapshot 读取所有可读变量并按设备分组为 Point
func (r *Root) Snapshot(ctx context.Context) ([]pkg.Point, error) {
	values, err := r.ReadAll(ctx)
	ts := time.Now()
	points := make([]pkg.Point, 0)
	index := make(map[*Device]int)
	_ = r.Walk(func(v *Variable) error {
		value, ok := values[v.Path()]
		if !ok {
			return nil
		}
		i, exists := index[v.parent]
		if !exists {
			i = len(points)
			index[v.parent] = i
			points = append(points, pkg.Point{Device: v.parent.Path(), Field: make(map[string]uint64), Ts: ts})
		}
		points[i].Field[v.Name()] = value
		return nil
	})
	return points, err
}

// owns 确认变量挂载在本设备树下
func (r *Root) owns(v *Variable) error {
	d := v.parent
	for d != nil && d.parent != nil {
		d = d.parent
	}
	if d != r.Device {
		return fmt.Errorf("%w: %s", ErrForeign, v.Path())
	}
	return nil
}
