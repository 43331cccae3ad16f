package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"regmap/internal/pkg"
)

func init() {
	Register("udp", NewClientFromContext)
}

// ClientConfig 包含 UDP 客户端的配置信息
type ClientConfig struct {
	Addr       string        `mapstructure:"addr"`       // 远端地址（例如 "192.168.2.10:8192"）
	Timeout    time.Duration `mapstructure:"timeout"`    // 单次尝试等待应答的时间
	Retries    int           `mapstructure:"retries"`    // 超时后的重传次数
	BackoffMin time.Duration `mapstructure:"backoffMin"` // 重传退避下限
	BackoffMax time.Duration `mapstructure:"backoffMax"` // 重传退避上限
}

func (c *ClientConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 500 * time.Millisecond
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 20 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = time.Second
	}
}

// Client 通过 UDP 将寄存器事务发送到远端, 同一时刻只有一个事务在途
type Client struct {
	config ClientConfig
	conn   *net.UDPConn
	logger *zap.Logger

	mu  sync.Mutex
	tid uint32
	buf []byte
}

// NewClient 创建一个新的 Client 实例
func NewClient(config ClientConfig, logger *zap.Logger) (*Client, error) {
	config.setDefaults()
	serverAddr, err := net.ResolveUDPAddr("udp", config.Addr)
	if err != nil {
		return nil, fmt.Errorf("无法解析服务器地址: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, serverAddr)
	if err != nil {
		return nil, fmt.Errorf("无法连接到服务器: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		conn:   conn,
		logger: logger.With(zap.String("remote", serverAddr.String())),
		buf:    make([]byte, headerSize+MaxPayload),
	}, nil
}

// NewClientFromContext 从配置中创建 UDP 客户端
func NewClientFromContext(ctx context.Context) (Transport, error) {
	var config ClientConfig
	if err := decodePara(configPara(ctx), &config); err != nil {
		return nil, err
	}
	if config.Addr == "" {
		return nil, fmt.Errorf("udp 后端缺少 'addr' 配置")
	}
	return NewClient(config, pkg.LoggerFromContext(ctx))
}

// Read 实现 Transport 接口
func (c *Client) Read(ctx context.Context, addr uint64, p []byte) error {
	if len(p) > MaxPayload {
		return fmt.Errorf("%w: %d > %d", ErrSizeLimit, len(p), MaxPayload)
	}
	resp, err := c.transact(ctx, &frame{op: opRead, addr: addr, size: uint32(len(p))})
	if err != nil {
		return err
	}
	if len(resp.data) != len(p) {
		return fmt.Errorf("%w: 期望 %d 字节, 实际 %d", ErrBadFrame, len(p), len(resp.data))
	}
	copy(p, resp.data)
	return nil
}

// Write 实现 Transport 接口
func (c *Client) Write(ctx context.Context, addr uint64, p []byte) error {
	if len(p) > MaxPayload {
		return fmt.Errorf("%w: %d > %d", ErrSizeLimit, len(p), MaxPayload)
	}
	_, err := c.transact(ctx, &frame{op: opWrite, addr: addr, size: uint32(len(p)), data: p})
	return err
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("关闭 UDP 连接失败: %w", err)
	}
	return nil
}

// transact 发送请求并等待 tid 匹配的应答, 超时后按退避策略重传
func (c *Client) transact(ctx context.Context, req *frame) (resp *frame, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		transactions.WithLabelValues(req.op.String(), resultLabel(err)).Inc()
	}()

	c.tid++
	req.tid = c.tid
	out, err := req.MarshalBinary()
	if err != nil {
		return nil, err
	}

	bo := &backoff.Backoff{Min: c.config.BackoffMin, Max: c.config.BackoffMax, Factor: 2}
	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			retransmits.WithLabelValues(req.op.String()).Inc()
			wait := bo.Duration()
			c.logger.Debug("事务超时, 准备重传",
				zap.Uint32("tid", req.tid), zap.Int("attempt", attempt), zap.Duration("backoff", wait))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		if _, err := c.conn.Write(out); err != nil {
			return nil, fmt.Errorf("发送 %s 请求失败: %w", req.op, err)
		}
		resp, err := c.await(ctx, req)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		return resp, err
	}
	return nil, fmt.Errorf("%w: %s addr=0x%x, 已尝试 %d 次", ErrTimeout, req.op, req.addr, c.config.Retries+1)
}

// await 等待一次尝试的应答, 丢弃 tid 不匹配或无法解析的帧
func (c *Client) await(ctx context.Context, req *frame) (*frame, error) {
	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("设置读取超时失败: %w", err)
	}
	for {
		n, err := c.conn.Read(c.buf)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) && opErr.Timeout() {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("接收应答失败: %w", err)
		}
		var resp frame
		if err := resp.UnmarshalBinary(c.buf[:n]); err != nil {
			c.logger.Warn("丢弃无法解析的应答", zap.Error(err))
			continue
		}
		if resp.tid != req.tid || resp.op != req.op {
			c.logger.Debug("丢弃过期应答", zap.Uint32("tid", resp.tid), zap.Uint32("want", req.tid))
			continue
		}
		if resp.status != StatusOK {
			return nil, &StatusError{Op: req.op.String(), Addr: req.addr, Status: resp.status}
		}
		return &resp, nil
	}
}
