package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"regmap/internal/pkg"
)

// Server 通过 UDP 对外提供一个 Transport, 用于模拟远端硬件
type Server struct {
	backend    Transport
	conn       *net.UDPConn
	logger     *zap.Logger
	bufferPool *pkg.BytesPool // 缓冲区池
	closeOnce  sync.Once
}

// NewServer 在 listen 地址上监听, 端口为 0 时由系统分配
func NewServer(listen string, backend Transport, logger *zap.Logger) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("解析 UDP 地址失败: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("UDP监听程序启动失败: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		backend: backend,
		conn:    conn,
		logger:  logger,
		// 多留一个字节, 用于识别超长的数据报
		bufferPool: pkg.NewBytesPool(headerSize + MaxPayload + 1),
	}, nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Serve 处理请求直到 ctx 结束或连接被关闭
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("UDP 寄存器服务已启动", zap.String("listen", s.Addr().String()))
	go func() {
		<-ctx.Done()
		s.logger.Info("==收到停止信号，关闭 UDP监听 ==")
		_ = s.Close()
	}()

	for {
		buffer := s.bufferPool.Get()
		n, remote, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			s.bufferPool.Put(buffer)
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("UDP 连接已关闭")
				return nil
			}
			s.logger.Error("接收请求失败", zap.Error(err))
			continue
		}
		reply := s.handle(ctx, buffer[:n])
		s.bufferPool.Put(buffer)
		if reply == nil {
			continue
		}
		if _, err := s.conn.WriteToUDP(reply, remote); err != nil {
			s.logger.Warn("发送应答失败", zap.String("remote", remote.String()), zap.Error(err))
		}
	}
}

// Close 关闭监听
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// handle 处理一个请求帧, 返回 nil 表示不应答
func (s *Server) handle(ctx context.Context, pkt []byte) []byte {
	var req frame
	if err := req.UnmarshalBinary(pkt); err != nil {
		s.logger.Warn("收到无效请求", zap.Error(err))
		if len(pkt) < headerSize {
			return nil
		}
		// 帧头完整时带上 tid 返回错误状态
		return s.reply(&frame{
			op:     opcode(pkt[1]),
			status: StatusBadFrame,
			tid:    binary.BigEndian.Uint32(pkt[4:8]),
			addr:   binary.BigEndian.Uint64(pkt[8:16]),
		})
	}

	resp := &frame{op: req.op, tid: req.tid, addr: req.addr, size: req.size}
	if req.size > MaxPayload {
		resp.status = StatusSizeLimit
		return s.reply(resp)
	}

	switch req.op {
	case opRead:
		data := make([]byte, req.size)
		if err := s.backend.Read(ctx, req.addr, data); err != nil {
			s.logger.Warn("读事务失败", zap.Uint64("addr", req.addr), zap.Uint32("size", req.size), zap.Error(err))
			resp.status = StatusBusError
			break
		}
		resp.data = data
	case opWrite:
		if uint32(len(req.data)) != req.size {
			resp.status = StatusBadFrame
			break
		}
		if err := s.backend.Write(ctx, req.addr, req.data); err != nil {
			s.logger.Warn("写事务失败", zap.Uint64("addr", req.addr), zap.Uint32("size", req.size), zap.Error(err))
			resp.status = StatusBusError
		}
	}
	return s.reply(resp)
}

func (s *Server) reply(f *frame) []byte {
	if f.op == opWrite || f.status != StatusOK {
		f.data = nil
	}
	out, err := f.MarshalBinary()
	if err != nil {
		s.logger.Error("编码应答失败", zap.Error(err))
		return nil
	}
	return out
}
