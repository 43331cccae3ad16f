package transport

import (
	"context"
	"fmt"
	"sync"
)

const pageSize = 4096

func init() {
	Register("memory", NewMemoryFromContext)
}

// MemoryConfig 内存后端配置
type MemoryConfig struct {
	Size uint64 `mapstructure:"size"` // 地址空间大小, 0 表示不限制
}

// Memory 是进程内的寄存器空间, 未写入过的字节读出为 0。
// 主要用于测试和模拟硬件
type Memory struct {
	mu     sync.RWMutex
	size   uint64
	pages  map[uint64][]byte
	closed bool
}

// NewMemory 创建一个地址空间大小为 size 的内存后端
func NewMemory(size uint64) *Memory {
	return &Memory{
		size:  size,
		pages: make(map[uint64][]byte),
	}
}

// NewMemoryFromContext 从配置中创建内存后端
func NewMemoryFromContext(ctx context.Context) (Transport, error) {
	var config MemoryConfig
	if err := decodePara(configPara(ctx), &config); err != nil {
		return nil, err
	}
	return NewMemory(config.Size), nil
}

func (m *Memory) checkRange(addr uint64, n int) error {
	end := addr + uint64(n)
	if end < addr {
		return fmt.Errorf("%w: 0x%x+%d", ErrBusRange, addr, n)
	}
	if m.size > 0 && end > m.size {
		return fmt.Errorf("%w: 0x%x+%d > 0x%x", ErrBusRange, addr, n, m.size)
	}
	return nil
}

// Read 实现 Transport 接口
func (m *Memory) Read(ctx context.Context, addr uint64, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.checkRange(addr, len(p)); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	m.copyOut(addr, p)
	return nil
}

// Write 实现 Transport 接口
func (m *Memory) Write(ctx context.Context, addr uint64, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.checkRange(addr, len(p)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.copyIn(addr, p)
	return nil
}

// Poke 绕过访问检查直接写入, 模拟硬件侧修改寄存器
func (m *Memory) Poke(addr uint64, p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.copyIn(addr, p)
}

// Peek 绕过访问检查直接读取 n 个字节
func (m *Memory) Peek(addr uint64, n int) []byte {
	out := make([]byte, n)
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.copyOut(addr, out)
	return out
}

// Close 关闭后端, 之后的事务返回 ErrClosed
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) copyOut(addr uint64, p []byte) {
	for i := 0; i < len(p); {
		base := (addr + uint64(i)) / pageSize
		off := int((addr + uint64(i)) % pageSize)
		n := min(pageSize-off, len(p)-i)
		if page, ok := m.pages[base]; ok {
			copy(p[i:i+n], page[off:off+n])
		} else {
			clear(p[i : i+n])
		}
		i += n
	}
}

func (m *Memory) copyIn(addr uint64, p []byte) {
	for i := 0; i < len(p); {
		base := (addr + uint64(i)) / pageSize
		off := int((addr + uint64(i)) % pageSize)
		n := min(pageSize-off, len(p)-i)
		page, ok := m.pages[base]
		if !ok {
			page = make([]byte, pageSize)
			m.pages[base] = page
		}
		copy(page[off:off+n], p[i:i+n])
		i += n
	}
}
