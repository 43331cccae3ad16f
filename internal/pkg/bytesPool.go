package pkg

import "sync"

// BytesPool 是固定长度的字节池，减少 UDP 收包时的内存分配
type BytesPool struct {
	size int
	pool *sync.Pool
}

// NewBytesPool 创建一个字节池, 每个字节数组长度为 size
func NewBytesPool(size int) *BytesPool {
	return &BytesPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get 从字节池中获取一个长度为 size 的字节数组
func (p *BytesPool) Get() []byte {
	return (*p.pool.Get().(*[]byte))[:p.size]
}

// Put 将一个字节数组放回字节池, 容量不足的数组直接丢弃
func (p *BytesPool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	p.pool.Put(&b)
}
