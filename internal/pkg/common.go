package pkg

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Point 是一次读取得到的设备快照, 在 device 和 sink 之间传递
type Point struct {
	Device string            `json:"device"` // 设备路径, 例如 "Root.UdpEngineServer"
	Field  map[string]uint64 `json:"field"`  // 变量名 -> 原始寄存器值
	Ts     time.Time         `json:"ts"`     // 读取时间
}

// String 方法实现, 字段按名称排序输出
func (p *Point) String() string {
	keys := make([]string, 0, len(p.Field))
	for k := range p.Field {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, p.Field[k]))
	}
	return fmt.Sprintf("Point(Device=%s, Field={%s}, Ts=%s)",
		p.Device, strings.Join(parts, ", "), p.Ts.Format(time.RFC3339))
}
