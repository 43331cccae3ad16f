package transport

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"regmap/internal/pkg"
)

func TestMemory(t *testing.T) {
	Convey("内存后端测试", t, func() {
		ctx := context.Background()

		Convey("未写入的地址读出为 0", func() {
			m := NewMemory(0)
			buf := []byte{0xff, 0xff, 0xff, 0xff}
			So(m.Read(ctx, 0x100, buf), ShouldBeNil)
			So(buf, ShouldResemble, []byte{0, 0, 0, 0})
		})

		Convey("跨页写入后可以完整读回", func() {
			m := NewMemory(0)
			data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
			addr := uint64(pageSize - 3)
			So(m.Write(ctx, addr, data), ShouldBeNil)

			buf := make([]byte, len(data))
			So(m.Read(ctx, addr, buf), ShouldBeNil)
			So(buf, ShouldResemble, data)
			So(m.Peek(pageSize, 2), ShouldResemble, []byte{4, 5})
		})

		Convey("超出地址空间返回 ErrBusRange", func() {
			m := NewMemory(8)
			So(m.Write(ctx, 4, []byte{1, 2, 3, 4}), ShouldBeNil)
			So(errors.Is(m.Read(ctx, 6, make([]byte, 4)), ErrBusRange), ShouldBeTrue)
			So(errors.Is(m.Write(ctx, ^uint64(0), []byte{1, 2}), ErrBusRange), ShouldBeTrue)
		})

		Convey("Poke 不受访问检查影响", func() {
			m := NewMemory(0)
			m.Poke(0x04, []byte{0xc0, 0xa8, 0x01, 0x01})
			buf := make([]byte, 4)
			So(m.Read(ctx, 0x04, buf), ShouldBeNil)
			So(buf, ShouldResemble, []byte{0xc0, 0xa8, 0x01, 0x01})
		})

		Convey("关闭后返回 ErrClosed", func() {
			m := NewMemory(0)
			So(m.Close(), ShouldBeNil)
			So(m.Read(ctx, 0, make([]byte, 1)), ShouldEqual, ErrClosed)
			So(m.Write(ctx, 0, []byte{1}), ShouldEqual, ErrClosed)
		})

		Convey("context 取消后不再访问", func() {
			m := NewMemory(0)
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			So(m.Read(cancelled, 0, make([]byte, 1)), ShouldEqual, context.Canceled)
		})

		Convey("通过工厂创建", func() {
			config := &pkg.Config{Transport: pkg.TransportConfig{
				Type: "memory",
				Para: map[string]any{"size": "16"},
			}}
			tr, err := New(pkg.WithConfig(ctx, config))
			So(err, ShouldBeNil)
			m, ok := tr.(*Memory)
			So(ok, ShouldBeTrue)
			So(m.size, ShouldEqual, uint64(16))
		})

		Convey("未知类型返回错误", func() {
			config := &pkg.Config{Transport: pkg.TransportConfig{Type: "pcie"}}
			_, err := New(pkg.WithConfig(ctx, config))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "pcie")
		})
	})
}
