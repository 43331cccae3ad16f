package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"regmap/internal/admin/api"
	"regmap/internal/admin/router"
	"regmap/internal/device"
	"regmap/internal/surf/ethernet/udp"
	"regmap/internal/transport"
)

func perform(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVariableHandlers(t *testing.T) {
	Convey("寄存器接口测试", t, func() {
		gin.SetMode(gin.TestMode)

		mem := transport.NewMemory(0x200)
		root := device.NewRoot(mem, zap.NewNop())
		engine, err := udp.NewEngineServer()
		So(err, ShouldBeNil)
		scratch := device.New(device.WithName("Scratch"), device.WithOffset(0x100))
		ctrl, err := device.NewRemoteVariable(device.VariableConfig{Name: "Ctrl", BitSize: 8, Mode: device.RW})
		So(err, ShouldBeNil)
		kick, err := device.NewRemoteVariable(device.VariableConfig{Name: "Kick", Offset: 0x01, BitSize: 8, Mode: device.WO})
		So(err, ShouldBeNil)
		far, err := device.NewRemoteVariable(device.VariableConfig{Name: "Far", Offset: 0x200, BitSize: 8, Mode: device.RO})
		So(err, ShouldBeNil)
		So(scratch.Add(ctrl, kick, far), ShouldBeNil)
		So(root.Add(engine, scratch), ShouldBeNil)

		mem.Poke(0x00, []byte{0xc3, 0x50})
		mem.Poke(0x04, []byte{192, 168, 2, 10})

		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		})
		r := router.SetupRouter(root, metrics)

		Convey("健康检查", func() {
			w := perform(r, http.MethodGet, "/health", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "OK")
		})

		Convey("寄存器表按声明顺序返回", func() {
			w := perform(r, http.MethodGet, "/api/v1/variables", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var infos []device.VariableInfo
			So(json.Unmarshal(w.Body.Bytes(), &infos), ShouldBeNil)
			So(len(infos), ShouldEqual, 5)
			So(infos[0].Path, ShouldEqual, "Root.UdpEngineServer.ServerRemotePort")
			So(infos[0].Mode, ShouldEqual, "RO")
			So(infos[1].Address, ShouldEqual, "0x00000004")
		})

		Convey("寄存器表可以导出为 YAML", func() {
			w := perform(r, http.MethodGet, "/api/v1/variables?format=yaml", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.HasPrefix(w.Body.String(), "Root:"), ShouldBeTrue)
			So(w.Body.String(), ShouldContainSubstring, "ServerRemoteIp:")
		})

		Convey("读取变量", func() {
			w := perform(r, http.MethodGet, "/api/v1/variables/Root.UdpEngineServer.ServerRemotePort", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var v api.VariableValue
			So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
			So(v.Value, ShouldEqual, uint64(50000))
		})

		Convey("错误映射为状态码", func() {
			So(perform(r, http.MethodGet, "/api/v1/variables/UdpEngineServer.Missing", nil).Code, ShouldEqual, http.StatusNotFound)
			So(perform(r, http.MethodGet, "/api/v1/variables/UdpEngineServer", nil).Code, ShouldEqual, http.StatusNotFound)
			So(perform(r, http.MethodGet, "/api/v1/variables/Scratch.Kick", nil).Code, ShouldEqual, http.StatusForbidden)
			So(perform(r, http.MethodGet, "/api/v1/variables/Scratch.Far", nil).Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("只读变量拒绝写入", func() {
			w := perform(r, http.MethodPut, "/api/v1/variables/UdpEngineServer.ServerRemoteIp", map[string]any{"value": 1})
			So(w.Code, ShouldEqual, http.StatusForbidden)
			So(mem.Peek(0x04, 4), ShouldResemble, []byte{192, 168, 2, 10})
		})

		Convey("写入读写变量", func() {
			w := perform(r, http.MethodPut, "/api/v1/variables/Scratch.Ctrl", map[string]any{"value": 0x5a})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(mem.Peek(0x100, 1), ShouldResemble, []byte{0x5a})

			So(perform(r, http.MethodPut, "/api/v1/variables/Scratch.Ctrl", map[string]any{"value": 0x100}).Code, ShouldEqual, http.StatusBadRequest)
			So(perform(r, http.MethodPut, "/api/v1/variables/Scratch.Ctrl", map[string]any{}).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("列出 UdpEngineServer 状态", func() {
			w := perform(r, http.MethodGet, "/api/v1/engines", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var out []api.EngineStatus
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			So(out, ShouldResemble, []api.EngineStatus{{Device: "Root.UdpEngineServer", IP: "192.168.2.10", Port: 50000}})
		})

		Convey("挂载 metrics", func() {
			w := perform(r, http.MethodGet, "/metrics", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "metrics")
			So(perform(router.SetupRouter(root, nil), http.MethodGet, "/metrics", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
