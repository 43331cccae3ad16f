package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"regmap/internal/device"
	"regmap/internal/surf/ethernet/udp"
	"regmap/internal/transport"
)

// Handler 持有设备树, 所有接口都通过它访问寄存器
type Handler struct {
	root *device.Root
}

// NewHandler 创建接口处理器
func NewHandler(root *device.Root) *Handler {
	return &Handler{root: root}
}

// VariableValue 是单个变量的读写结果
type VariableValue struct {
	Path  string `json:"path"`
	Value uint64 `json:"value"`
}

// WriteRequest 写变量的请求体
type WriteRequest struct {
	Value *uint64 `json:"value" binding:"required"`
}

// EngineStatus 是一个 UdpEngineServer 的对端地址
type EngineStatus struct {
	Device string `json:"device"`
	IP     string `json:"ip"`
	Port   uint16 `json:"port"`
}

// errorResponse 发送统一格式的错误响应
func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// statusFromError 将读写错误映射为 HTTP 状态码
func statusFromError(err error) int {
	switch {
	case errors.Is(err, device.ErrNotFound), errors.Is(err, device.ErrNotVariable):
		return http.StatusNotFound
	case errors.Is(err, device.ErrReadOnly), errors.Is(err, device.ErrWriteOnly):
		return http.StatusForbidden
	case errors.Is(err, device.ErrValueRange):
		return http.StatusBadRequest
	case errors.Is(err, transport.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// ListVariables 返回寄存器表, ?format=yaml 时返回嵌套的 YAML
func (h *Handler) ListVariables(c *gin.Context) {
	if c.Query("format") == "yaml" {
		c.YAML(http.StatusOK, h.root)
		return
	}
	c.JSON(http.StatusOK, h.root.Describe())
}

// ReadVariable 读取一次变量
func (h *Handler) ReadVariable(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	value, err := h.root.Read(c.Request.Context(), path)
	if err != nil {
		errorResponse(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, VariableValue{Path: path, Value: value})
}

// WriteVariable 写入变量, 只读变量返回 403
func (h *Handler) WriteVariable(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "无效的请求数据: "+err.Error())
		return
	}
	if err := h.root.Write(c.Request.Context(), path, *req.Value); err != nil {
		errorResponse(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, VariableValue{Path: path, Value: *req.Value})
}

// ListEngines 读取设备树中所有 UdpEngineServer 的对端地址
func (h *Handler) ListEngines(c *gin.Context) {
	out := make([]EngineStatus, 0)
	for _, dev := range engines(h.root.Device) {
		status, err := udp.ReadStatus(c.Request.Context(), h.root, dev)
		if err != nil {
			errorResponse(c, statusFromError(err), err.Error())
			return
		}
		out = append(out, EngineStatus{Device: dev.Path(), IP: status.IP.String(), Port: status.Port})
	}
	c.JSON(http.StatusOK, out)
}

// engines 返回声明了 UdpEngineServer 状态寄存器的设备
func engines(d *device.Device) []*device.Device {
	var out []*device.Device
	if _, err := d.FindVariable(udp.ServerRemotePort); err == nil {
		if _, err := d.FindVariable(udp.ServerRemoteIp); err == nil {
			out = append(out, d)
		}
	}
	for _, child := range d.Devices() {
		out = append(out, engines(child)...)
	}
	return out
}
