// Package api 运维 HTTP 接口：本地寄存器查看与修改、远端设备调试读
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/bridge"
	"github.com/taoyao-code/axbridge/internal/regbank"
)

// busWaitTimeout 等待主机侧释放总线的上限
const busWaitTimeout = 2 * time.Second

// RemoteReader 远端设备单次读
type RemoteReader interface {
	ReadRemote(ctx context.Context, id, addr, count byte) ([]byte, error)
}

// RegisterView 单个寄存器
type RegisterView struct {
	Addr     int  `json:"addr"`
	Value    byte `json:"value"`
	Writable bool `json:"writable"`
	Min      *int `json:"min,omitempty"`
	Max      *int `json:"max,omitempty"`
}

// RegistersHandler 寄存器接口处理器
type RegistersHandler struct {
	bank   *regbank.Bank
	mode   func() bridge.Mode
	reader RemoteReader
	logger *zap.Logger
}

// NewRegistersHandler 创建寄存器接口处理器；mode、reader 可为 nil
func NewRegistersHandler(bank *regbank.Bank, mode func() bridge.Mode, reader RemoteReader, logger *zap.Logger) *RegistersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistersHandler{bank: bank, mode: mode, reader: reader, logger: logger}
}

// List 列出全部本地寄存器
// GET /registers
func (h *RegistersHandler) List(c *gin.Context) {
	regs := h.bank.Snapshot()
	views := make([]RegisterView, len(regs))
	for addr, v := range regs {
		view := RegisterView{Addr: addr, Value: v}
		if bound, ok := h.bank.Bound(addr); ok {
			lo, hi := int(bound.Min), int(bound.Max)
			view.Writable, view.Min, view.Max = true, &lo, &hi
		}
		views[addr] = view
	}

	resp := gin.H{
		"bridge_id": regs[regbank.AddrBridgeID],
		"registers": views,
	}
	if h.mode != nil {
		resp["mode"] = h.mode().String()
	}
	c.JSON(http.StatusOK, resp)
}

type writeRequest struct {
	Values []int `json:"values" binding:"required"`
}

// Write 写入本地寄存器，规则与主机 WRITE_DATA 相同（整体生效或整体拒绝）
// PUT /registers/:addr  body: {"values":[50]}
func (h *RegistersHandler) Write(c *gin.Context) {
	addr, err := strconv.Atoi(c.Param("addr"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid addr"})
		return
	}
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data := make([]byte, len(req.Values))
	for i, v := range req.Values {
		if v < 0 || v > 0xFF {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value out of byte range", "index": i})
			return
		}
		data[i] = byte(v)
	}

	if err := h.bank.Write(addr, data); err != nil {
		if regbank.IsRangeError(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("registers written via http",
		zap.Int("addr", addr),
		zap.Ints("values", req.Values),
		zap.String("remote_addr", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"addr": addr, "count": len(data)})
}

// ReadDevice 对远端设备执行一次总线读，用于现场调试
// GET /bus/devices/:id/registers?addr=0&count=2
func (h *RegistersHandler) ReadDevice(c *gin.Context) {
	if h.reader == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "bus reader unavailable"})
		return
	}
	id, err1 := parseByte(c.Param("id"))
	addr, err2 := parseByte(c.Query("addr"))
	count, err3 := parseByte(c.DefaultQuery("count", "1"))
	if err := errors.Join(err1, err2, err3); err != nil || count == 0 || id > 0xFD {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id/addr/count"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), busWaitTimeout)
	defer cancel()
	data, err := h.reader.ReadRemote(ctx, id, addr, count)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"id": id, "addr": addr, "data": bytesToInts(data)})
	case errors.Is(err, bridge.ErrModeBusy), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, bridge.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, bridge.ErrChecksum):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Warn("http bus read failed", zap.Uint8("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	return byte(v), err
}

func bytesToInts(p []byte) []int {
	out := make([]int, len(p))
	for i, b := range p {
		out[i] = int(b)
	}
	return out
}
