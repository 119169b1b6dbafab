package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/axbridge/internal/api/middleware"
	"github.com/taoyao-code/axbridge/internal/bridge"
	"github.com/taoyao-code/axbridge/internal/regbank"
)

type stubReader struct {
	data []byte
	err  error
	got  [3]byte
}

func (s *stubReader) ReadRemote(_ context.Context, id, addr, count byte) ([]byte, error) {
	s.got = [3]byte{id, addr, count}
	return s.data, s.err
}

func newTestRouter(t *testing.T, reader RemoteReader, auth middleware.AuthConfig) (*gin.Engine, *regbank.Bank) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	layout := regbank.DefaultLayout()
	bank, err := regbank.New(layout, layout.Defaults(
		regbank.Identity{ModelNumber: 0x2AB0, FirmwareVersion: 2, BridgeID: 0xFD},
		map[int]byte{regbank.AddrBusTimeout: 50},
	))
	require.NoError(t, err)

	r := gin.New()
	h := NewRegistersHandler(bank, func() bridge.Mode { return bridge.ModeRelay }, reader, zaptest.NewLogger(t))
	RegisterRoutes(r, h, auth, zaptest.NewLogger(t))
	return r, bank
}

func do(r *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRegisters_List(t *testing.T) {
	r, _ := newTestRouter(t, nil, middleware.AuthConfig{})
	rr := do(r, http.MethodGet, "/registers", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		BridgeID  int            `json:"bridge_id"`
		Mode      string         `json:"mode"`
		Registers []RegisterView `json:"registers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 0xFD, resp.BridgeID)
	assert.Equal(t, "relay", resp.Mode)
	require.Len(t, resp.Registers, regbank.DefaultSize)
	assert.False(t, resp.Registers[0].Writable)
	assert.Equal(t, byte(0xB0), resp.Registers[0].Value)
	assert.True(t, resp.Registers[4].Writable)
	assert.Equal(t, 10, *resp.Registers[4].Min)
	assert.Equal(t, byte(50), resp.Registers[4].Value)
}

func TestRegisters_Write(t *testing.T) {
	r, bank := newTestRouter(t, nil, middleware.AuthConfig{})

	tests := []struct {
		name string
		path string
		body any
		code int
	}{
		{"合法写入", "/registers/4", gin.H{"values": []int{60}}, http.StatusOK},
		{"低于下限", "/registers/4", gin.H{"values": []int{5}}, http.StatusUnprocessableEntity},
		{"只读区", "/registers/1", gin.H{"values": []int{1}}, http.StatusUnprocessableEntity},
		{"超出字节", "/registers/8", gin.H{"values": []int{256}}, http.StatusBadRequest},
		{"地址非法", "/registers/x", gin.H{"values": []int{1}}, http.StatusBadRequest},
		{"缺少values", "/registers/8", gin.H{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(r, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
		})
	}
	assert.Equal(t, byte(60), bank.Byte(4))
}

func TestRegisters_WriteRequiresKey(t *testing.T) {
	r, bank := newTestRouter(t, nil, middleware.AuthConfig{Enabled: true, APIKeys: []string{"k-123456789"}})

	rr := do(r, http.MethodPut, "/registers/4", gin.H{"values": []int{60}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, byte(50), bank.Byte(4))

	rr = do(r, http.MethodPut, "/registers/4", gin.H{"values": []int{60}}, "X-API-Key", "k-123456789")
	assert.Equal(t, http.StatusOK, rr.Code)

	// 只读列表无需认证
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/registers", nil).Code)
}

func TestRegisters_ReadDevice(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		code int
	}{
		{"成功", "/bus/devices/3/registers?addr=36&count=2", nil, http.StatusOK},
		{"超时", "/bus/devices/3/registers?addr=36&count=2", bridge.ErrTimeout, http.StatusGatewayTimeout},
		{"校验错误", "/bus/devices/3/registers?addr=36&count=2", bridge.ErrChecksum, http.StatusBadGateway},
		{"忙", "/bus/devices/3/registers?addr=36&count=2", bridge.ErrModeBusy, http.StatusConflict},
		{"等待总线超时", "/bus/devices/3/registers?addr=36&count=2", context.DeadlineExceeded, http.StatusConflict},
		{"广播地址", "/bus/devices/254/registers?addr=36", nil, http.StatusBadRequest},
		{"长度为0", "/bus/devices/3/registers?addr=36&count=0", nil, http.StatusBadRequest},
		{"缺少addr", "/bus/devices/3/registers", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &stubReader{data: []byte{0x00, 0x02}, err: tt.err}
			r, _ := newTestRouter(t, reader, middleware.AuthConfig{})
			rr := do(r, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
			if tt.code == http.StatusOK {
				assert.Equal(t, [3]byte{3, 36, 2}, reader.got)
				assert.JSONEq(t, `{"id":3,"addr":36,"data":[0,2]}`, rr.Body.String())
			}
		})
	}
}

func TestRegisters_ReadDeviceWithoutReader(t *testing.T) {
	r, _ := newTestRouter(t, nil, middleware.AuthConfig{})
	rr := do(r, http.MethodGet, "/bus/devices/3/registers?addr=0", nil)
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}
