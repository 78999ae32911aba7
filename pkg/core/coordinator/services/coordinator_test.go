package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/utils"
	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	pcoord "github.com/Emmaka9/secure-fl/pkg/core/participant/coordinator"
	pservices "github.com/Emmaka9/secure-fl/pkg/core/participant/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/ring"
)

func newTestCoordinator(t *testing.T, expectedN, dataSize int) (*Coordinator, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := NewCoordinator(expectedN, dataSize, "0")
	require.NoError(t, err)

	srv := httptest.NewServer(c.HTTPServer.GetRouter())
	t.Cleanup(srv.Close)
	return c, srv
}

// 三个远程参与方走完整HTTP流程：注册、参数同步、交换公钥、提交份额、取回结果
func TestFullRoundOverHTTP(t *testing.T) {
	const (
		n        = 3
		dataSize = 8
	)
	c, srv := newTestCoordinator(t, n, dataSize)

	inputs := [][]float64{
		{1, 2, 3, 4, 5, 6, 7, 8},
		{10, 20, 30, 40, 50, 60, 70, 80},
		{-1, -2, -3, -4, -5, -6, -7, -8},
	}
	expected := make([]float64, dataSize)
	for _, in := range inputs {
		for i := range in {
			expected[i] += in[i]
		}
	}

	results := make([][]float64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p := pservices.NewParticipant(srv.URL)
			if err := p.Setup(); err != nil {
				errs[idx] = err
				return
			}
			defer p.Shutdown()
			results[idx], errs[idx] = p.RunRound(inputs[idx], 30*time.Second)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], dataSize)
		for j := range expected {
			require.InDelta(t, expected[j], results[i][j], 1e-3)
		}
	}
	require.Equal(t, PhaseAggregated, c.Phase())
}

func TestRegistrationRejectsWhenFull(t *testing.T) {
	_, srv := newTestCoordinator(t, 2, 4)

	for i := 0; i < 2; i++ {
		cc := pcoord.NewCoordinatorClient(srv.URL)
		reg, err := cc.Register()
		require.NoError(t, err)
		require.Equal(t, i, reg.ParticipantID)
	}

	cc := pcoord.NewCoordinatorClient(srv.URL)
	_, err := cc.Register()
	require.Error(t, err)
}

// 目录未集齐时交换公钥端点必须拒绝，这是掩码生成前的屏障
func TestExchangeKeyBarrier(t *testing.T) {
	c, srv := newTestCoordinator(t, 2, 4)

	resp, err := http.Get(srv.URL + "/keys/exchange")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cc0 := pcoord.NewCoordinatorClient(srv.URL)
	_, err = cc0.Register()
	require.NoError(t, err)
	cc1 := pcoord.NewCoordinatorClient(srv.URL)
	_, err = cc1.Register()
	require.NoError(t, err)

	params, err := cc0.GetParams()
	require.NoError(t, err)
	cs, err := mkckks.NewCryptoSystem(params.Params)
	require.NoError(t, err)
	crs, err := cs.CommonRefPolyFromSeed(params.CommonCRSSeed)
	require.NoError(t, err)

	unit0, err := pservices.NewClient(0, cs, crs)
	require.NoError(t, err)
	require.NoError(t, cc0.UploadExchangeKey(unit0.ExchangePublicKey()))

	// 只有一方上报，目录仍不完整
	resp, err = http.Get(srv.URL + "/keys/exchange")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.False(t, c.ExchangeKeysComplete())

	unit1, err := pservices.NewClient(1, cs, crs)
	require.NoError(t, err)
	require.NoError(t, cc1.UploadExchangeKey(unit1.ExchangePublicKey()))

	keys, err := cc0.WaitForExchangeKeys(5 * time.Second)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, PhaseCollecting, c.Phase())
}

func TestExchangeKeyRejectsBadEncoding(t *testing.T) {
	_, srv := newTestCoordinator(t, 1, 4)

	body := strings.NewReader(`{"participant_id": 0, "public_key": "不是base64!!"}`)
	resp, err := http.Post(srv.URL+"/keys/exchange", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResultUnavailableBeforeShares(t *testing.T) {
	_, srv := newTestCoordinator(t, 2, 4)

	resp, err := http.Get(srv.URL + "/result")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestResetRoundOverHTTP(t *testing.T) {
	c, srv := newTestCoordinator(t, 1, 4)

	oldRound := c.RoundID()
	cc := pcoord.NewCoordinatorClient(srv.URL)
	require.NoError(t, cc.ResetRound())
	require.NotEqual(t, oldRound, c.RoundID())
	require.Equal(t, PhaseKeyExchange, c.Phase())
	require.Zero(t, c.Aggregator.ShareCount())
}

// 未注册ID的交换公钥必须被拒绝，否则陌生键可凑满目录
// 并在真实参与方缺席时骗过完整性闸门
func TestExchangeKeyRejectsUnknownParticipant(t *testing.T) {
	c, srv := newTestCoordinator(t, 2, 4)

	cc := pcoord.NewCoordinatorClient(srv.URL)
	_, err := cc.Register()
	require.NoError(t, err)

	// "cHVia2V5"是合法base64，ID却从未注册
	body := strings.NewReader(`{"participant_id": 7, "public_key": "cHVia2V5"}`)
	resp, err := http.Post(srv.URL+"/keys/exchange", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Empty(t, c.GetExchangeKeys())

	// 已注册方重复提交只覆盖，不会把目录计数凑到期望值
	for i := 0; i < 2; i++ {
		body := strings.NewReader(`{"participant_id": 0, "public_key": "cHVia2V5"}`)
		resp, err := http.Post(srv.URL+"/keys/exchange", "application/json", body)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	require.False(t, c.ExchangeKeysComplete())
}

// 维度与环不符的份额必须在提交时被拒绝，而不是留到聚合时崩溃
func TestShareRejectsWrongDimensions(t *testing.T) {
	c, srv := newTestCoordinator(t, 1, 4)

	cc := pcoord.NewCoordinatorClient(srv.URL)
	_, err := cc.Register()
	require.NoError(t, err)

	badPoly := ring.Poly{Coeffs: [][]uint64{{1, 2, 3}}}
	badB64, err := utils.EncodeShareBase64(badPoly)
	require.NoError(t, err)

	msg, err := json.Marshal(utils.ShareMsg{ParticipantID: 0, C0: badB64, DMasked: badB64})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/shares", "application/json", bytes.NewReader(msg))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, c.Aggregator.ShareCount())
}

// websocket状态流应把阶段变化推送给已连接的监控端
func TestStatusWebSocketBroadcast(t *testing.T) {
	_, srv := newTestCoordinator(t, 1, 4)

	wsURL := strings.Replace(srv.URL, "http", "ws", 1) + "/status/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// 注册唯一的参与方，触发进入key_exchange阶段的广播
	cc := pcoord.NewCoordinatorClient(srv.URL)
	_, err = cc.Register()
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, PhaseKeyExchange, msg["phase"])
}
