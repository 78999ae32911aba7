package services

import (
	"errors"
	"net/http"

	"github.com/Emmaka9/secure-fl/pkg/core/aggregator"
	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/utils"
	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/gin-gonic/gin"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// setupRoutes 注册全部API路由
func (c *Coordinator) setupRoutes() {
	router := c.HTTPServer.GetRouter()

	router.POST("/register", c.registerHandler)
	router.POST("/participants/url", c.reportURLHandler)
	router.GET("/participants/list", c.getParticipantsListHandler)
	router.GET("/params", c.getParamsHandler)

	router.POST("/keys/exchange", c.postExchangeKeyHandler)
	router.GET("/keys/exchange", c.getExchangeKeysHandler)

	router.POST("/shares", c.postShareHandler)
	router.GET("/result", c.getResultHandler)
	router.POST("/round/reset", c.resetRoundHandler)

	router.POST("/heartbeat", c.heartbeatHandler)
	router.GET("/status", c.getStatusHandler)
	router.GET("/status/online", c.getOnlineStatusHandler)
	router.GET("/status/ws", c.wsStatusHandler)
}

// registerHandler 注册参与方处理器
func (c *Coordinator) registerHandler(ctx *gin.Context) {
	id, err := c.ParticipantManager.Register()
	if err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if c.ParticipantManager.AllRegistered() {
		c.setPhase(PhaseKeyExchange)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"participant_id": id,
		"round_id":       c.RoundID(),
		"expected_n":     c.ParticipantManager.ExpectedN(),
	})
}

// reportURLHandler 参与方上报URL处理器
func (c *Coordinator) reportURLHandler(ctx *gin.Context) {
	var req utils.PeerInfo
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := c.ParticipantManager.AddParticipantURL(req.ID, req.URL); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "url_reported"})
}

// getParticipantsListHandler 获取参与方URL列表处理器
func (c *Coordinator) getParticipantsListHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.ParticipantManager.GetAllParticipantURLs())
}

// getParamsHandler 获取协议参数处理器
// 分发CKKS参数字面量、CRS种子和向量长度
func (c *Coordinator) getParamsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"params_literal":  c.ParameterManager.GetParamsLiteralB64(),
		"common_crs_seed": c.ParameterManager.GetCRSSeedB64(),
		"data_size":       c.ParameterManager.GetDataSize(),
		"expected_n":      c.ParticipantManager.ExpectedN(),
		"round_id":        c.RoundID(),
	})
}

// postExchangeKeyHandler 提交交换公钥处理器
func (c *Coordinator) postExchangeKeyHandler(ctx *gin.Context) {
	var req utils.ExchangeKeyMsg
	if err := ctx.ShouldBindJSON(&req); err != nil || req.PublicKey == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request, public_key required"})
		return
	}

	// 仅校验可解码性，字节内容由掩码引擎在反序列化时检查
	if _, err := utils.DecodeFromBase64(req.PublicKey); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid public key encoding"})
		return
	}

	if err := c.AddExchangeKey(req.ParticipantID, req.PublicKey); err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if c.ExchangeKeysComplete() {
		c.setPhase(PhaseCollecting)
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "exchange key added"})
}

// getExchangeKeysHandler 获取交换公钥目录处理器
// 目录未集齐前返回503：掩码生成前的先行屏障，部分目录绝不外发
func (c *Coordinator) getExchangeKeysHandler(ctx *gin.Context) {
	if !c.ExchangeKeysComplete() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "交换公钥目录尚未集齐",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"round_id": c.RoundID(),
		"keys":     c.GetExchangeKeys(),
	})
}

// polyFitsRing 环元素的塔数和各塔系数长度是否与环一致
func polyFitsRing(ringQ *ring.Ring, p ring.Poly) bool {
	if len(p.Coeffs) != len(ringQ.SubRings) {
		return false
	}
	for i := range p.Coeffs {
		if len(p.Coeffs[i]) != ringQ.N() {
			return false
		}
	}
	return true
}

// postShareHandler 提交客户端份额处理器
func (c *Coordinator) postShareHandler(ctx *gin.Context) {
	var req utils.ShareMsg
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var c0, dMasked ring.Poly
	if err := utils.DecodeShareBase64(req.C0, &c0); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid c0 data"})
		return
	}
	if err := utils.DecodeShareBase64(req.DMasked, &dMasked); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid d_masked data"})
		return
	}

	// 维度不匹配的环元素进入聚合会在环运算中崩溃，提交时就拒绝
	if !polyFitsRing(c.cs.RingQ, c0) || !polyFitsRing(c.cs.RingQ, dMasked) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "share dimensions do not match ring"})
		return
	}

	share := mkckks.ClientShare{C0: c0, DMasked: dMasked}
	if err := c.Aggregator.CollectShare(req.ParticipantID, share); err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":      "share collected",
		"share_count": c.Aggregator.ShareCount(),
	})
}

// getResultHandler 获取聚合结果处理器
// 份额未集齐返回503，零份额聚合返回ErrNoShares对应的409
func (c *Coordinator) getResultHandler(ctx *gin.Context) {
	if c.Aggregator.ShareCount() < c.ParticipantManager.ExpectedN() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error":       "份额尚未集齐",
			"share_count": c.Aggregator.ShareCount(),
			"expected_n":  c.ParticipantManager.ExpectedN(),
		})
		return
	}

	result, err := c.GetResult()
	if err != nil {
		if errors.Is(err, aggregator.ErrNoShares) {
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, utils.ResultResponse{
		RoundID: c.RoundID(),
		Vector:  result,
	})
}

// resetRoundHandler 轮换到新一轮处理器
func (c *Coordinator) resetRoundHandler(ctx *gin.Context) {
	c.ResetRound()
	ctx.JSON(http.StatusOK, gin.H{"status": "round reset", "round_id": c.RoundID()})
}

// heartbeatHandler 心跳处理器
func (c *Coordinator) heartbeatHandler(ctx *gin.Context) {
	var req struct {
		ParticipantID int `json:"participant_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := c.ParticipantManager.UpdateHeartbeat(req.ParticipantID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "heartbeat_updated"})
}

// getStatusHandler 获取详细状态处理器
func (c *Coordinator) getStatusHandler(ctx *gin.Context) {
	onlineStatus := c.ParticipantManager.GetOnlineStatus()
	ctx.JSON(http.StatusOK, gin.H{
		"round_id":           c.RoundID(),
		"phase":              c.Phase(),
		"participants":       c.ParticipantManager.GetParticipants(),
		"exchange_keys_done": c.ExchangeKeysComplete(),
		"share_count":        c.Aggregator.ShareCount(),
		"expected_n":         c.ParticipantManager.ExpectedN(),
		"online_status":      onlineStatus,
	})
}

// getOnlineStatusHandler 获取在线状态处理器
func (c *Coordinator) getOnlineStatusHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.ParticipantManager.GetOnlineStatus())
}

// wsStatusHandler websocket实时状态流处理器
func (c *Coordinator) wsStatusHandler(ctx *gin.Context) {
	if err := c.statusHub.Handle(ctx.Writer, ctx.Request); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
