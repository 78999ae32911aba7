package services

import (
	"fmt"
	"sync"

	"github.com/Emmaka9/secure-fl/pkg/core/aggregator"
	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/parameters"
	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/participants"
	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/server"
	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/google/uuid"
)

// 轮次阶段（按发生顺序）
const (
	PhaseRegistering = "registering" // 等待参与方注册
	PhaseKeyExchange = "key_exchange" // 收集交换公钥
	PhaseCollecting  = "collecting"   // 收集客户端份额
	PhaseAggregated  = "aggregated"   // 已聚合出结果
)

// Coordinator 协调器主结构体
// 扮演规范中的"外部可靠信道"：广播CRS种子与交换公钥目录、
// 汇集份额并驱动聚合器，本身不接触任何私钥材料
type Coordinator struct {
	// 参与者管理
	ParticipantManager *participants.Manager

	// 参数管理
	ParameterManager *parameters.Manager

	// 份额聚合
	Aggregator *aggregator.Aggregator

	// HTTP服务器
	HTTPServer *server.HTTPServer

	// 本协议周期的加密引擎（仅用于聚合和解码，不生成客户端密钥）
	cs *mkckks.CryptoSystem

	// 轮次状态
	mu           sync.RWMutex
	roundID      string
	phase        string
	exchangeKeys map[int]string // 参与方ID -> 交换公钥Base64
	result       []float64      // 缓存的解码结果

	// websocket状态流
	statusHub *StatusHub
}

// NewCoordinator 创建新的协调器实例
func NewCoordinator(expectedN, dataSize int, port string) (*Coordinator, error) {
	paramManager, err := parameters.NewDefaultManager(dataSize)
	if err != nil {
		return nil, fmt.Errorf("创建参数管理器失败: %w", err)
	}

	cs, err := mkckks.NewCryptoSystemFromParams(paramManager.GetParams())
	if err != nil {
		return nil, fmt.Errorf("创建加密引擎失败: %w", err)
	}

	c := &Coordinator{
		ParticipantManager: participants.NewManager(expectedN),
		ParameterManager:   paramManager,
		Aggregator:         aggregator.NewAggregator(cs),
		HTTPServer:         server.NewHTTPServer(port),
		cs:                 cs,
		roundID:            uuid.New().String(),
		phase:              PhaseRegistering,
		exchangeKeys:       make(map[int]string),
		statusHub:          NewStatusHub(),
	}
	c.setupRoutes()
	return c, nil
}

// Start 启动协调器（阻塞）
func (c *Coordinator) Start() error {
	fmt.Printf("本轮ID: %s，期望参与方: %d，向量长度: %d\n",
		c.roundID, c.ParticipantManager.ExpectedN(), c.ParameterManager.GetDataSize())
	return c.HTTPServer.Start()
}

// RoundID 当前轮次ID
func (c *Coordinator) RoundID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roundID
}

// Phase 当前轮次阶段
func (c *Coordinator) Phase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// setPhase 推进轮次阶段并广播到状态流
func (c *Coordinator) setPhase(phase string) {
	c.mu.Lock()
	if c.phase == phase {
		c.mu.Unlock()
		return
	}
	c.phase = phase
	roundID := c.roundID
	c.mu.Unlock()

	fmt.Printf("轮次 %s 进入阶段: %s\n", roundID, phase)
	c.statusHub.Broadcast(map[string]interface{}{
		"round_id": roundID,
		"phase":    phase,
	})
}

// AddExchangeKey 记录一个参与方的交换公钥
// 未注册的ID会被拒绝：陌生的键会把目录凑满并骗过完整性闸门，
// 让不完整的目录外发而静默破坏零和
func (c *Coordinator) AddExchangeKey(participantID int, pubKeyB64 string) error {
	if !c.ParticipantManager.HasParticipant(participantID) {
		return fmt.Errorf("参与方 %d 未注册，拒绝其交换公钥", participantID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseAggregated {
		return fmt.Errorf("本轮已聚合，拒绝新的交换公钥")
	}
	c.exchangeKeys[participantID] = pubKeyB64
	fmt.Printf("已收到参与方 %d 的交换公钥 (%d/%d)\n",
		participantID, len(c.exchangeKeys), c.ParticipantManager.ExpectedN())
	return nil
}

// ExchangeKeysComplete 交换公钥目录是否已集齐
// 这是掩码生成的先行屏障：目录不完整时绝不对外提供
func (c *Coordinator) ExchangeKeysComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.exchangeKeys) == c.ParticipantManager.ExpectedN()
}

// GetExchangeKeys 获取完整的交换公钥目录副本
func (c *Coordinator) GetExchangeKeys() map[int]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make(map[int]string, len(c.exchangeKeys))
	for id, pk := range c.exchangeKeys {
		keys[id] = pk
	}
	return keys
}

// GetResult 聚合并解码本轮结果（带缓存，聚合只发生一次）
func (c *Coordinator) GetResult() ([]float64, error) {
	c.mu.Lock()
	if c.result != nil {
		result := c.result
		c.mu.Unlock()
		return result, nil
	}
	c.mu.Unlock()

	result, err := c.Aggregator.GetResult(c.ParameterManager.GetDataSize())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.result = result
	c.mu.Unlock()
	c.setPhase(PhaseAggregated)
	return result, nil
}

// ResetRound 轮换到新一轮：清空份额、交换公钥和缓存结果
func (c *Coordinator) ResetRound() {
	c.Aggregator.Reset()

	c.mu.Lock()
	c.roundID = uuid.New().String()
	c.exchangeKeys = make(map[int]string)
	c.result = nil
	c.phase = PhaseKeyExchange
	roundID := c.roundID
	c.mu.Unlock()

	fmt.Printf("已轮换到新一轮: %s\n", roundID)
	c.statusHub.Broadcast(map[string]interface{}{
		"round_id": roundID,
		"phase":    PhaseKeyExchange,
	})
}
