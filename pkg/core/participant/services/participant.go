package services

import (
	"fmt"
	"time"

	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/Emmaka9/secure-fl/pkg/core/participant/coordinator"
	"github.com/Emmaka9/secure-fl/pkg/core/participant/network"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// Participant 远程参与方主结构体
// 把协议单元、协调器客户端和心跳管理器组合成完整的远程参与方
type Participant struct {
	ID int

	CoordinatorClient *coordinator.CoordinatorClient
	HeartbeatManager  *network.HeartbeatManager

	Unit *Client

	cs       *mkckks.CryptoSystem
	crs      ring.Poly
	dataSize int
	Ready    bool
}

// NewParticipant 创建远程参与方实例（尚未注册）
func NewParticipant(coordinatorURL string) *Participant {
	return &Participant{
		CoordinatorClient: coordinator.NewCoordinatorClient(coordinatorURL),
	}
}

// Setup 完成注册和参数同步
// 注册 -> 启动心跳 -> 拉取参数 -> 由CRS种子重建公共参考多项式 -> 初始化协议单元
func (p *Participant) Setup() error {
	regResp, err := p.CoordinatorClient.Register()
	if err != nil {
		return fmt.Errorf("注册失败: %w", err)
	}
	p.ID = regResp.ParticipantID

	p.HeartbeatManager = network.NewHeartbeatManager(
		p.CoordinatorClient.BaseURL(), p.ID)
	if err := p.HeartbeatManager.SendInitialHeartbeat(); err != nil {
		fmt.Printf("初始心跳发送失败: %v\n", err)
	}
	p.HeartbeatManager.Start()

	params, err := p.CoordinatorClient.GetParams()
	if err != nil {
		return fmt.Errorf("获取参数失败: %w", err)
	}
	p.dataSize = params.DataSize

	cs, err := mkckks.NewCryptoSystem(params.Params)
	if err != nil {
		return fmt.Errorf("密码系统初始化失败: %w", err)
	}
	p.cs = cs

	// 所有参与方从同一种子重建同一个CRS多项式
	crs, err := cs.CommonRefPolyFromSeed(params.CommonCRSSeed)
	if err != nil {
		return fmt.Errorf("CRS重建失败: %w", err)
	}
	p.crs = crs

	unit, err := NewClient(p.ID, cs, crs)
	if err != nil {
		return fmt.Errorf("协议单元创建失败: %w", err)
	}
	p.Unit = unit

	p.Ready = true
	fmt.Printf("参与方 %d 初始化完成，向量长度: %d\n", p.ID, p.dataSize)
	return nil
}

// DataSize 本轮聚合的向量长度
func (p *Participant) DataSize() int {
	return p.dataSize
}

// RunRound 执行一轮安全聚合
// 上传交换公钥 -> 等待目录集齐 -> 生成并提交份额 -> 等待聚合结果
func (p *Participant) RunRound(data []float64, timeout time.Duration) ([]float64, error) {
	if !p.Ready {
		return nil, fmt.Errorf("参与方尚未完成初始化")
	}
	if len(data) != p.dataSize {
		return nil, fmt.Errorf("向量长度不匹配: got %d, want %d", len(data), p.dataSize)
	}
	p.Unit.SetData(data)

	if err := p.CoordinatorClient.UploadExchangeKey(p.Unit.ExchangePublicKey()); err != nil {
		return nil, fmt.Errorf("上传交换公钥失败: %w", err)
	}

	peerKeys, err := p.CoordinatorClient.WaitForExchangeKeys(timeout)
	if err != nil {
		return nil, fmt.Errorf("等待交换公钥目录失败: %w", err)
	}

	share, err := p.Unit.PrepareShare(peerKeys)
	if err != nil {
		return nil, fmt.Errorf("份额生成失败: %w", err)
	}

	if err := p.CoordinatorClient.UploadShare(share); err != nil {
		return nil, fmt.Errorf("提交份额失败: %w", err)
	}

	result, err := p.CoordinatorClient.WaitForResult(timeout)
	if err != nil {
		return nil, fmt.Errorf("等待聚合结果失败: %w", err)
	}
	return result, nil
}

// NextRound 为下一轮轮换交换密钥对
func (p *Participant) NextRound() error {
	return p.Unit.ResetRound()
}

// Shutdown 停止心跳并清零密钥材料
func (p *Participant) Shutdown() {
	if p.HeartbeatManager != nil {
		p.HeartbeatManager.Stop()
	}
	if p.Unit != nil {
		p.Unit.Close()
	}
}
