// 聚合器（服务端）：收集客户端份额，求和并解码
// 只持有传输来的份额副本，永不接触任何私钥材料
package aggregator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// ErrNoShares 在没有任何已收集份额时尝试聚合
var ErrNoShares = errors.New("没有可聚合的客户端份额")

// ErrRoundClosed 本轮已聚合完成，收集阶段已关闭
var ErrRoundClosed = errors.New("本轮收集阶段已关闭，需先Reset")

// Aggregator 单轮聚合状态机：collecting -> aggregated
// 份额按客户端ID键控（重复提交覆盖而非重复计数），
// Aggregate之后拒绝继续收集，Reset轮换到新一轮
type Aggregator struct {
	cs *mkckks.CryptoSystem

	mu         sync.Mutex
	shares     map[int]mkckks.ClientShare
	aggregated bool
}

// NewAggregator 创建新的聚合器实例
func NewAggregator(cs *mkckks.CryptoSystem) *Aggregator {
	return &Aggregator{
		cs:     cs,
		shares: make(map[int]mkckks.ClientShare),
	}
}

// CollectShare 收集一个客户端份额
// 同一客户端的重复提交覆盖旧值；收集阶段关闭后返回ErrRoundClosed
func (a *Aggregator) CollectShare(clientID int, share mkckks.ClientShare) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aggregated {
		return ErrRoundClosed
	}
	a.shares[clientID] = share
	return nil
}

// ShareCount 已收集的份额数
func (a *Aggregator) ShareCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.shares)
}

// Aggregate 关闭收集阶段并计算 Σc0 + Σd_masked
// 掩码精确相消后，结果即 Σ(c0_i + d_i)，等于所有明文之和（带有界噪声）
func (a *Aggregator) Aggregate() (ring.Poly, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.shares) == 0 {
		return ring.Poly{}, ErrNoShares
	}
	a.aggregated = true

	ringQ := a.cs.RingQ
	sumC0 := ringQ.NewPoly()
	sumD := ringQ.NewPoly()
	for _, share := range a.shares {
		ringQ.Add(sumC0, share.C0, sumC0)
		ringQ.Add(sumD, share.DMasked, sumD)
	}

	result := ringQ.NewPoly()
	ringQ.Add(sumC0, sumD, result)
	return result, nil
}

// DecodeResult 将聚合结果解码为长度dataSize的浮点向量
func (a *Aggregator) DecodeResult(agg ring.Poly, dataSize int) ([]float64, error) {
	return a.cs.DecodeAggregate(agg, dataSize)
}

// GetResult 聚合并解码，一步得到最终向量
func (a *Aggregator) GetResult(dataSize int) ([]float64, error) {
	agg, err := a.Aggregate()
	if err != nil {
		return nil, err
	}
	result, err := a.cs.DecodeAggregate(agg, dataSize)
	if err != nil {
		return nil, fmt.Errorf("聚合结果解码失败: %w", err)
	}
	return result, nil
}

// Reset 清空份额并重新打开收集阶段（轮换到新一轮）
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shares = make(map[int]mkckks.ClientShare)
	a.aggregated = false
}
