package mkckks

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/utils/sampling"
)

// GenCommonRefPoly 生成公共参考多项式a（每个协议周期生成一次）
// 均匀随机采样后转入NTT域，所有参与方共享同一个a
func (cs *CryptoSystem) GenCommonRefPoly() ring.Poly {
	a := cs.uniformSampler.ReadNew()
	cs.RingQ.NTT(a, a)
	return a
}

// CommonRefPolyFromSeed 用统一种子确定性地生成公共参考多项式
// 协调器只需分发种子，各参与方本地导出完全相同的a
func (cs *CryptoSystem) CommonRefPolyFromSeed(seed []byte) (ring.Poly, error) {
	prng, err := sampling.NewKeyedPRNG(seed)
	if err != nil {
		return ring.Poly{}, fmt.Errorf("CRS种子PRNG初始化失败: %w", err)
	}
	us, err := ring.NewSampler(prng, cs.RingQ, ring.Uniform{}, false)
	if err != nil {
		return ring.Poly{}, err
	}
	a := us.ReadNew()
	cs.RingQ.NTT(a, a)
	return a, nil
}
