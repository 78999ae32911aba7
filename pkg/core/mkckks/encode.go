package mkckks

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// EncodeVector 将浮点向量编码为NTT域环元素（CKKS打包，默认缩放因子）
func (cs *CryptoSystem) EncodeVector(values []float64) (ring.Poly, error) {
	if len(values) > cs.Params.MaxSlots() {
		return ring.Poly{}, fmt.Errorf("向量长度%d超过可打包槽位数%d", len(values), cs.Params.MaxSlots())
	}
	pt := ckks.NewPlaintext(cs.Params, cs.Params.MaxLevel())
	if err := cs.encoder.Encode(values, pt); err != nil {
		return ring.Poly{}, fmt.Errorf("向量编码失败: %w", err)
	}
	return pt.Value, nil
}

// DecodeAggregate 将聚合后的环元素解码为长度dataSize的浮点向量
// 纯函数：同一输入多次解码结果完全一致
func (cs *CryptoSystem) DecodeAggregate(agg ring.Poly, dataSize int) ([]float64, error) {
	if dataSize > cs.Params.MaxSlots() {
		return nil, fmt.Errorf("dataSize %d超过可打包槽位数%d", dataSize, cs.Params.MaxSlots())
	}
	pt := ckks.NewPlaintext(cs.Params, cs.Params.MaxLevel())
	pt.Value = agg
	out := make([]float64, cs.Params.MaxSlots())
	if err := cs.encoder.Decode(pt, out); err != nil {
		return nil, fmt.Errorf("聚合结果解码失败: %w", err)
	}
	return out[:dataSize], nil
}
