package mkckks

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
	"github.com/tuneinsight/lattigo/v6/utils/sampling"
)

const (
	// NoiseSigma 加密噪声的标准差
	NoiseSigma = 3.2

	// SmudgingSigma 部分解密掩盖噪声的标准差
	// 取加密噪声的6倍，用于统计上隐藏c1'*s的精确值
	SmudgingSigma = 19.2
)

// DefaultParametersLiteral 默认CKKS参数（LogN=14，可打包8192个槽位）
func DefaultParametersLiteral() ckks.ParametersLiteral {
	return ckks.ParametersLiteral{
		LogN:            14,
		LogQ:            []int{55, 45, 45, 45, 45, 45, 45, 45},
		LogP:            []int{61},
		LogDefaultScale: 45,
		RingType:        ring.Standard,
	}
}

// CryptoSystem 多密钥CKKS加密引擎
// 持有环、编码器和采样器，归单个参与方独占使用（采样器非并发安全）
type CryptoSystem struct {
	Params  ckks.Parameters
	RingQ   *ring.Ring
	encoder *ckks.Encoder

	prng            sampling.PRNG
	ternarySampler  ring.Sampler // 私钥/加密随机量v，三值均匀分布，Montgomery域
	gaussianSampler ring.Sampler // 噪声e/e0/e1，sigma=3.2
	smudgeSampler   ring.Sampler // 部分解密的掩盖噪声e*，方差更大
	uniformSampler  ring.Sampler // CRS采样
}

// NewCryptoSystem 根据参数字面量创建加密引擎
func NewCryptoSystem(literal ckks.ParametersLiteral) (*CryptoSystem, error) {
	params, err := ckks.NewParametersFromLiteral(literal)
	if err != nil {
		return nil, fmt.Errorf("CKKS参数创建失败: %w", err)
	}
	return NewCryptoSystemFromParams(params)
}

// NewCryptoSystemFromParams 从已构造的参数创建加密引擎
func NewCryptoSystemFromParams(params ckks.Parameters) (*CryptoSystem, error) {
	ringQ := params.RingQ()

	prng, err := sampling.NewPRNG()
	if err != nil {
		return nil, fmt.Errorf("PRNG初始化失败: %w", err)
	}

	// 三值分布{-1,0,1}各1/3，采样结果直接处于Montgomery域
	ternarySampler, err := ring.NewSampler(prng, ringQ, ring.Ternary{P: 2.0 / 3.0}, true)
	if err != nil {
		return nil, err
	}

	// 离散高斯，界取6*sigma
	gaussianSampler, err := ring.NewSampler(prng, ringQ, ring.DiscreteGaussian{Sigma: NoiseSigma, Bound: 6 * NoiseSigma}, false)
	if err != nil {
		return nil, err
	}

	smudgeSampler, err := ring.NewSampler(prng, ringQ, ring.DiscreteGaussian{Sigma: SmudgingSigma, Bound: 6 * SmudgingSigma}, false)
	if err != nil {
		return nil, err
	}

	uniformSampler, err := ring.NewSampler(prng, ringQ, ring.Uniform{}, false)
	if err != nil {
		return nil, err
	}

	return &CryptoSystem{
		Params:          params,
		RingQ:           ringQ,
		encoder:         ckks.NewEncoder(params),
		prng:            prng,
		ternarySampler:  ternarySampler,
		gaussianSampler: gaussianSampler,
		smudgeSampler:   smudgeSampler,
		uniformSampler:  uniformSampler,
	}, nil
}

// MaxSlots 可打包的最大槽位数
func (cs *CryptoSystem) MaxSlots() int {
	return cs.Params.MaxSlots()
}
