package services

import (
	"fmt"
	"math/rand"

	"github.com/Emmaka9/secure-fl/pkg/core/masking"
	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// Client 客户端协议单元
// 持有本方的同态密钥对、交换密钥对和私有数据，
// 每轮编排 编码 -> 合并加密/部分解密 -> 掩码 生成一个外发份额
type Client struct {
	ID int

	cs           *mkckks.CryptoSystem
	keys         *mkckks.KeyPair
	exchangeKeys *masking.ExchangeKeyPair

	data []float64
}

// NewClient 创建客户端：基于公共参考多项式生成同态密钥对和交换密钥对
// 采样器和编码器非并发安全，因此每个客户端持有自己独立的加密引擎，
// 与其他客户端只共享只读的参数和CRS
func NewClient(id int, cs *mkckks.CryptoSystem, crs ring.Poly) (*Client, error) {
	ownCS, err := mkckks.NewCryptoSystemFromParams(cs.Params)
	if err != nil {
		return nil, fmt.Errorf("客户端%d加密引擎创建失败: %w", id, err)
	}
	exchangeKeys, err := masking.GenerateExchangeKeys()
	if err != nil {
		return nil, fmt.Errorf("客户端%d交换密钥生成失败: %w", id, err)
	}
	return &Client{
		ID:           id,
		cs:           ownCS,
		keys:         ownCS.GenKeyPair(crs),
		exchangeKeys: exchangeKeys,
	}, nil
}

// ExchangePublicKey 本方交换公钥的序列化字节，用于广播
func (c *Client) ExchangePublicKey() []byte {
	return c.exchangeKeys.PublicKeyBytes()
}

// GenerateData 生成[minVal, maxVal)内均匀分布的随机私有向量
func (c *Client) GenerateData(dataSize int, minVal, maxVal float64) {
	c.data = make([]float64, dataSize)
	for i := range c.data {
		c.data[i] = minVal + rand.Float64()*(maxVal-minVal)
	}
}

// SetData 设置私有向量
func (c *Client) SetData(data []float64) {
	c.data = data
}

// Data 本方私有向量
func (c *Client) Data() []float64 {
	return c.data
}

// PrepareShare 生成本轮外发份额(c0, d + mask)
// 前置条件：peerPubKeys已包含全部参与方的交换公钥（含缺失会静默破坏零和）
func (c *Client) PrepareShare(peerPubKeys map[int][]byte) (mkckks.ClientShare, error) {
	encoded, err := c.cs.EncodeVector(c.data)
	if err != nil {
		return mkckks.ClientShare{}, fmt.Errorf("客户端%d数据编码失败: %w", c.ID, err)
	}

	ct := c.cs.Encrypt(c.keys.Pk, c.keys.Sk, encoded)

	mask, err := masking.GenerateMask(c.ID, c.exchangeKeys, peerPubKeys, c.cs.RingQ)
	if err != nil {
		return mkckks.ClientShare{}, fmt.Errorf("客户端%d掩码生成失败: %w", c.ID, err)
	}

	dMasked := c.cs.RingQ.NewPoly()
	c.cs.RingQ.Add(ct.D, mask, dMasked)

	return mkckks.ClientShare{C0: ct.C0, DMasked: dMasked}, nil
}

// ResetRound 轮换交换密钥对
// 掩码流密码使用固定全零nonce，按轮轮换交换密钥避免跨轮密钥流复用
func (c *Client) ResetRound() error {
	exchangeKeys, err := masking.GenerateExchangeKeys()
	if err != nil {
		return fmt.Errorf("客户端%d交换密钥轮换失败: %w", c.ID, err)
	}
	c.exchangeKeys = exchangeKeys
	return nil
}

// Close 清零私钥材料
func (c *Client) Close() {
	if c.keys != nil && c.keys.Sk != nil {
		c.keys.Sk.Zeroize()
	}
	c.exchangeKeys = nil
}
