package mkckks

import (
	"github.com/tuneinsight/lattigo/v6/ring"
)

// SecretKey 客户端私钥s（NTT+Montgomery域），仅归持有方所有，永不传输
type SecretKey struct {
	s ring.Poly
}

// Zeroize 清零私钥系数
func (sk *SecretKey) Zeroize() {
	for i := range sk.s.Coeffs {
		coeffs := sk.s.Coeffs[i]
		for j := range coeffs {
			coeffs[j] = 0
		}
	}
}

// PublicKey 客户端公钥(b, a)，其中a为公共参考多项式，b = -s*a + e
type PublicKey struct {
	B ring.Poly
	A ring.Poly
}

// KeyPair 一个客户端的同态密钥对
type KeyPair struct {
	Sk *SecretKey
	Pk *PublicKey
}

// GenKeyPair 基于公共参考多项式生成密钥对
// s采样自三值分布，e采样自离散高斯，b = -s*a + e
func (cs *CryptoSystem) GenKeyPair(crs ring.Poly) *KeyPair {
	ringQ := cs.RingQ

	// NTT(MForm(s))
	s := cs.ternarySampler.ReadNew()
	ringQ.NTT(s, s)

	// NTT(e)
	e := cs.gaussianSampler.AtLevel(ringQ.MaxLevel()).ReadNew()
	ringQ.NTT(e, e)

	// b = -s*a + e
	b := ringQ.NewPoly()
	ringQ.MulCoeffsMontgomery(s, crs, b)
	ringQ.Neg(b, b)
	ringQ.Add(b, e, b)

	return &KeyPair{
		Sk: &SecretKey{s: s},
		Pk: &PublicKey{B: b, A: crs},
	}
}
