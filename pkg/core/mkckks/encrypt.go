package mkckks

import (
	"github.com/tuneinsight/lattigo/v6/ring"
)

// CiphertextShare 合并加密与部分解密的输出(c0, d)
// d是本客户端对自身密文的部分解密分量，不是标准二分量密文的c1
type CiphertextShare struct {
	C0 ring.Poly
	D  ring.Poly
}

// ClientShare 发往聚合器的唯一载荷(c0, d_masked = d + mask)
type ClientShare struct {
	C0      ring.Poly
	DMasked ring.Poly
}

// Encrypt 合并的加密与部分解密
//
//	c0  = v*b + m + e0
//	c1' = v*a + e1
//	d   = c1'*s + e*（e*为大方差掩盖噪声）
//
// 本协议中每个客户端只为自己的密文持有密钥，因此部分解密步骤
// 直接折叠进加密，省掉一轮交互
func (cs *CryptoSystem) Encrypt(pk *PublicKey, sk *SecretKey, m ring.Poly) CiphertextShare {
	ringQ := cs.RingQ
	level := ringQ.MaxLevel()

	// NTT(MForm(v))
	v := cs.ternarySampler.ReadNew()
	ringQ.NTT(v, v)

	e0 := cs.gaussianSampler.AtLevel(level).ReadNew()
	ringQ.NTT(e0, e0)
	e1 := cs.gaussianSampler.AtLevel(level).ReadNew()
	ringQ.NTT(e1, e1)

	// c0 = v*b + m + e0
	c0 := ringQ.NewPoly()
	ringQ.MulCoeffsMontgomery(v, pk.B, c0)
	ringQ.Add(c0, m, c0)
	ringQ.Add(c0, e0, c0)

	// c1' = v*a + e1
	c1 := ringQ.NewPoly()
	ringQ.MulCoeffsMontgomery(v, pk.A, c1)
	ringQ.Add(c1, e1, c1)

	// d = c1'*s + e*
	d := ringQ.NewPoly()
	ringQ.MulCoeffsMontgomery(sk.s, c1, d)
	eStar := cs.smudgeSampler.AtLevel(level).ReadNew()
	ringQ.NTT(eStar, eStar)
	ringQ.Add(d, eStar, d)

	return CiphertextShare{C0: c0, D: d}
}
