package masking

import (
	"encoding/binary"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/ring"
	"golang.org/x/crypto/chacha20"
)

// ExpandToPoly 把共享秘密扩展为一个伪随机环元素
// ChaCha20以共享秘密（截断/零填充到32字节）为密钥、全零nonce，
// 为环的每个剩余分量生成N个64位值并对相应模数取余。
// 确定性且对称：同一对客户端各自导出的环元素完全相同
func ExpandToPoly(secret []byte, ringQ *ring.Ring) (ring.Poly, error) {
	key := make([]byte, chacha20.KeySize)
	copy(key, secret)
	nonce := make([]byte, chacha20.NonceSize)

	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return ring.Poly{}, fmt.Errorf("掩码流密码初始化失败: %w", err)
	}

	n := ringQ.N()
	towers := len(ringQ.SubRings)
	buf := make([]byte, 8*n*towers)
	stream.XORKeyStream(buf, buf)

	p := ringQ.NewPoly()
	offset := 0
	for i := 0; i < towers; i++ {
		qi := ringQ.SubRings[i].Modulus
		coeffs := p.Coeffs[i]
		for j := 0; j < n; j++ {
			coeffs[j] = binary.LittleEndian.Uint64(buf[offset:]) % qi
			offset += 8
		}
	}
	return p, nil
}

// GenerateMask 由全部两两共享秘密生成本客户端的加性掩码
// id较小方减、较大方加，同一对的贡献互为相反数，
// 因而在完整一致的对端集合下所有客户端掩码之和恰为零元素。
// 前置条件：peerPubKeys为完整集合且所有客户端视图一致，
// 不完整的集合会静默破坏零和性质而不报错
func GenerateMask(myID int, myKeys *ExchangeKeyPair, peerPubKeys map[int][]byte, ringQ *ring.Ring) (ring.Poly, error) {
	mask := ringQ.NewPoly()

	for peerID, peerPub := range peerPubKeys {
		if peerID == myID {
			continue
		}
		secret, err := myKeys.DeriveSharedSecret(peerPub)
		if err != nil {
			return ring.Poly{}, fmt.Errorf("与对端%d的共享秘密导出失败: %w", peerID, err)
		}
		pairwise, err := ExpandToPoly(secret, ringQ)
		if err != nil {
			return ring.Poly{}, err
		}
		if myID < peerID {
			ringQ.Sub(mask, pairwise, mask)
		} else {
			ringQ.Add(mask, pairwise, mask)
		}
	}
	return mask, nil
}
