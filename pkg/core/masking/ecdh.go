// 成对密钥交换：P-384曲线ECDH
// 交换密钥对仅用于导出两两共享秘密，归持有方独占，每轮轮换
package masking

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// KeyExchangeError 对端公钥损坏或曲线不匹配等密钥交换失败
type KeyExchangeError struct {
	Op  string
	Err error
}

func (e *KeyExchangeError) Error() string {
	return fmt.Sprintf("密钥交换失败(%s): %v", e.Op, e.Err)
}

func (e *KeyExchangeError) Unwrap() error {
	return e.Err
}

// ExchangeKeyPair 一个客户端的ECDH交换密钥对
type ExchangeKeyPair struct {
	priv *ecdh.PrivateKey
}

// GenerateExchangeKeys 生成新的P-384交换密钥对
func GenerateExchangeKeys() (*ExchangeKeyPair, error) {
	priv, err := ecdh.P384().GenerateKey(rand.Reader)
	if err != nil {
		return nil, &KeyExchangeError{Op: "keygen", Err: err}
	}
	return &ExchangeKeyPair{priv: priv}, nil
}

// PublicKeyBytes 序列化公钥半部（未压缩点格式），用于广播
func (kp *ExchangeKeyPair) PublicKeyBytes() []byte {
	return kp.priv.PublicKey().Bytes()
}

// DeserializePublicKey 反序列化对端公钥，损坏输入返回KeyExchangeError
func DeserializePublicKey(pubKeyBytes []byte) (*ecdh.PublicKey, error) {
	pub, err := ecdh.P384().NewPublicKey(pubKeyBytes)
	if err != nil {
		return nil, &KeyExchangeError{Op: "deserialize", Err: err}
	}
	return pub, nil
}

// DeriveSharedSecret 用本方私钥和对端公钥字节导出共享秘密
// ECDH可交换：secret(i,j) == secret(j,i)
func (kp *ExchangeKeyPair) DeriveSharedSecret(peerPubKeyBytes []byte) ([]byte, error) {
	peerPub, err := DeserializePublicKey(peerPubKeyBytes)
	if err != nil {
		return nil, err
	}
	secret, err := kp.priv.ECDH(peerPub)
	if err != nil {
		return nil, &KeyExchangeError{Op: "derive", Err: err}
	}
	return secret, nil
}
