package masking

import (
	"errors"
	"testing"

	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

func newTestRing(t *testing.T) *ring.Ring {
	t.Helper()
	cs, err := mkckks.NewCryptoSystem(ckks.ParametersLiteral{
		LogN:            12,
		LogQ:            []int{55, 45, 45},
		LogP:            []int{61},
		LogDefaultScale: 45,
		RingType:        ring.Standard,
	})
	require.NoError(t, err)
	return cs.RingQ
}

func TestSharedSecretSymmetry(t *testing.T) {
	alice, err := GenerateExchangeKeys()
	require.NoError(t, err)
	bob, err := GenerateExchangeKeys()
	require.NoError(t, err)

	s1, err := alice.DeriveSharedSecret(bob.PublicKeyBytes())
	require.NoError(t, err)
	s2, err := bob.DeriveSharedSecret(alice.PublicKeyBytes())
	require.NoError(t, err)
	require.Equal(t, s1, s2)
	require.NotEmpty(t, s1)
}

func TestDeserializeMalformedKey(t *testing.T) {
	_, err := DeserializePublicKey([]byte{1, 2, 3})
	require.Error(t, err)

	var keyErr *KeyExchangeError
	require.True(t, errors.As(err, &keyErr))
	require.Equal(t, "deserialize", keyErr.Op)
}

func TestDeriveWithMalformedPeerKey(t *testing.T) {
	kp, err := GenerateExchangeKeys()
	require.NoError(t, err)

	_, err = kp.DeriveSharedSecret([]byte("not a point"))
	var keyErr *KeyExchangeError
	require.True(t, errors.As(err, &keyErr))
}

func TestExpandToPolyDeterministic(t *testing.T) {
	ringQ := newTestRing(t)
	secret := []byte("some shared secret bytes for the test")

	p1, err := ExpandToPoly(secret, ringQ)
	require.NoError(t, err)
	p2, err := ExpandToPoly(secret, ringQ)
	require.NoError(t, err)
	require.Equal(t, p1.Coeffs, p2.Coeffs)

	p3, err := ExpandToPoly([]byte("a different secret"), ringQ)
	require.NoError(t, err)
	require.NotEqual(t, p1.Coeffs, p3.Coeffs)
}

func TestExpandToPolyCoeffsInRange(t *testing.T) {
	ringQ := newTestRing(t)

	p, err := ExpandToPoly([]byte("range check secret"), ringQ)
	require.NoError(t, err)
	for i, sub := range ringQ.SubRings {
		for _, c := range p.Coeffs[i] {
			require.Less(t, c, sub.Modulus)
		}
	}
}

// 完整一致的目录下，所有客户端掩码之和必须逐系数精确为零
func TestMaskZeroSum(t *testing.T) {
	ringQ := newTestRing(t)

	for _, n := range []int{1, 2, 3, 5} {
		keys := make([]*ExchangeKeyPair, n)
		directory := make(map[int][]byte, n)
		for i := 0; i < n; i++ {
			kp, err := GenerateExchangeKeys()
			require.NoError(t, err)
			keys[i] = kp
			directory[i] = kp.PublicKeyBytes()
		}

		sum := ringQ.NewPoly()
		for i := 0; i < n; i++ {
			mask, err := GenerateMask(i, keys[i], directory, ringQ)
			require.NoError(t, err)
			ringQ.Add(sum, mask, sum)
		}

		for lvl := range sum.Coeffs {
			for _, c := range sum.Coeffs[lvl] {
				require.Zero(t, c, "n=%d", n)
			}
		}
	}
}

// 单客户端目录只含自己，掩码为零元素
func TestMaskSingleClientIsZero(t *testing.T) {
	ringQ := newTestRing(t)

	kp, err := GenerateExchangeKeys()
	require.NoError(t, err)
	mask, err := GenerateMask(0, kp, map[int][]byte{0: kp.PublicKeyBytes()}, ringQ)
	require.NoError(t, err)

	for lvl := range mask.Coeffs {
		for _, c := range mask.Coeffs[lvl] {
			require.Zero(t, c)
		}
	}
}

// 非零掩码：两个客户端的掩码互为相反数且非零
func TestMaskPairOpposite(t *testing.T) {
	ringQ := newTestRing(t)

	a, err := GenerateExchangeKeys()
	require.NoError(t, err)
	b, err := GenerateExchangeKeys()
	require.NoError(t, err)
	directory := map[int][]byte{0: a.PublicKeyBytes(), 1: b.PublicKeyBytes()}

	m0, err := GenerateMask(0, a, directory, ringQ)
	require.NoError(t, err)
	m1, err := GenerateMask(1, b, directory, ringQ)
	require.NoError(t, err)
	require.NotEqual(t, m0.Coeffs, m1.Coeffs)

	zero := ringQ.NewPoly()
	require.NotEqual(t, zero.Coeffs, m0.Coeffs)

	sum := ringQ.NewPoly()
	ringQ.Add(m0, m1, sum)
	require.Equal(t, zero.Coeffs, sum.Coeffs)
}

func TestGenerateMaskMalformedDirectory(t *testing.T) {
	ringQ := newTestRing(t)

	kp, err := GenerateExchangeKeys()
	require.NoError(t, err)
	directory := map[int][]byte{
		0: kp.PublicKeyBytes(),
		1: {0xde, 0xad, 0xbe, 0xef},
	}

	_, err = GenerateMask(0, kp, directory, ringQ)
	require.Error(t, err)
	var keyErr *KeyExchangeError
	require.True(t, errors.As(err, &keyErr))
}
