package mkckks

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// testParametersLiteral 测试用小参数（LogN=12，加速测试）
func testParametersLiteral() ckks.ParametersLiteral {
	return ckks.ParametersLiteral{
		LogN:            12,
		LogQ:            []int{55, 45, 45},
		LogP:            []int{61},
		LogDefaultScale: 45,
		RingType:        ring.Standard,
	}
}

func newTestSystem(t *testing.T) *CryptoSystem {
	t.Helper()
	cs, err := NewCryptoSystem(testParametersLiteral())
	require.NoError(t, err)
	return cs
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	cs := newTestSystem(t)

	values := []float64{1.5, -2.25, 3.125, 0, 100.5, -0.001}
	m, err := cs.EncodeVector(values)
	require.NoError(t, err)

	decoded, err := cs.DecodeAggregate(m, len(values))
	require.NoError(t, err)
	require.Len(t, decoded, len(values))
	for i := range values {
		require.InDelta(t, values[i], decoded[i], 1e-6)
	}
}

func TestEncodeVectorTooLong(t *testing.T) {
	cs := newTestSystem(t)

	values := make([]float64, cs.MaxSlots()+1)
	_, err := cs.EncodeVector(values)
	require.Error(t, err)
}

func TestDecodeAggregateIdempotent(t *testing.T) {
	cs := newTestSystem(t)

	values := []float64{3.5, -1.25, 7.75, 2.0}
	m, err := cs.EncodeVector(values)
	require.NoError(t, err)

	first, err := cs.DecodeAggregate(m, len(values))
	require.NoError(t, err)
	second, err := cs.DecodeAggregate(m, len(values))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// 单客户端场景下 c0 + d = m + 小噪声，解码应还原明文
func TestEncryptPartialDecryptRoundtrip(t *testing.T) {
	cs := newTestSystem(t)
	crs := cs.GenCommonRefPoly()
	kp := cs.GenKeyPair(crs)

	values := []float64{1.0, 2.0, -3.5, 4.25, 0, -100.75}
	m, err := cs.EncodeVector(values)
	require.NoError(t, err)

	ct := cs.Encrypt(kp.Pk, kp.Sk, m)

	sum := cs.RingQ.NewPoly()
	cs.RingQ.Add(ct.C0, ct.D, sum)

	decoded, err := cs.DecodeAggregate(sum, len(values))
	require.NoError(t, err)
	for i := range values {
		require.InDelta(t, values[i], decoded[i], 1e-3)
	}
}

// 同一密文的两次加密使用独立随机量，c0必须不同
func TestEncryptRandomized(t *testing.T) {
	cs := newTestSystem(t)
	crs := cs.GenCommonRefPoly()
	kp := cs.GenKeyPair(crs)

	values := []float64{1.0, 2.0}
	m, err := cs.EncodeVector(values)
	require.NoError(t, err)

	ct1 := cs.Encrypt(kp.Pk, kp.Sk, m)
	ct2 := cs.Encrypt(kp.Pk, kp.Sk, m)
	require.NotEqual(t, ct1.C0.Coeffs, ct2.C0.Coeffs)
}

func TestCommonRefPolyFromSeedDeterministic(t *testing.T) {
	cs1 := newTestSystem(t)
	cs2 := newTestSystem(t)

	seed := []byte("0123456789abcdef0123456789abcdef")
	a1, err := cs1.CommonRefPolyFromSeed(seed)
	require.NoError(t, err)
	a2, err := cs2.CommonRefPolyFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, a1.Coeffs, a2.Coeffs)

	other, err := cs1.CommonRefPolyFromSeed([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	require.NotEqual(t, a1.Coeffs, other.Coeffs)
}

func TestSecretKeyZeroize(t *testing.T) {
	cs := newTestSystem(t)
	crs := cs.GenCommonRefPoly()
	kp := cs.GenKeyPair(crs)

	kp.Sk.Zeroize()
	for i := range kp.Sk.s.Coeffs {
		for _, c := range kp.Sk.s.Coeffs[i] {
			require.Zero(t, c)
		}
	}
}
