package services

import (
	"sync"
	"testing"

	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

func newTestSystem(t *testing.T) (*mkckks.CryptoSystem, ring.Poly) {
	t.Helper()
	cs, err := mkckks.NewCryptoSystem(ckks.ParametersLiteral{
		LogN:            12,
		LogQ:            []int{55, 45, 45},
		LogP:            []int{61},
		LogDefaultScale: 45,
		RingType:        ring.Standard,
	})
	require.NoError(t, err)
	return cs, cs.GenCommonRefPoly()
}

// 多个客户端由同一个父引擎创建后并发生成份额
// 每个客户端必须持有独立的采样器状态，-race下不得有数据竞争，
// 且并发生成的份额之和仍须解码出正确的明文和
func TestConcurrentPrepareShare(t *testing.T) {
	const (
		n        = 4
		dataSize = 16
	)
	cs, crs := newTestSystem(t)

	clients := make([]*Client, n)
	directory := make(map[int][]byte, n)
	expected := make([]float64, dataSize)
	for i := 0; i < n; i++ {
		c, err := NewClient(i, cs, crs)
		require.NoError(t, err)
		clients[i] = c
		directory[i] = c.ExchangePublicKey()

		data := make([]float64, dataSize)
		for j := range data {
			data[j] = float64(i*dataSize + j)
			expected[j] += data[j]
		}
		c.SetData(data)
	}

	shares := make([]mkckks.ClientShare, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			shares[idx], errs[idx] = clients[idx].PrepareShare(directory)
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}

	ringQ := cs.RingQ
	sum := ringQ.NewPoly()
	for _, s := range shares {
		ringQ.Add(sum, s.C0, sum)
		ringQ.Add(sum, s.DMasked, sum)
	}
	result, err := cs.DecodeAggregate(sum, dataSize)
	require.NoError(t, err)
	for j := range expected {
		require.InDelta(t, expected[j], result[j], 1e-3)
	}
}
