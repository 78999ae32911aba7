package parameters

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/utils"
	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// Manager 参数管理器
// 持有CKKS参数和统一的CRS种子，负责向参与方分发
type Manager struct {
	params             ckks.Parameters
	paramsLiteral      ckks.ParametersLiteral
	paramsLiteralBytes string // base64编码的参数字面量

	// 统一的CRS种子，所有参与方用它本地导出相同的公共参考多项式
	crsSeed    []byte
	crsSeedB64 string

	// 本轮聚合的向量长度
	dataSize int
}

// NewManager 创建新的参数管理器
func NewManager(literal ckks.ParametersLiteral, dataSize int) (*Manager, error) {
	params, err := ckks.NewParametersFromLiteral(literal)
	if err != nil {
		return nil, fmt.Errorf("CKKS参数创建失败: %w", err)
	}
	if dataSize > params.MaxSlots() {
		return nil, fmt.Errorf("dataSize %d超过可打包槽位数%d", dataSize, params.MaxSlots())
	}

	fmt.Printf("参数创建成功: LogN=%d, Q模数数量=%d, 槽位=%d\n",
		params.LogN(), params.QCount(), params.MaxSlots())

	// 生成统一的CRS种子（每个协议周期一次）
	crsSeed := make([]byte, 32)
	if _, err := rand.Read(crsSeed); err != nil {
		return nil, fmt.Errorf("CRS种子生成失败: %w", err)
	}

	// Xe/Xs固定取lattigo默认分布，保证双方由字面量重建出相同参数
	custom := utils.CustomParametersLiteral{
		LogN:            literal.LogN,
		LogQ:            literal.LogQ,
		LogP:            literal.LogP,
		Xe:              ring.DiscreteGaussian{Sigma: 3.2, Bound: 19.2},
		Xs:              ring.Ternary{H: 192},
		RingType:        literal.RingType,
		LogDefaultScale: literal.LogDefaultScale,
	}
	jsonBytes, err := json.Marshal(custom)
	if err != nil {
		return nil, fmt.Errorf("序列化参数字面量失败: %w", err)
	}

	return &Manager{
		params:             params,
		paramsLiteral:      literal,
		paramsLiteralBytes: utils.EncodeToBase64(jsonBytes),
		crsSeed:            crsSeed,
		crsSeedB64:         utils.EncodeToBase64(crsSeed),
		dataSize:           dataSize,
	}, nil
}

// NewDefaultManager 用默认参数创建参数管理器
func NewDefaultManager(dataSize int) (*Manager, error) {
	return NewManager(mkckks.DefaultParametersLiteral(), dataSize)
}

// GetParams 获取CKKS参数
func (m *Manager) GetParams() ckks.Parameters {
	return m.params
}

// GetParamsLiteral 获取参数字面量
func (m *Manager) GetParamsLiteral() ckks.ParametersLiteral {
	return m.paramsLiteral
}

// GetParamsLiteralB64 获取base64编码的参数字面量JSON
func (m *Manager) GetParamsLiteralB64() string {
	return m.paramsLiteralBytes
}

// GetCRSSeed 获取CRS种子
func (m *Manager) GetCRSSeed() []byte {
	return m.crsSeed
}

// GetCRSSeedB64 获取base64编码的CRS种子
func (m *Manager) GetCRSSeedB64() string {
	return m.crsSeedB64
}

// GetDataSize 获取本轮聚合向量长度
func (m *Manager) GetDataSize() int {
	return m.dataSize
}

// ParseLiteralB64 将base64编码的参数字面量JSON还原为ckks.ParametersLiteral
// 参与方侧使用
func ParseLiteralB64(b64 string) (ckks.ParametersLiteral, error) {
	jsonBytes, err := utils.DecodeFromBase64(b64)
	if err != nil {
		return ckks.ParametersLiteral{}, fmt.Errorf("参数字面量base64解码失败: %w", err)
	}
	var custom utils.CustomParametersLiteral
	if err := json.Unmarshal(jsonBytes, &custom); err != nil {
		return ckks.ParametersLiteral{}, fmt.Errorf("参数字面量JSON解析失败: %w", err)
	}
	return ckks.ParametersLiteral{
		LogN:            custom.LogN,
		LogQ:            custom.LogQ,
		LogP:            custom.LogP,
		Xe:              custom.Xe,
		Xs:              custom.Xs,
		RingType:        custom.RingType,
		LogDefaultScale: custom.LogDefaultScale,
	}, nil
}
