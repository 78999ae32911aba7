package utils

import (
	"github.com/tuneinsight/lattigo/v6/ring"
)

type ParticipantInfo struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

type PeerInfo struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// ExchangeKeyMsg 交换公钥上报消息（公钥字节的Base64）
type ExchangeKeyMsg struct {
	ParticipantID int    `json:"participant_id"`
	PublicKey     string `json:"public_key"`
}

// ShareMsg 客户端份额提交消息（两个环元素的gob+Base64）
type ShareMsg struct {
	ParticipantID int    `json:"participant_id"`
	C0            string `json:"c0"`
	DMasked       string `json:"d_masked"`
}

// ResultResponse 聚合结果响应
type ResultResponse struct {
	RoundID string    `json:"round_id"`
	Vector  []float64 `json:"vector"`
}

// CustomParametersLiteral 自定义参数结构体，用于正确的JSON序列化
type CustomParametersLiteral struct {
	LogN            int                   `json:"LogN"`
	LogQ            []int                 `json:"LogQ"`
	LogP            []int                 `json:"LogP"`
	Xe              ring.DiscreteGaussian `json:"Xe"`
	Xs              ring.Ternary          `json:"Xs"`
	RingType        ring.Type             `json:"RingType"`
	LogDefaultScale int                   `json:"LogDefaultScale"`
}
