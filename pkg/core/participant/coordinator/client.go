package coordinator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/parameters"
	cutils "github.com/Emmaka9/secure-fl/pkg/core/coordinator/utils"
	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"

	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// CoordinatorClient 协调器客户端
// 参与方用来和协调器通信的HTTP客户端工具
type CoordinatorClient struct {
	baseURL       string
	client        *http.Client
	participantID int
	pollInterval  time.Duration
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	ParticipantID int    `json:"participant_id"`
	RoundID       string `json:"round_id"`
	ExpectedN     int    `json:"expected_n"`
}

// ParamsResponse 协议参数响应
type ParamsResponse struct {
	Params        ckks.ParametersLiteral
	CommonCRSSeed []byte
	DataSize      int
	ExpectedN     int
	RoundID       string
}

func NewCoordinatorClient(baseURL string) *CoordinatorClient {
	return &CoordinatorClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		pollInterval: 500 * time.Millisecond,
	}
}

// ParticipantID 协调器分配的参与方ID
func (cc *CoordinatorClient) ParticipantID() int {
	return cc.participantID
}

// BaseURL 协调器基础URL
func (cc *CoordinatorClient) BaseURL() string {
	return cc.baseURL
}

// Register 注册到协调器，保存分配的参与方ID
func (cc *CoordinatorClient) Register() (*RegisterResponse, error) {
	resp, err := cc.client.Post(cc.baseURL+"/register", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("注册失败，状态码: %d", resp.StatusCode)
	}

	var regResp RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&regResp); err != nil {
		return nil, err
	}
	cc.participantID = regResp.ParticipantID
	fmt.Printf("注册成功，参与方ID: %d，轮次: %s\n", regResp.ParticipantID, regResp.RoundID)
	return &regResp, nil
}

// ReportURL 向协调器上报本方可达URL
func (cc *CoordinatorClient) ReportURL(url string) error {
	jsonData, err := json.Marshal(cutils.PeerInfo{ID: cc.participantID, URL: url})
	if err != nil {
		return err
	}
	resp, err := cc.client.Post(cc.baseURL+"/participants/url", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("上报URL失败，状态码: %d", resp.StatusCode)
	}
	return nil
}

// GetParams 获取协议参数（CKKS参数字面量、CRS种子、向量长度）
func (cc *CoordinatorClient) GetParams() (*ParamsResponse, error) {
	maxRetries := 3
	url := cc.baseURL + "/params"
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := cc.client.Get(url)
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("获取参数失败，已重试%d次: %v", maxRetries, err)
			}
			fmt.Printf("获取参数失败，第%d次尝试: %v，正在重试...\n", attempt, err)
			time.Sleep(2 * time.Second)
			continue
		}

		var raw struct {
			ParamsLiteral string `json:"params_literal"`
			CommonCRSSeed string `json:"common_crs_seed"`
			DataSize      int    `json:"data_size"`
			ExpectedN     int    `json:"expected_n"`
			RoundID       string `json:"round_id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&raw)
		resp.Body.Close()
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("解析参数失败，已重试%d次: %v", maxRetries, err)
			}
			time.Sleep(2 * time.Second)
			continue
		}

		literal, err := parameters.ParseLiteralB64(raw.ParamsLiteral)
		if err != nil {
			return nil, fmt.Errorf("参数字面量解析失败: %v", err)
		}
		seed, err := cutils.DecodeFromBase64(raw.CommonCRSSeed)
		if err != nil {
			return nil, fmt.Errorf("CRS种子解码失败: %v", err)
		}

		fmt.Printf("成功获取参数，LogN: %d，向量长度: %d\n", literal.LogN, raw.DataSize)
		return &ParamsResponse{
			Params:        literal,
			CommonCRSSeed: seed,
			DataSize:      raw.DataSize,
			ExpectedN:     raw.ExpectedN,
			RoundID:       raw.RoundID,
		}, nil
	}
	return nil, fmt.Errorf("获取参数失败，已达到最大重试次数")
}

// UploadExchangeKey 上传本方交换公钥
func (cc *CoordinatorClient) UploadExchangeKey(pubKeyBytes []byte) error {
	jsonData, err := json.Marshal(cutils.ExchangeKeyMsg{
		ParticipantID: cc.participantID,
		PublicKey:     cutils.EncodeToBase64(pubKeyBytes),
	})
	if err != nil {
		return err
	}

	resp, err := cc.client.Post(cc.baseURL+"/keys/exchange", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("上传交换公钥失败: %d", resp.StatusCode)
	}
	return nil
}

// WaitForExchangeKeys 轮询交换公钥目录直到全部集齐
// 协调器在目录未集齐前返回503，返回200即目录完整
func (cc *CoordinatorClient) WaitForExchangeKeys(timeout time.Duration) (map[int][]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := cc.client.Get(cc.baseURL + "/keys/exchange")
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			var raw struct {
				RoundID string            `json:"round_id"`
				Keys    map[string]string `json:"keys"`
			}
			err := json.NewDecoder(resp.Body).Decode(&raw)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}

			// JSON对象键为字符串，还原为参与方ID
			keys := make(map[int][]byte, len(raw.Keys))
			for idStr, keyB64 := range raw.Keys {
				id, err := strconv.Atoi(idStr)
				if err != nil {
					return nil, fmt.Errorf("交换公钥目录ID非法: %q", idStr)
				}
				keyBytes, err := cutils.DecodeFromBase64(keyB64)
				if err != nil {
					return nil, fmt.Errorf("参与方%d交换公钥解码失败: %v", id, err)
				}
				keys[id] = keyBytes
			}
			fmt.Printf("交换公钥目录集齐，共 %d 方\n", len(keys))
			return keys, nil
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusServiceUnavailable {
			return nil, fmt.Errorf("获取交换公钥目录失败，状态码: %d", resp.StatusCode)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("等待交换公钥目录超时")
		}
		time.Sleep(cc.pollInterval)
	}
}

// UploadShare 提交本轮份额(c0, d+mask)
func (cc *CoordinatorClient) UploadShare(share mkckks.ClientShare) error {
	c0B64, err := cutils.EncodeShareBase64(share.C0)
	if err != nil {
		return fmt.Errorf("c0序列化失败: %v", err)
	}
	dB64, err := cutils.EncodeShareBase64(share.DMasked)
	if err != nil {
		return fmt.Errorf("d_masked序列化失败: %v", err)
	}

	jsonData, err := json.Marshal(cutils.ShareMsg{
		ParticipantID: cc.participantID,
		C0:            c0B64,
		DMasked:       dB64,
	})
	if err != nil {
		return err
	}

	resp, err := cc.client.Post(cc.baseURL+"/shares", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("提交份额失败: %d", resp.StatusCode)
	}
	fmt.Printf("参与方 %d 份额提交成功\n", cc.participantID)
	return nil
}

// WaitForResult 轮询聚合结果直到份额集齐并完成聚合
func (cc *CoordinatorClient) WaitForResult(timeout time.Duration) ([]float64, error) {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := cc.client.Get(cc.baseURL + "/result")
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			var result cutils.ResultResponse
			err := json.NewDecoder(resp.Body).Decode(&result)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			fmt.Printf("获取聚合结果成功，向量长度: %d\n", len(result.Vector))
			return result.Vector, nil
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusServiceUnavailable {
			return nil, fmt.Errorf("获取聚合结果失败，状态码: %d", resp.StatusCode)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("等待聚合结果超时")
		}
		time.Sleep(cc.pollInterval)
	}
}

// ResetRound 请求协调器开启新一轮
func (cc *CoordinatorClient) ResetRound() error {
	resp, err := cc.client.Post(cc.baseURL+"/round/reset", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("轮次重置失败: %d", resp.StatusCode)
	}
	return nil
}

// PollStatus 查询协调器状态
func (cc *CoordinatorClient) PollStatus() (map[string]interface{}, error) {
	resp, err := cc.client.Get(cc.baseURL + "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return status, nil
}
