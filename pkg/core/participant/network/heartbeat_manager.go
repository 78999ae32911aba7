package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HeartbeatManager 心跳和在线状态管理
type HeartbeatManager struct {
	coordinatorURL string
	client         *http.Client
	participantID  int
	interval       time.Duration
	silentMode     bool
	stopCh         chan struct{}
}

// NewHeartbeatManager 创建新的心跳管理器
func NewHeartbeatManager(coordinatorURL string, participantID int) *HeartbeatManager {
	return &HeartbeatManager{
		coordinatorURL: coordinatorURL,
		client:         &http.Client{Timeout: 10 * time.Second},
		participantID:  participantID,
		//心跳间隔5s，与协调器10s超时匹配
		interval: 5 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动心跳循环
func (hm *HeartbeatManager) Start() {
	fmt.Printf("心跳管理器启动，参与方ID: %d，间隔: %v\n", hm.participantID, hm.interval)
	go hm.run()
}

func (hm *HeartbeatManager) run() {
	ticker := time.NewTicker(hm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := hm.sendHeartbeat(); err != nil && !hm.silentMode {
				fmt.Printf("心跳发送失败: %v\n", err)
			}
		case <-hm.stopCh:
			fmt.Printf("心跳管理器停止\n")
			return
		}
	}
}

// sendHeartbeat 发送心跳
func (hm *HeartbeatManager) sendHeartbeat() error {
	jsonData, err := json.Marshal(map[string]interface{}{
		"participant_id": hm.participantID,
	})
	if err != nil {
		return err
	}

	resp, err := hm.client.Post(hm.coordinatorURL+"/heartbeat", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("心跳响应状态码错误: %d", resp.StatusCode)
	}
	return nil
}

// SendInitialHeartbeat 发送初始心跳
func (hm *HeartbeatManager) SendInitialHeartbeat() error {
	return hm.sendHeartbeat()
}

// GetOnlineStatus 获取在线状态信息
func (hm *HeartbeatManager) GetOnlineStatus() (map[string]interface{}, error) {
	resp, err := hm.client.Get(hm.coordinatorURL + "/status/online")
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

// SetSilentMode 设置静默模式
func (hm *HeartbeatManager) SetSilentMode(silent bool) {
	hm.silentMode = silent
}

// Stop 停止心跳
func (hm *HeartbeatManager) Stop() {
	close(hm.stopCh)
}
