package participants

import (
	"fmt"
	"sync"
	"time"

	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/utils"
)

// Manager 参与者管理器
// 维护注册表、URL映射和心跳在线状态
type Manager struct {
	participants    map[int]*utils.ParticipantInfo
	participantURLs map[int]string // 参与方ID -> URL映射
	nextID          int
	mu              sync.RWMutex

	// 在线状态管理
	heartbeats        map[int]time.Time // 参与方ID -> 最后心跳时间
	onlineTimeout     time.Duration     // 心跳超时时间
	minParticipants   int               // 最小参与方数量阈值
	heartbeatInterval time.Duration     // 心跳间隔
	expectedN         int
}

// NewManager 创建新的参与者管理器
func NewManager(expectedN int) *Manager {
	return &Manager{
		participants:    make(map[int]*utils.ParticipantInfo),
		participantURLs: make(map[int]string),
		nextID:          0,
		heartbeats:      make(map[int]time.Time),
		//心跳超时时间10s
		onlineTimeout: 10 * time.Second,
		//本协议不设门限，所有期望参与方必须在线
		minParticipants: expectedN,
		//心跳间隔5s
		heartbeatInterval: 5 * time.Second,
		expectedN:         expectedN,
	}
}

// ExpectedN 期望的参与方数量
func (m *Manager) ExpectedN() int {
	return m.expectedN
}

// Register 注册新参与方，返回分配的ID（从0开始递增）
func (m *Manager) Register() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.participants) >= m.expectedN {
		return 0, fmt.Errorf("参与方已满: %d/%d", len(m.participants), m.expectedN)
	}

	id := m.nextID
	m.nextID++
	m.participants[id] = &utils.ParticipantInfo{ID: id, Status: "registered"}
	m.heartbeats[id] = time.Now()
	fmt.Printf("参与方 %d 注册成功 (%d/%d)\n", id, len(m.participants), m.expectedN)
	return id, nil
}

// AddParticipantURL 添加参与方URL
func (m *Manager) AddParticipantURL(participantID int, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.participants[participantID]; !exists {
		return fmt.Errorf("参与方 %d 不存在", participantID)
	}
	m.participantURLs[participantID] = url
	return nil
}

// GetAllParticipantURLs 获取所有参与方URL列表
func (m *Manager) GetAllParticipantURLs() []utils.PeerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var peerInfos []utils.PeerInfo
	for id, url := range m.participantURLs {
		peerInfos = append(peerInfos, utils.PeerInfo{ID: id, URL: url})
	}
	return peerInfos
}

// GetParticipants 获取所有参与方信息
func (m *Manager) GetParticipants() []*utils.ParticipantInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var participants []*utils.ParticipantInfo
	for _, p := range m.participants {
		participants = append(participants, p)
	}
	return participants
}

// HasParticipant 参与方是否已注册
func (m *Manager) HasParticipant(participantID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.participants[participantID]
	return exists
}

// AllRegistered 是否全部期望参与方都已注册
func (m *Manager) AllRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.participants) == m.expectedN
}

// UpdateHeartbeat 更新参与方心跳
func (m *Manager) UpdateHeartbeat(participantID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.participants[participantID]; !exists {
		return fmt.Errorf("参与方 %d 不存在", participantID)
	}
	m.heartbeats[participantID] = time.Now()
	return nil
}

// GetOnlineParticipants 获取在线参与方列表（心跳未超时）
func (m *Manager) GetOnlineParticipants() []*utils.ParticipantInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var online []*utils.ParticipantInfo
	for id, p := range m.participants {
		if last, ok := m.heartbeats[id]; ok && now.Sub(last) <= m.onlineTimeout {
			online = append(online, p)
		}
	}
	return online
}

// GetOnlineStatus 获取在线状态摘要
func (m *Manager) GetOnlineStatus() map[string]interface{} {
	online := m.GetOnlineParticipants()

	m.mu.RLock()
	defer m.mu.RUnlock()

	total := len(m.participants)
	percentage := 0.0
	if total > 0 {
		percentage = float64(len(online)) / float64(total) * 100
	}
	return map[string]interface{}{
		"online_count":       len(online),
		"total_count":        total,
		"online_percentage":  percentage,
		"min_participants":   m.minParticipants,
		"can_proceed":        len(online) >= m.minParticipants && total == m.expectedN,
		"online_timeout":     m.onlineTimeout.Seconds(),
		"heartbeat_interval": m.heartbeatInterval.Seconds(),
	}
}
