package services

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSessionTimeout = 2 * time.Hour
	defaultSweepInterval  = 30 * time.Minute
)

// SessionTurn 会话中的一轮问答，会话内只追加不修改
type SessionTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStats 会话只读统计信息
type SessionStats struct {
	MessageCount int       `json:"message_count"`
	LastUsed     time.Time `json:"last_used"`
	Exists       bool      `json:"exists"`
}

// sessionRecord 单个会话的记录，持有自己的锁。
// 不同会话的并发操作互不阻塞，同一会话的追加与清扫互斥。
type sessionRecord struct {
	mu           sync.Mutex
	turns        []SessionTurn
	lastAccessed time.Time
}

// SessionMemoryStore 进程内会话记忆存储，带空闲超时清扫。
// 会话总数不设上限，容量控制留给部署层（已知扩展性限制）。
type SessionMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*sessionRecord

	timeout       time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSessionMemoryStore 创建会话存储，timeout默认2小时，sweepInterval默认30分钟
func NewSessionMemoryStore(timeout, sweepInterval time.Duration, log *zap.Logger) *SessionMemoryStore {
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionMemoryStore{
		records:       make(map[string]*sessionRecord),
		timeout:       timeout,
		sweepInterval: sweepInterval,
		logger:        log,
		stopCh:        make(chan struct{}),
	}
}

// Start 启动后台清扫任务，清扫调度由该goroutine独占
func (s *SessionMemoryStore) Start() {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop 停止后台清扫任务
func (s *SessionMemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// getOrCreate 返回已有记录或新建空记录
func (s *SessionMemoryStore) getOrCreate(sessionID string) *sessionRecord {
	s.mu.RLock()
	rec, ok := s.records[sessionID]
	s.mu.RUnlock()
	if ok {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[sessionID]; ok {
		return rec
	}
	rec = &sessionRecord{lastAccessed: time.Now()}
	s.records[sessionID] = rec
	return rec
}

// GetOrCreate 惰性创建会话并刷新访问时间，返回当前统计
func (s *SessionMemoryStore) GetOrCreate(sessionID string) SessionStats {
	rec := s.getOrCreate(sessionID)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastAccessed = time.Now()
	return SessionStats{
		MessageCount: len(rec.turns),
		LastUsed:     rec.lastAccessed,
		Exists:       true,
	}
}

// Append 追加一轮问答并刷新访问时间。
// 同一会话的轮次顺序由记录锁保证与提交顺序一致。
func (s *SessionMemoryStore) Append(sessionID, question, answer string) {
	rec := s.getOrCreate(sessionID)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.turns = append(rec.turns, SessionTurn{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
	})
	rec.lastAccessed = time.Now()
}

// Recent 返回按时间顺序排列的最近n轮问答，n<=0时返回全部。
// 未知会话返回nil，不会创建记录。
func (s *SessionMemoryStore) Recent(sessionID string, n int) []SessionTurn {
	s.mu.RLock()
	rec, ok := s.records[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastAccessed = time.Now()

	turns := rec.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]SessionTurn, len(turns))
	copy(out, turns)
	return out
}

// FormattedHistory 将会话历史渲染为 "user: …"/"assistant: …" 交替行，
// 未知或空会话返回空字符串
func (s *SessionMemoryStore) FormattedHistory(sessionID string) string {
	return FormatTurns(s.Recent(sessionID, 0))
}

// Clear 删除整个会话记录，返回是否存在
func (s *SessionMemoryStore) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[sessionID]; !ok {
		return false
	}
	delete(s.records, sessionID)
	return true
}

// Stats 只读统计，不刷新访问时间
func (s *SessionMemoryStore) Stats(sessionID string) SessionStats {
	s.mu.RLock()
	rec, ok := s.records[sessionID]
	s.mu.RUnlock()
	if !ok {
		return SessionStats{}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return SessionStats{
		MessageCount: len(rec.turns),
		LastUsed:     rec.lastAccessed,
		Exists:       true,
	}
}

// Len 当前会话数量
func (s *SessionMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// sweep 清扫空闲超时的会话。删除前在记录锁内复查lastAccessed，
// 避免删掉刚被并发Append刷新过的会话。
func (s *SessionMemoryStore) sweep() {
	now := time.Now()
	evicted := 0

	s.mu.Lock()
	for sessionID, rec := range s.records {
		rec.mu.Lock()
		expired := now.Sub(rec.lastAccessed) > s.timeout
		rec.mu.Unlock()
		if expired {
			delete(s.records, sessionID)
			evicted++
		}
	}
	remaining := len(s.records)
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("evicted idle sessions",
			zap.Int("evicted", evicted),
			zap.Int("remaining", remaining))
	}
}

// FormatTurns 将问答轮次渲染为提示词用的历史文本
func FormatTurns(turns []SessionTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString("user: ")
		b.WriteString(turn.Question)
		b.WriteString("\nassistant: ")
		b.WriteString(turn.Answer)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
