package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(timeout, sweepInterval time.Duration) *SessionMemoryStore {
	return NewSessionMemoryStore(timeout, sweepInterval, nil)
}

func TestSessionMemoryStoreDefaults(t *testing.T) {
	s := newTestStore(0, 0)
	assert.Equal(t, defaultSessionTimeout, s.timeout)
	assert.Equal(t, defaultSweepInterval, s.sweepInterval)
}

func TestSessionMemoryAppendAndRecent(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)

	s.Append("s1", "q1", "a1")
	s.Append("s1", "q2", "a2")
	s.Append("s1", "q3", "a3")

	// 追加顺序即返回顺序
	turns := s.Recent("s1", 0)
	require.Len(t, turns, 3)
	assert.Equal(t, "q1", turns[0].Question)
	assert.Equal(t, "a3", turns[2].Answer)

	// n限制只取最近的轮次
	turns = s.Recent("s1", 2)
	require.Len(t, turns, 2)
	assert.Equal(t, "q2", turns[0].Question)
	assert.Equal(t, "q3", turns[1].Question)
}

func TestSessionMemoryRecentUnknownSession(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)

	// 查询不创建记录
	assert.Nil(t, s.Recent("missing", 5))
	assert.Equal(t, 0, s.Len())
}

func TestSessionMemoryIsolation(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)

	s.Append("s1", "q-one", "a-one")
	s.Append("s2", "q-two", "a-two")

	turns1 := s.Recent("s1", 0)
	turns2 := s.Recent("s2", 0)
	require.Len(t, turns1, 1)
	require.Len(t, turns2, 1)
	assert.Equal(t, "q-one", turns1[0].Question)
	assert.Equal(t, "q-two", turns2[0].Question)
}

func TestSessionMemoryRecentReturnsCopy(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)
	s.Append("s1", "q1", "a1")

	turns := s.Recent("s1", 0)
	turns[0].Answer = "mutated"

	again := s.Recent("s1", 0)
	assert.Equal(t, "a1", again[0].Answer)
}

func TestSessionMemoryGetOrCreate(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)

	stats := s.GetOrCreate("s1")
	assert.True(t, stats.Exists)
	assert.Equal(t, 0, stats.MessageCount)
	assert.Equal(t, 1, s.Len())

	s.Append("s1", "q1", "a1")
	stats = s.GetOrCreate("s1")
	assert.Equal(t, 1, stats.MessageCount)
	assert.Equal(t, 1, s.Len())
}

func TestSessionMemoryStats(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)

	stats := s.Stats("missing")
	assert.False(t, stats.Exists)
	assert.Equal(t, 0, stats.MessageCount)

	s.Append("s1", "q1", "a1")
	stats = s.Stats("s1")
	assert.True(t, stats.Exists)
	assert.Equal(t, 1, stats.MessageCount)
	assert.False(t, stats.LastUsed.IsZero())
}

func TestSessionMemoryClear(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)
	s.Append("s1", "q1", "a1")

	assert.True(t, s.Clear("s1"))
	assert.False(t, s.Clear("s1"))
	assert.False(t, s.Stats("s1").Exists)

	// 清除后重新开始计数
	s.Append("s1", "q2", "a2")
	assert.Equal(t, 1, s.Stats("s1").MessageCount)
}

func TestSessionMemorySweepEvictsIdleSessions(t *testing.T) {
	s := newTestStore(50*time.Millisecond, time.Hour)

	s.Append("idle", "q1", "a1")
	time.Sleep(80 * time.Millisecond)
	s.Append("active", "q2", "a2")

	s.sweep()

	assert.False(t, s.Stats("idle").Exists)
	assert.True(t, s.Stats("active").Exists)
	assert.Equal(t, 1, s.Len())
}

func TestSessionMemoryAccessRefreshesIdleClock(t *testing.T) {
	s := newTestStore(50*time.Millisecond, time.Hour)

	s.Append("s1", "q1", "a1")
	time.Sleep(30 * time.Millisecond)
	// 读取也算访问，重置空闲时钟
	s.Recent("s1", 0)
	time.Sleep(30 * time.Millisecond)

	s.sweep()
	assert.True(t, s.Stats("s1").Exists)
}

func TestSessionMemoryBackgroundSweep(t *testing.T) {
	s := newTestStore(20*time.Millisecond, 10*time.Millisecond)
	s.Start()
	defer s.Stop()

	s.Append("s1", "q1", "a1")
	require.Eventually(t, func() bool {
		return s.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSessionMemoryStopIdempotent(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSessionMemoryConcurrentAppend(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", i%3)
			for j := 0; j < 20; j++ {
				s.Append(session, fmt.Sprintf("q%d-%d", i, j), "a")
				s.Recent(session, 5)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 3; i++ {
		total += s.Stats(fmt.Sprintf("s%d", i)).MessageCount
	}
	assert.Equal(t, 200, total)
	assert.Equal(t, 3, s.Len())
}

func TestFormatTurns(t *testing.T) {
	assert.Equal(t, "", FormatTurns(nil))

	turns := []SessionTurn{
		{Question: "你好", Answer: "你好，有什么可以帮你？"},
		{Question: "再见", Answer: "再见"},
	}
	expected := "user: 你好\nassistant: 你好，有什么可以帮你？\nuser: 再见\nassistant: 再见"
	assert.Equal(t, expected, FormatTurns(turns))
}

func TestFormattedHistory(t *testing.T) {
	s := newTestStore(time.Hour, time.Hour)
	assert.Equal(t, "", s.FormattedHistory("missing"))

	s.Append("s1", "hello", "hi")
	assert.Equal(t, "user: hello\nassistant: hi", s.FormattedHistory("s1"))
}
