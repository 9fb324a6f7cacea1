package server

import (
	"sync/atomic"
)

// Metrics 记录中继运行期的关键指标（用于监控与调试）
type Metrics struct {
	Connects         int64 // 接入的连接数
	Disconnects      int64 // 断开的连接数（含异常断开）
	MovesApplied     int64 // 被应用的 move 消息数
	AttacksAccepted  int64 // 仲裁通过的攻击数
	AttacksRejected  int64 // 仲裁拒绝的攻击数
	Broadcasts       int64 // 快照广播次数
	SendDropped      int64 // 出站队列满被丢弃的最旧消息数
	DroppedMessages  int64 // 无法解析或未知类型被丢弃的入站消息数
	TotalBroadcastNs int64 // 广播累计耗时（纳秒）
}

func (m *Metrics) IncConnect()        { atomic.AddInt64(&m.Connects, 1) }
func (m *Metrics) IncDisconnect()     { atomic.AddInt64(&m.Disconnects, 1) }
func (m *Metrics) IncMoveApplied()    { atomic.AddInt64(&m.MovesApplied, 1) }
func (m *Metrics) IncAttackAccepted() { atomic.AddInt64(&m.AttacksAccepted, 1) }
func (m *Metrics) IncAttackRejected() { atomic.AddInt64(&m.AttacksRejected, 1) }
func (m *Metrics) IncSendDropped()    { atomic.AddInt64(&m.SendDropped, 1) }
func (m *Metrics) IncDropped()        { atomic.AddInt64(&m.DroppedMessages, 1) }

func (m *Metrics) AddBroadcast(ns int64) {
	atomic.AddInt64(&m.Broadcasts, 1)
	atomic.AddInt64(&m.TotalBroadcastNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	casts := atomic.LoadInt64(&m.Broadcasts)
	total := atomic.LoadInt64(&m.TotalBroadcastNs)
	var avgUs float64
	if casts > 0 {
		avgUs = float64(total) / float64(casts) / 1e3
	}
	return map[string]any{
		"connects":         atomic.LoadInt64(&m.Connects),
		"disconnects":      atomic.LoadInt64(&m.Disconnects),
		"moves_applied":    atomic.LoadInt64(&m.MovesApplied),
		"attacks_accepted": atomic.LoadInt64(&m.AttacksAccepted),
		"attacks_rejected": atomic.LoadInt64(&m.AttacksRejected),
		"broadcasts":       casts,
		"send_dropped":     atomic.LoadInt64(&m.SendDropped),
		"dropped_messages": atomic.LoadInt64(&m.DroppedMessages),
		"avg_broadcast_us": avgUs,
	}
}
