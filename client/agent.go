package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bladearena/server"
)

// DefaultThrottleWindow move 消息的最小发送间隔
const DefaultThrottleWindow = 50 * time.Millisecond

// Options Agent 可选参数
type Options struct {
	// ThrottleWindow move 节流窗口，<=0 时用默认 50ms
	ThrottleWindow time.Duration
	// Logger 为 nil 时不输出日志
	Logger *zap.SugaredLogger
}

// Agent 客户端同步代理：维护一条出站连接、跟踪本端身份、
// 对出站姿态更新做节流，并对渲染层暴露最新权威快照。
// 连接断开后不自动重连，由上层重新构造
type Agent struct {
	ws     *websocket.Conn
	log    *zap.SugaredLogger
	window time.Duration

	writeMu sync.Mutex // 串行化 WS 写

	mu       sync.Mutex
	id       string
	color    string
	ready    bool
	players  []server.PlayerState
	enemies  []server.EnemyState
	lastSend time.Time // 单调时钟基准由 time.Time 自带

	done     chan struct{}
	doneOnce sync.Once
}

// Dial 建立连接并启动接收循环。不主动发任何消息，
// 等服务端 welcome 下发本端 id 与颜色后才进入就绪态
func Dial(ctx context.Context, url string, opts Options) (*Agent, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	window := opts.ThrottleWindow
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	a := &Agent{
		ws:     ws,
		log:    log,
		window: window,
		done:   make(chan struct{}),
	}
	go a.readLoop()
	return a, nil
}

// serverEnvelope 服务端下行消息的原始外壳
type serverEnvelope struct {
	Type    string               `json:"type"`
	ID      string               `json:"id"`
	Color   string               `json:"color"`
	Players []server.PlayerState `json:"players"`
	Enemies []server.EnemyState  `json:"enemies"`
}

func (a *Agent) readLoop() {
	defer a.Close()
	for {
		_, payload, err := a.ws.ReadMessage()
		if err != nil {
			return
		}
		var env serverEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			// 无法解析的服务端载荷：本地记日志并跳过，保留上一份快照
			a.log.Warnf("bad server payload: %v", err)
			continue
		}
		switch env.Type {
		case server.MsgWelcome:
			a.mu.Lock()
			a.id = env.ID
			a.color = env.Color
			a.players = env.Players
			a.ready = true
			a.mu.Unlock()
		case server.MsgState:
			// 快照整体替换：这是客户端远端视图唯一的变更路径
			a.mu.Lock()
			a.players = env.Players
			a.mu.Unlock()
		case server.MsgEnemies:
			a.mu.Lock()
			a.enemies = env.Enemies
			a.mu.Unlock()
		default:
			a.log.Debugf("unknown server message type %q", env.Type)
		}
	}
}

// SendMove 上报本端姿态。未就绪时空操作；落在节流窗口内的调用
// 整条丢弃（不排队不合并）——调用方每帧都会带最新姿态重新调用，
// 下一个放行的 tick 自然发送最新值
func (a *Agent) SendMove(position server.Vec3, rotation server.Quat) bool {
	a.mu.Lock()
	if !a.ready || a.isClosed() {
		a.mu.Unlock()
		return false
	}
	now := time.Now()
	if !a.lastSend.IsZero() && now.Sub(a.lastSend) < a.window {
		a.mu.Unlock()
		return false
	}
	a.lastSend = now
	a.mu.Unlock()

	payload, _ := json.Marshal(struct {
		Type     string       `json:"type"`
		Position *server.Vec3 `json:"position,omitempty"`
		Rotation *server.Quat `json:"rotation,omitempty"`
	}{Type: server.MsgMove, Position: &position, Rotation: &rotation})
	return a.write(payload)
}

// SendAttack 上报攻击意图；频控由 CombatBridge 的冷却负责
func (a *Agent) SendAttack(enemyID string) bool {
	a.mu.Lock()
	if !a.ready || a.isClosed() {
		a.mu.Unlock()
		return false
	}
	a.mu.Unlock()

	payload, _ := json.Marshal(struct {
		Type    string `json:"type"`
		EnemyID string `json:"enemyId"`
	}{Type: server.MsgAttack, EnemyID: enemyID})
	return a.write(payload)
}

func (a *Agent) write(payload []byte) bool {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = a.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := a.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		a.Close()
		return false
	}
	return true
}

// Snapshot 返回最新玩家快照的副本
func (a *Agent) Snapshot() []server.PlayerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]server.PlayerState(nil), a.players...)
}

// EnemySnapshot 返回最新敌人快照的副本
func (a *Agent) EnemySnapshot() []server.EnemyState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]server.EnemyState(nil), a.enemies...)
}

// LocalID 服务端分配的本端 id，welcome 前为空串
func (a *Agent) LocalID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Color 服务端分配的本端颜色
func (a *Agent) Color() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.color
}

// Ready 是否已收到 welcome
func (a *Agent) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Done 连接终止信号；断开后远端画面停留在最后已知姿态
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

func (a *Agent) isClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Close 关闭连接；可重复调用
func (a *Agent) Close() {
	a.doneOnce.Do(func() {
		close(a.done)
		_ = a.ws.Close()
	})
}
