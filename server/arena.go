package server

import (
	"encoding/json"
	"sync"
	"time"
)

// outbound 抽象连接的发送端，便于测试注入假连接
type outbound interface {
	// Enqueue 非阻塞入队一条出站消息
	Enqueue(b []byte)
	// Close 关闭发送端与底层连接
	Close()
}

// Arena 竞技场：权威状态唯一归属者。所有连接接入、消息处理、
// 广播触发都经由 events 通道在单一事件循环中串行执行，
// 因此 actors/enemies 无需加锁，广播永远反映一致状态
type Arena struct {
	events chan arenaEvent
	done   chan struct{}
	once   sync.Once

	actors map[ActorID]*Actor
	order  []ActorID // 入场顺序，保证快照序列稳定

	enemies []*Enemy

	cfg     ArenaConfig
	metrics *Metrics
}

type arenaEvent interface {
	apply(a *Arena)
}

type joinEvent struct {
	conn  outbound
	reply chan ActorID
}

type frameEvent struct {
	id      ActorID
	payload []byte
}

type leaveEvent struct {
	id ActorID
}

type playersReq struct {
	reply chan []PlayerState
}

type enemiesReq struct {
	reply chan []EnemyState
}

type tuneEvent struct {
	mutate func(*ArenaConfig)
	reply  chan ArenaConfig
}

// NewArena 创建竞技场并按配置布置敌人；需随后调用 Start
func NewArena(cfg ArenaConfig, metrics *Metrics) *Arena {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Arena{
		events:  make(chan arenaEvent, 256), // 足够缓冲，避免网络读阻塞事件循环
		done:    make(chan struct{}),
		actors:  make(map[ActorID]*Actor),
		enemies: spawnEnemies(cfg),
		cfg:     cfg,
		metrics: metrics,
	}
}

// Start 启动事件循环
func (a *Arena) Start() {
	go a.run()
}

// Stop 终止事件循环并关闭所有连接
func (a *Arena) Stop() {
	a.once.Do(func() { close(a.done) })
}

func (a *Arena) run() {
	for {
		select {
		case <-a.done:
			for _, actor := range a.actors {
				actor.Conn.Close()
			}
			return
		case ev := <-a.events:
			ev.apply(a)
		}
	}
}

// post 投递事件；竞技场已停止时返回 false
func (a *Arena) post(ev arenaEvent) bool {
	select {
	case a.events <- ev:
		return true
	case <-a.done:
		return false
	}
}

// Connect 接入一条新连接：分配 id 与颜色、写入默认出生姿态、
// 向该连接私发 welcome（含自身身份与全量快照）并向其余连接广播新快照
func (a *Arena) Connect(conn outbound) (ActorID, bool) {
	reply := make(chan ActorID, 1)
	if !a.post(joinEvent{conn: conn, reply: reply}) {
		return "", false
	}
	select {
	case id := <-reply:
		return id, true
	case <-a.done:
		return "", false
	}
}

// Deliver 投递某连接收到的原始载荷；同一连接的消息保持先后顺序
func (a *Arena) Deliver(id ActorID, payload []byte) {
	a.post(frameEvent{id: id, payload: payload})
}

// Leave 移除连接对应的玩家；正常关闭与异常断开走同一条路径
func (a *Arena) Leave(id ActorID) {
	a.post(leaveEvent{id: id})
}

// Players 当前全量玩家快照（经事件循环，返回时此前投递的事件均已生效）
func (a *Arena) Players() []PlayerState {
	reply := make(chan []PlayerState, 1)
	if !a.post(playersReq{reply: reply}) {
		return nil
	}
	select {
	case players := <-reply:
		return players
	case <-a.done:
		return nil
	}
}

// Enemies 当前全量敌人快照
func (a *Arena) Enemies() []EnemyState {
	reply := make(chan []EnemyState, 1)
	if !a.post(enemiesReq{reply: reply}) {
		return nil
	}
	select {
	case enemies := <-reply:
		return enemies
	case <-a.done:
		return nil
	}
}

// Tune 在事件循环内读改运行参数，避免 HTTP 协程与事件循环竞争
func (a *Arena) Tune(mutate func(*ArenaConfig)) (ArenaConfig, bool) {
	reply := make(chan ArenaConfig, 1)
	if !a.post(tuneEvent{mutate: mutate, reply: reply}) {
		return ArenaConfig{}, false
	}
	select {
	case cfg := <-reply:
		return cfg, true
	case <-a.done:
		return ArenaConfig{}, false
	}
}

func (ev joinEvent) apply(a *Arena) {
	actor := &Actor{
		ID:       newActorID(),
		Color:    randomColor(),
		Position: a.cfg.SpawnPosition,
		Rotation: IdentityQuat,
		Conn:     ev.conn,
	}
	a.actors[actor.ID] = actor
	a.order = append(a.order, actor.ID)
	a.metrics.IncConnect()

	welcome, _ := json.Marshal(WelcomeMessage{
		Type:    MsgWelcome,
		ID:      string(actor.ID),
		Color:   actor.Color,
		Players: a.playerSnapshot(),
	})
	actor.Conn.Enqueue(welcome)
	actor.Conn.Enqueue(a.encodeEnemies())

	a.broadcastStateExcept(actor.ID)
	ev.reply <- actor.ID
}

func (ev frameEvent) apply(a *Arena) {
	actor, ok := a.actors[ev.id]
	if !ok {
		// 断开与在途消息的竞争：玩家已移除则静默忽略
		return
	}
	msg, ok := DecodeClientMessage(ev.payload)
	if !ok {
		a.metrics.IncDropped()
		return
	}
	switch m := msg.(type) {
	case MoveMessage:
		if m.Position != nil {
			actor.Position = *m.Position
		}
		if m.Rotation != nil {
			actor.Rotation = *m.Rotation
		}
		a.metrics.IncMoveApplied()
		a.broadcastState()
	case AttackMessage:
		a.arbitrateAttack(actor, m)
	}
}

func (ev leaveEvent) apply(a *Arena) {
	actor, ok := a.actors[ev.id]
	if !ok {
		return
	}
	actor.Conn.Close()
	delete(a.actors, ev.id)
	for i, id := range a.order {
		if id == ev.id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	a.metrics.IncDisconnect()
	a.broadcastState()
}

func (ev playersReq) apply(a *Arena) {
	ev.reply <- a.playerSnapshot()
}

func (ev enemiesReq) apply(a *Arena) {
	ev.reply <- a.enemySnapshot()
}

func (ev tuneEvent) apply(a *Arena) {
	if ev.mutate != nil {
		ev.mutate(&a.cfg)
	}
	ev.reply <- a.cfg
}

// playerSnapshot 按入场顺序导出全量玩家状态
func (a *Arena) playerSnapshot() []PlayerState {
	snapshot := make([]PlayerState, 0, len(a.order))
	for _, id := range a.order {
		snapshot = append(snapshot, a.actors[id].State())
	}
	return snapshot
}

func (a *Arena) enemySnapshot() []EnemyState {
	snapshot := make([]EnemyState, 0, len(a.enemies))
	for _, e := range a.enemies {
		snapshot = append(snapshot, e.State())
	}
	return snapshot
}

// broadcastState 向所有连接广播全量玩家快照（含触发者）
func (a *Arena) broadcastState() {
	a.broadcastStateExcept("")
}

// broadcastStateExcept 广播快照但跳过指定玩家（welcome 已私发给它）
func (a *Arena) broadcastStateExcept(skip ActorID) {
	start := time.Now()
	payload, _ := json.Marshal(StateMessage{Type: MsgState, Players: a.playerSnapshot()})
	for id, actor := range a.actors {
		if id == skip {
			continue
		}
		actor.Conn.Enqueue(payload)
	}
	a.metrics.AddBroadcast(time.Since(start).Nanoseconds())
}

func (a *Arena) encodeEnemies() []byte {
	payload, _ := json.Marshal(EnemiesMessage{Type: MsgEnemies, Enemies: a.enemySnapshot()})
	return payload
}

// broadcastEnemies 敌人状态变化后向所有连接广播全量敌人快照
func (a *Arena) broadcastEnemies() {
	start := time.Now()
	payload := a.encodeEnemies()
	for _, actor := range a.actors {
		actor.Conn.Enqueue(payload)
	}
	a.metrics.AddBroadcast(time.Since(start).Nanoseconds())
}
