package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn 捕获出站消息的假连接，驱动竞技场无需真实 WS
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, b)
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// testFrame 出站消息的通用解码结果
type testFrame struct {
	Type    string        `json:"type"`
	ID      string        `json:"id"`
	Color   string        `json:"color"`
	Players []PlayerState `json:"players"`
	Enemies []EnemyState  `json:"enemies"`
}

func (c *fakeConn) decoded(t *testing.T) []testFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]testFrame, 0, len(c.frames))
	for _, b := range c.frames {
		var f testFrame
		require.NoError(t, json.Unmarshal(b, &f))
		out = append(out, f)
	}
	return out
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func testArenaConfig() ArenaConfig {
	return ArenaConfig{
		SpawnPosition:   Vec3{X: 0, Y: 1.6, Z: 0},
		AttackRange:     10,
		EnemyCount:      4,
		EnemyRingRadius: 5,
		EnemyHeight:     1.1,
		EnemyFaceCount:  4,
	}
}

func startArena(t *testing.T, cfg ArenaConfig) (*Arena, *Metrics) {
	t.Helper()
	metrics := &Metrics{}
	arena := NewArena(cfg, metrics)
	arena.Start()
	t.Cleanup(arena.Stop)
	return arena, metrics
}

func mustConnect(t *testing.T, arena *Arena) (ActorID, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	id, ok := arena.Connect(conn)
	require.True(t, ok)
	return id, conn
}

func TestConnectAssignsUniqueIdentity(t *testing.T) {
	arena, _ := startArena(t, testArenaConfig())

	seen := make(map[ActorID]struct{})
	for i := 0; i < 20; i++ {
		id, conn := mustConnect(t, arena)
		_, dup := seen[id]
		require.False(t, dup, "actor id reused")
		seen[id] = struct{}{}

		frames := conn.decoded(t)
		require.GreaterOrEqual(t, len(frames), 2)
		require.Equal(t, MsgWelcome, frames[0].Type)
		require.Equal(t, string(id), frames[0].ID)
		require.NotEmpty(t, frames[0].Color)
		require.Len(t, frames[0].Players, i+1)
		// welcome 之后紧跟一份敌人快照
		require.Equal(t, MsgEnemies, frames[1].Type)
		require.Len(t, frames[1].Enemies, 4)
	}
}

func TestJoinBroadcastsToOthersOnly(t *testing.T) {
	arena, _ := startArena(t, testArenaConfig())
	idA, connA := mustConnect(t, arena)
	before := connA.frameCount()

	idB, connB := mustConnect(t, arena)

	framesA := connA.decoded(t)
	require.Greater(t, len(framesA), before, "existing connection should see a state broadcast")
	last := framesA[len(framesA)-1]
	require.Equal(t, MsgState, last.Type)
	require.Len(t, last.Players, 2)

	// 新连接的快照在 welcome 里私发，不再重复广播 state
	for _, f := range connB.decoded(t) {
		require.NotEqual(t, MsgState, f.Type)
	}
	require.NotEqual(t, idA, idB)
}

func TestMoveRetainsOmittedFields(t *testing.T) {
	arena, _ := startArena(t, testArenaConfig())
	id, _ := mustConnect(t, arena)

	arena.Deliver(id, []byte(`{"type":"move","position":{"x":1,"y":0.9,"z":2}}`))
	arena.Deliver(id, []byte(`{"type":"move","rotation":{"x":0,"y":0.7,"z":0,"w":0.7}}`))

	players := arena.Players()
	require.Len(t, players, 1)
	// 只带 rotation 的 move 不得重置 position
	require.Equal(t, Vec3{X: 1, Y: 0.9, Z: 2}, players[0].Position)
	require.Equal(t, Quat{Y: 0.7, W: 0.7}, players[0].Rotation)
}

func TestMoveIdempotent(t *testing.T) {
	arena, _ := startArena(t, testArenaConfig())
	id, _ := mustConnect(t, arena)

	payload := []byte(`{"type":"move","position":{"x":4,"y":1.2,"z":-3},"rotation":{"x":0,"y":1,"z":0,"w":0}}`)
	arena.Deliver(id, payload)
	first := arena.Players()
	arena.Deliver(id, payload)
	second := arena.Players()
	require.Equal(t, first, second)
}

func TestDisconnectRemovesExactlyOneActor(t *testing.T) {
	arena, _ := startArena(t, testArenaConfig())
	idA, _ := mustConnect(t, arena)
	idB, connB := mustConnect(t, arena)

	arena.Leave(idA)

	players := arena.Players()
	require.Len(t, players, 1)
	require.Equal(t, string(idB), players[0].ID)

	frames := connB.decoded(t)
	last := frames[len(frames)-1]
	require.Equal(t, MsgState, last.Type)
	require.Len(t, last.Players, 1)

	// 离场 id 不得在后续快照中再次出现
	arena.Deliver(idB, []byte(`{"type":"move","position":{"x":1,"y":1,"z":1}}`))
	for _, p := range arena.Players() {
		require.NotEqual(t, string(idA), p.ID)
	}
}

func TestUnknownKindIgnoredWithoutBroadcast(t *testing.T) {
	arena, metrics := startArena(t, testArenaConfig())
	id, conn := mustConnect(t, arena)
	before := conn.frameCount()

	arena.Deliver(id, []byte(`{"type":"ping"}`))
	arena.Players() // 排空事件队列

	require.Equal(t, before, conn.frameCount(), "unknown kind must not trigger a broadcast")
	require.Equal(t, int64(1), metrics.DroppedMessages)
}

func TestMalformedPayloadIgnored(t *testing.T) {
	arena, metrics := startArena(t, testArenaConfig())
	id, conn := mustConnect(t, arena)
	before := conn.frameCount()

	arena.Deliver(id, []byte(`{"type":`))
	arena.Deliver(id, []byte(`garbage`))
	arena.Players()

	require.Equal(t, before, conn.frameCount())
	require.Equal(t, int64(2), metrics.DroppedMessages)
	require.Len(t, arena.Players(), 1)
}

func TestMoveAfterLeaveIgnored(t *testing.T) {
	arena, _ := startArena(t, testArenaConfig())
	id, _ := mustConnect(t, arena)
	arena.Leave(id)

	// 断开与在途消息的竞争路径：不得崩溃、不得复活玩家
	arena.Deliver(id, []byte(`{"type":"move","position":{"x":9,"y":9,"z":9}}`))
	require.Empty(t, arena.Players())
}

func TestAttackKillsEnemyInRange(t *testing.T) {
	arena, metrics := startArena(t, testArenaConfig())
	id, conn := mustConnect(t, arena)

	arena.Deliver(id, []byte(`{"type":"attack","enemyId":"enemy-1"}`))
	enemies := arena.Enemies()

	var target *EnemyState
	for i := range enemies {
		if enemies[i].ID == "enemy-1" {
			target = &enemies[i]
		}
	}
	require.NotNil(t, target)
	require.False(t, target.Alive)
	require.Equal(t, int64(1), metrics.AttacksAccepted)

	// 命中后向所有连接广播 enemies
	frames := conn.decoded(t)
	last := frames[len(frames)-1]
	require.Equal(t, MsgEnemies, last.Type)
}

func TestAttackOutOfRangeRejected(t *testing.T) {
	cfg := testArenaConfig()
	cfg.AttackRange = 1 // 敌人环半径 5，必然超程
	arena, metrics := startArena(t, cfg)
	id, _ := mustConnect(t, arena)

	arena.Deliver(id, []byte(`{"type":"attack","enemyId":"enemy-1"}`))

	for _, e := range arena.Enemies() {
		require.True(t, e.Alive)
	}
	require.Equal(t, int64(1), metrics.AttacksRejected)
	require.Equal(t, int64(0), metrics.AttacksAccepted)
}

func TestAttackDeadEnemyRejected(t *testing.T) {
	arena, metrics := startArena(t, testArenaConfig())
	id, _ := mustConnect(t, arena)

	arena.Deliver(id, []byte(`{"type":"attack","enemyId":"enemy-2"}`))
	arena.Deliver(id, []byte(`{"type":"attack","enemyId":"enemy-2"}`))
	arena.Players()

	require.Equal(t, int64(1), metrics.AttacksAccepted)
	require.Equal(t, int64(1), metrics.AttacksRejected)
}

func TestAttackUnknownEnemyRejected(t *testing.T) {
	arena, metrics := startArena(t, testArenaConfig())
	id, _ := mustConnect(t, arena)

	arena.Deliver(id, []byte(`{"type":"attack","enemyId":"no-such-enemy"}`))
	arena.Players()

	require.Equal(t, int64(1), metrics.AttacksRejected)
}

func TestAttackCooldownRejected(t *testing.T) {
	cfg := testArenaConfig()
	cfg.AttackCooldownMs = 60_000
	arena, metrics := startArena(t, cfg)
	id, _ := mustConnect(t, arena)

	arena.Deliver(id, []byte(`{"type":"attack","enemyId":"enemy-1"}`))
	arena.Deliver(id, []byte(`{"type":"attack","enemyId":"enemy-2"}`))
	arena.Players()

	require.Equal(t, int64(1), metrics.AttacksAccepted)
	require.Equal(t, int64(1), metrics.AttacksRejected)

	var alive int
	for _, e := range arena.Enemies() {
		if e.Alive {
			alive++
		}
	}
	require.Equal(t, 3, alive)
}

func TestEnemyRingSpawn(t *testing.T) {
	cfg := testArenaConfig()
	cfg.EnemyCount = 8
	cfg.EnemyFaceCount = 3
	enemies := spawnEnemies(cfg)
	require.Len(t, enemies, 8)
	for i, e := range enemies {
		require.Equal(t, fmt.Sprintf("enemy-%d", i+1), e.ID)
		require.True(t, e.Alive)
		require.Equal(t, i%3, e.FaceIndex)
		require.InDelta(t, cfg.EnemyRingRadius, e.Position.V3().Sub(Vec3{Y: cfg.EnemyHeight}.V3()).Len(), 1e-9)
	}
}

func TestTuneUpdatesConfig(t *testing.T) {
	arena, _ := startArena(t, testArenaConfig())
	updated, ok := arena.Tune(func(c *ArenaConfig) { c.AttackRange = 42 })
	require.True(t, ok)
	require.Equal(t, 42.0, updated.AttackRange)

	current, ok := arena.Tune(nil)
	require.True(t, ok)
	require.Equal(t, 42.0, current.AttackRange)
}
