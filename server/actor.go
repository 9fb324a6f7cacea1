package server

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ActorID 玩家唯一标识，连接期间稳定，永不复用
type ActorID string

// Actor 服务端权威的玩家记录，仅由竞技场事件循环读写
type Actor struct {
	ID       ActorID
	Color    string
	Position Vec3
	Rotation Quat

	Conn outbound // 网络连接的发送端

	lastAttack time.Time // 上次被接受的攻击时间，用于服务端冷却
}

// State 导出为线上快照结构
func (a *Actor) State() PlayerState {
	return PlayerState{
		ID:       string(a.ID),
		Color:    a.Color,
		Position: a.Position,
		Rotation: a.Rotation,
	}
}

// Enemy 服务端持有的敌对实体；死亡后本局不再复活
type Enemy struct {
	ID        string
	Position  Vec3
	Alive     bool
	FaceIndex int
}

// State 导出为线上快照结构
func (e *Enemy) State() EnemyState {
	return EnemyState{
		ID:        e.ID,
		X:         e.Position.X,
		Y:         e.Position.Y,
		Z:         e.Position.Z,
		Alive:     e.Alive,
		FaceIndex: e.FaceIndex,
	}
}

// newActorID 生成全新 id（uuid，碰撞概率可忽略）
func newActorID() ActorID {
	return ActorID(uuid.NewString())
}

// randomColor 入场时分配一次的展示颜色，避开过暗色段
func randomColor() string {
	return fmt.Sprintf("#%02x%02x%02x", 64+rand.Intn(192), 64+rand.Intn(192), 64+rand.Intn(192))
}
