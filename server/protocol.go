package server

import (
	"encoding/json"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// 协议消息类型（线上 JSON 的 type 字段）
const (
	MsgWelcome = "welcome"
	MsgState   = "state"
	MsgEnemies = "enemies"
	MsgMove    = "move"
	MsgAttack  = "attack"
)

// Vec3 世界坐标（线上结构）
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// V3 转为 mgl64 向量以便做几何运算
func (v Vec3) V3() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// FromV3 从 mgl64 向量转回线上结构
func FromV3(v mgl64.Vec3) Vec3 {
	return Vec3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// Quat 朝向四元数（服务端不校验归一化）
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Q 转为 mgl64 四元数
func (q Quat) Q() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

// FromQ 从 mgl64 四元数转回线上结构
func FromQ(q mgl64.Quat) Quat {
	return Quat{X: q.V.X(), Y: q.V.Y(), Z: q.V.Z(), W: q.W}
}

// IdentityQuat 单位朝向（默认出生朝向）
var IdentityQuat = Quat{W: 1}

// PlayerState 广播给客户端的单个玩家状态
type PlayerState struct {
	ID       string `json:"id"`
	Color    string `json:"color"`
	Position Vec3   `json:"position"`
	Rotation Quat   `json:"rotation"`
}

// EnemyState 广播给客户端的单个敌人状态
type EnemyState struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Alive     bool    `json:"alive"`
	FaceIndex int     `json:"faceIndex"`
}

// WelcomeMessage 连接建立后发给该连接的私有消息
type WelcomeMessage struct {
	Type    string        `json:"type"`
	ID      string        `json:"id"`
	Color   string        `json:"color"`
	Players []PlayerState `json:"players"`
}

// StateMessage 全量玩家快照广播
type StateMessage struct {
	Type    string        `json:"type"`
	Players []PlayerState `json:"players"`
}

// EnemiesMessage 全量敌人快照广播
type EnemiesMessage struct {
	Type    string       `json:"type"`
	Enemies []EnemyState `json:"enemies"`
}

// ClientMessage 入站消息的判别联合：只可能是 MoveMessage 或 AttackMessage
type ClientMessage interface {
	isClientMessage()
}

// MoveMessage 位置/朝向更新，字段为空表示该维度保持不变
type MoveMessage struct {
	Position *Vec3
	Rotation *Quat
}

// AttackMessage 攻击意图，由服务端仲裁
type AttackMessage struct {
	EnemyID string
}

func (MoveMessage) isClientMessage()   {}
func (AttackMessage) isClientMessage() {}

// clientEnvelope 入站 JSON 的原始外壳
type clientEnvelope struct {
	Type     string `json:"type"`
	Position *Vec3  `json:"position"`
	Rotation *Quat  `json:"rotation"`
	EnemyID  string `json:"enemyId"`
}

// DecodeClientMessage 解析入站消息；无法解析或未知类型时关闭失败（返回 false），
// 由调用方静默丢弃，连接保持打开
func DecodeClientMessage(payload []byte) (ClientMessage, bool) {
	var env clientEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, false
	}
	switch strings.ToLower(env.Type) {
	case MsgMove:
		return MoveMessage{Position: env.Position, Rotation: env.Rotation}, true
	case MsgAttack:
		return AttackMessage{EnemyID: env.EnemyID}, true
	default:
		return nil, false
	}
}
