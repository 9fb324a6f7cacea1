package client

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"bladearena/server"
)

// 近战/指向判定的默认参数，按典型站立身位标定
const (
	defaultSwingSpeed  = 2.5 // m/s，超过视为挥击
	defaultBladeLength = 0.9 // 手柄到剑尖
	defaultHitRadius   = 0.6 // 剑尖到躯干的命中半径
	defaultConeRange   = 10.0
	defaultConeDot     = 0.92 // 视线前向与目标方向点积阈值
	defaultCooldown    = 400 * time.Millisecond
)

// attackSender 发送攻击意图的最小接口（Agent 实现）
type attackSender interface {
	SendAttack(enemyID string) bool
}

// CombatBridge 客户端本地命中检测：识别攻击意图并通知服务端。
// 两种输入模式共用同一冷却，保证单位时间至多一条 attack
type CombatBridge struct {
	sender attackSender

	swingSpeed  float64
	bladeLength float64
	hitRadius   float64
	coneRange   float64
	coneDot     float64
	cooldown    time.Duration

	lastAttack time.Time
	prevHand   mgl64.Vec3
	hasPrev    bool

	now func() time.Time
}

func NewCombatBridge(sender attackSender) *CombatBridge {
	return &CombatBridge{
		sender:      sender,
		swingSpeed:  defaultSwingSpeed,
		bladeLength: defaultBladeLength,
		hitRadius:   defaultHitRadius,
		coneRange:   defaultConeRange,
		coneDot:     defaultConeDot,
		cooldown:    defaultCooldown,
		now:         time.Now,
	}
}

// ObserveHand 追踪式输入（手柄/控制器）：每帧喂入手部位置与剑身朝向。
// 手部瞬时速度超过阈值且冷却已过即视为一次挥击，
// 用剑尖到各存活敌人躯干的距离判定，命中首个满足者即发送意图。
// 返回命中的敌人 id（仅当本帧触发发送）
func (b *CombatBridge) ObserveHand(hand, bladeDir mgl64.Vec3, dt float64, enemies []server.EnemyState) (string, bool) {
	if !b.hasPrev {
		b.prevHand = hand
		b.hasPrev = true
		return "", false
	}
	prev := b.prevHand
	b.prevHand = hand
	if dt <= 0 {
		return "", false
	}
	speed := hand.Sub(prev).Len() / dt
	if speed < b.swingSpeed || !b.cooldownElapsed() {
		return "", false
	}

	tip := hand
	if bladeDir.Len() > 0 {
		tip = hand.Add(bladeDir.Normalize().Mul(b.bladeLength))
	}
	for _, e := range enemies {
		if !e.Alive {
			continue
		}
		torso := mgl64.Vec3{e.X, e.Y, e.Z}
		if tip.Sub(torso).Len() <= b.hitRadius {
			return b.fire(e.ID)
		}
	}
	return "", false
}

// AimAttack 非追踪式输入：从固定视点沿视线方向做前向锥体选择，
// 取锥内最近的存活敌人
func (b *CombatBridge) AimAttack(viewPos, forward mgl64.Vec3, enemies []server.EnemyState) (string, bool) {
	if !b.cooldownElapsed() || forward.Len() == 0 {
		return "", false
	}
	fwd := forward.Normalize()

	bestID := ""
	bestDist := b.coneRange
	for _, e := range enemies {
		if !e.Alive {
			continue
		}
		to := mgl64.Vec3{e.X, e.Y, e.Z}.Sub(viewPos)
		dist := to.Len()
		if dist == 0 || dist > bestDist {
			continue
		}
		if to.Normalize().Dot(fwd) < b.coneDot {
			continue
		}
		bestID = e.ID
		bestDist = dist
	}
	if bestID == "" {
		return "", false
	}
	return b.fire(bestID)
}

func (b *CombatBridge) cooldownElapsed() bool {
	return b.lastAttack.IsZero() || b.now().Sub(b.lastAttack) >= b.cooldown
}

func (b *CombatBridge) fire(enemyID string) (string, bool) {
	b.lastAttack = b.now()
	if b.sender != nil {
		b.sender.SendAttack(enemyID)
	}
	return enemyID, true
}
