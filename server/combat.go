package server

import (
	"fmt"
	"math"
	"time"
)

// spawnEnemies 开局沿环形布置敌人，faceIndex 轮换可选贴图
func spawnEnemies(cfg ArenaConfig) []*Enemy {
	if cfg.EnemyCount <= 0 {
		return nil
	}
	faces := cfg.EnemyFaceCount
	if faces <= 0 {
		faces = 1
	}
	enemies := make([]*Enemy, 0, cfg.EnemyCount)
	for i := 0; i < cfg.EnemyCount; i++ {
		angle := 2 * math.Pi * float64(i) / float64(cfg.EnemyCount)
		enemies = append(enemies, &Enemy{
			ID: fmt.Sprintf("enemy-%d", i+1),
			Position: Vec3{
				X: cfg.EnemyRingRadius * math.Sin(angle),
				Y: cfg.EnemyHeight,
				Z: cfg.EnemyRingRadius * math.Cos(angle),
			},
			Alive:     true,
			FaceIndex: i % faces,
		})
	}
	return enemies
}

// arbitrateAttack 服务端攻击仲裁：敌人存在且存活、攻击者在射程内、
// 冷却已过才判定命中；命中即死且本局不复活，随后广播全量敌人快照。
// 拒绝时不回包（协议没有错误消息类型），只计数
func (a *Arena) arbitrateAttack(attacker *Actor, msg AttackMessage) {
	enemy := a.findEnemy(msg.EnemyID)
	if enemy == nil || !enemy.Alive {
		a.metrics.IncAttackRejected()
		return
	}
	now := time.Now()
	if !attacker.lastAttack.IsZero() && now.Sub(attacker.lastAttack) < a.cfg.AttackCooldown() {
		a.metrics.IncAttackRejected()
		return
	}
	if a.cfg.AttackRange > 0 {
		dist := enemy.Position.V3().Sub(attacker.Position.V3()).Len()
		if dist > a.cfg.AttackRange {
			a.metrics.IncAttackRejected()
			return
		}
	}

	attacker.lastAttack = now
	enemy.Alive = false
	a.metrics.IncAttackAccepted()
	a.broadcastEnemies()
}

func (a *Arena) findEnemy(id string) *Enemy {
	for _, e := range a.enemies {
		if e.ID == id {
			return e
		}
	}
	return nil
}
