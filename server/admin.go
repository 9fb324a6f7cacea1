package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 提供竞技场运行参数的读取与热更新。
// 读改都经事件循环串行执行，HTTP 协程不直接触碰竞技场状态
// GET  /admin/config          返回当前参数
// POST /admin/config          以 JSON 载荷更新部分字段
func HandleAdminConfig(arena *Arena) http.HandlerFunc {
	type cfg struct {
		SpawnPosition    *Vec3    `json:"spawnPosition,omitempty"`
		AttackRange      *float64 `json:"attackRange,omitempty"`
		AttackCooldownMs *int     `json:"attackCooldownMs,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			current, ok := arena.Tune(nil)
			if !ok {
				http.Error(w, "arena stopped", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(current)
			return
		case http.MethodPost:
			var body cfg
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			updated, ok := arena.Tune(func(c *ArenaConfig) {
				if body.SpawnPosition != nil {
					c.SpawnPosition = *body.SpawnPosition
				}
				if body.AttackRange != nil {
					c.AttackRange = *body.AttackRange
				}
				if body.AttackCooldownMs != nil {
					c.AttackCooldownMs = *body.AttackCooldownMs
				}
			})
			if !ok {
				http.Error(w, "arena stopped", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
			Log.Infof("config updated: attackRange=%.2f cooldown=%dms spawn=(%.1f,%.1f,%.1f)",
				updated.AttackRange, updated.AttackCooldownMs,
				updated.SpawnPosition.X, updated.SpawnPosition.Y, updated.SpawnPosition.Z)
			return
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
	}
}

// HandleMetrics 输出运行指标与当前在线人数
// GET /metrics
func HandleMetrics(arena *Arena, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"players": len(arena.Players()),
			"metrics": metrics.Snapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
