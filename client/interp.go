package client

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"bladearena/server"
)

// 指数平滑速率：alpha = 1 - e^(-rate·Δt)。
// 临界阻尼式收敛，对更新间隔不均匀不敏感且永不过冲；朝向收敛更快
const (
	defaultPosRate = 12.0
	defaultRotRate = 18.0

	defaultActorHeight = 1.6 // 收到非法高度时的兜底值
)

// Pose 给渲染层消费的单个远端玩家变换
type Pose struct {
	ID       string
	Color    string
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

type motionState struct {
	color     string
	pos, tPos mgl64.Vec3
	rot, tRot mgl64.Quat
}

// Interpolator 把离散的节流网络更新还原为连续运动。
// 只在渲染协程里使用，不做内部加锁
type Interpolator struct {
	posRate       float64
	rotRate       float64
	defaultHeight float64

	actors map[string]*motionState
}

func NewInterpolator() *Interpolator {
	return &Interpolator{
		posRate:       defaultPosRate,
		rotRate:       defaultRotRate,
		defaultHeight: defaultActorHeight,
		actors:        make(map[string]*motionState),
	}
}

// Observe 用最新快照刷新每个远端玩家的目标姿态。
// 本端玩家跳过；快照中消失的玩家立即移除，不做淡出；
// 首次出现的玩家直接落位到目标，避免从原点飞入
func (it *Interpolator) Observe(players []server.PlayerState, localID string) {
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		if p.ID == localID {
			continue
		}
		seen[p.ID] = struct{}{}

		s, ok := it.actors[p.ID]
		if !ok {
			s = &motionState{}
			tPos := it.sanitizePosition(p.Position, mgl64.Vec3{0, it.defaultHeight, 0})
			tRot := sanitizeRotation(p.Rotation, mgl64.QuatIdent())
			s.pos, s.tPos = tPos, tPos
			s.rot, s.tRot = tRot, tRot
			s.color = p.Color
			it.actors[p.ID] = s
			continue
		}
		s.tPos = it.sanitizePosition(p.Position, s.tPos)
		s.tRot = sanitizeRotation(p.Rotation, s.tRot)
	}
	for id := range it.actors {
		if _, ok := seen[id]; !ok {
			delete(it.actors, id)
		}
	}
}

// Advance 每个渲染 tick 推进一次，dt 为距上次推进的秒数
func (it *Interpolator) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	ap := 1 - math.Exp(-it.posRate*dt)
	ar := 1 - math.Exp(-it.rotRate*dt)
	for _, s := range it.actors {
		s.pos = s.pos.Add(s.tPos.Sub(s.pos).Mul(ap))
		s.rot = slerpToward(s.rot, s.tRot, ar)
	}
}

// Poses 导出当前渲染姿态，按 id 排序保证遍历稳定
func (it *Interpolator) Poses() []Pose {
	ids := make([]string, 0, len(it.actors))
	for id := range it.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	poses := make([]Pose, 0, len(ids))
	for _, id := range ids {
		s := it.actors[id]
		poses = append(poses, Pose{ID: id, Color: s.color, Position: s.pos, Rotation: s.rot})
	}
	return poses
}

// sanitizePosition 过滤非法坐标：高度非有限值时退回默认高度，
// 水平坐标非有限值时保持上一目标不动
func (it *Interpolator) sanitizePosition(p server.Vec3, prev mgl64.Vec3) mgl64.Vec3 {
	out := prev
	if isFinite(p.X) {
		out[0] = p.X
	}
	if isFinite(p.Y) {
		out[1] = p.Y
	} else {
		out[1] = it.defaultHeight
	}
	if isFinite(p.Z) {
		out[2] = p.Z
	}
	return out
}

// sanitizeRotation 非有限或全零四元数退回上一目标
func sanitizeRotation(q server.Quat, prev mgl64.Quat) mgl64.Quat {
	if !isFinite(q.X) || !isFinite(q.Y) || !isFinite(q.Z) || !isFinite(q.W) {
		return prev
	}
	if q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 0 {
		return prev
	}
	return q.Q()
}

// slerpToward 球面插值并取短弧（点积为负时翻转目标）
func slerpToward(from, to mgl64.Quat, alpha float64) mgl64.Quat {
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl64.QuatSlerp(from, to, alpha).Normalize()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
