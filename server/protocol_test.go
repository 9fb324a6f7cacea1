package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeMoveFull(t *testing.T) {
	msg, ok := DecodeClientMessage([]byte(`{"type":"move","position":{"x":1,"y":0.9,"z":2},"rotation":{"x":0,"y":0.7,"z":0,"w":0.7}}`))
	require.True(t, ok)
	move, ok := msg.(MoveMessage)
	require.True(t, ok)
	require.NotNil(t, move.Position)
	require.Equal(t, Vec3{X: 1, Y: 0.9, Z: 2}, *move.Position)
	require.NotNil(t, move.Rotation)
	require.Equal(t, Quat{Y: 0.7, W: 0.7}, *move.Rotation)
}

// 字段存在性即语义：缺失的维度必须解析为 nil，不能变成零值
func TestDecodeMovePartial(t *testing.T) {
	msg, ok := DecodeClientMessage([]byte(`{"type":"move","position":{"x":3,"y":1,"z":-2}}`))
	require.True(t, ok)
	move := msg.(MoveMessage)
	require.NotNil(t, move.Position)
	require.Nil(t, move.Rotation)

	msg, ok = DecodeClientMessage([]byte(`{"type":"move"}`))
	require.True(t, ok)
	move = msg.(MoveMessage)
	require.Nil(t, move.Position)
	require.Nil(t, move.Rotation)
}

func TestDecodeAttack(t *testing.T) {
	msg, ok := DecodeClientMessage([]byte(`{"type":"attack","enemyId":"enemy-3"}`))
	require.True(t, ok)
	attack, ok := msg.(AttackMessage)
	require.True(t, ok)
	require.Equal(t, "enemy-3", attack.EnemyID)
}

func TestDecodeTypeCaseInsensitive(t *testing.T) {
	_, ok := DecodeClientMessage([]byte(`{"type":"Move","position":{"x":0,"y":0,"z":0}}`))
	require.True(t, ok)
}

// 未知类型与坏载荷都关闭失败，由上层静默丢弃
func TestDecodeFailsClosed(t *testing.T) {
	for _, payload := range []string{
		`{"type":"ping"}`,
		`{"type":""}`,
		`{}`,
		`not json at all`,
		`[1,2,3]`,
	} {
		msg, ok := DecodeClientMessage([]byte(payload))
		require.False(t, ok, "payload %q should fail closed", payload)
		require.Nil(t, msg)
	}
}
