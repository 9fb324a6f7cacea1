package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"bladearena/client"
	"bladearena/server"
)

// arenabot：无头客户端，绕场心转圈并朝场心挥击，用于联调与压测
func main() {
	var url string
	var radius float64
	var attack bool
	flag.StringVar(&url, "url", "ws://localhost:8080/ws", "relay websocket url")
	flag.Float64Var(&radius, "radius", 3, "orbit radius")
	flag.BoolVar(&attack, "attack", true, "swing at enemies while orbiting")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	agent, err := client.Dial(ctx, url, client.Options{})
	cancel()
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer agent.Close()

	// 等 welcome 拿到身份
	for !agent.Ready() {
		select {
		case <-agent.Done():
			log.Fatal("connection closed before welcome")
		case <-time.After(10 * time.Millisecond):
		}
	}
	log.Printf("joined as %s (%s)", agent.LocalID(), agent.Color())

	bridge := client.NewCombatBridge(agent)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(16 * time.Millisecond) // 渲染帧节奏，节流由 Agent 负责
	defer ticker.Stop()

	start := time.Now()
	last := start
	for {
		select {
		case <-quit:
			return
		case <-agent.Done():
			log.Print("connection closed")
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			_ = dt
			last = now
			t := now.Sub(start).Seconds()

			angle := t * 0.6
			pos := mgl64.Vec3{radius * math.Cos(angle), 1.6, radius * math.Sin(angle)}
			// 始终面向场心
			yaw := math.Atan2(-pos.X(), -pos.Z())
			rot := mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0})

			agent.SendMove(server.FromV3(pos), server.FromQ(rot))

			if attack {
				forward := rot.Rotate(mgl64.Vec3{0, 0, -1})
				if id, ok := bridge.AimAttack(pos, forward, agent.EnemySnapshot()); ok {
					log.Printf("attack sent: %s", id)
				}
			}
		}
	}
}
