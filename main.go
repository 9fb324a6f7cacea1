package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bladearena/server"
)

// BladeArena 入口：启动 HTTP + WebSocket 服务，并初始化竞技场中继
func main() {
	var addr string
	var configDir string
	flag.StringVar(&addr, "addr", "", "server listen address, e.g. :8080 (overrides config)")
	flag.StringVar(&configDir, "config", ".", "directory containing bladearena.cfg.json")
	flag.Parse()

	cfg, err := server.LoadConfig(configDir)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	// 使用第三方 zap 日志库写入 app.log（带滚动）
	if err := server.InitLogger(cfg.LogFile); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	metrics := &server.Metrics{}
	arena := server.NewArena(cfg.Arena, metrics)
	arena.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS(arena, cfg.SendQueueSize, metrics))
	// 前后端分离：将 / 映射到静态资源目录（渲染端 bundle）
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", server.HandleAdminConfig(arena))
	mux.HandleFunc("/metrics", server.HandleMetrics(arena, metrics))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		server.Log.Infof("BladeArena listening on %s; open http://localhost%v/", cfg.Addr, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	arena.Stop()
}
