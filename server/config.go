package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 服务进程配置，来自默认值 + 可选的 bladearena.cfg.json + 环境变量
type Config struct {
	Addr      string `mapstructure:"addr"`
	LogFile   string `mapstructure:"logFile"`
	StaticDir string `mapstructure:"staticDir"`

	SendQueueSize int `mapstructure:"sendQueueSize"` // 每连接出站队列容量，满则丢最旧

	Arena ArenaConfig `mapstructure:"arena"`
}

// ArenaConfig 竞技场运行参数，可经 /admin/config 热更新
type ArenaConfig struct {
	SpawnPosition    Vec3    `mapstructure:"spawnPosition"`
	AttackRange      float64 `mapstructure:"attackRange"`      // 攻击仲裁的最大距离
	AttackCooldownMs int     `mapstructure:"attackCooldownMs"` // 单玩家攻击冷却
	EnemyCount       int     `mapstructure:"enemyCount"`
	EnemyRingRadius  float64 `mapstructure:"enemyRingRadius"` // 敌人环形布点半径
	EnemyHeight      float64 `mapstructure:"enemyHeight"`     // 敌人躯干离地高度
	EnemyFaceCount   int     `mapstructure:"enemyFaceCount"`  // 可选贴图张数，faceIndex 取模于此
}

// AttackCooldown 转为 time.Duration
func (c ArenaConfig) AttackCooldown() time.Duration {
	return time.Duration(c.AttackCooldownMs) * time.Millisecond
}

// LoadConfig 读取配置；配置文件缺失时仅用默认值，不视为错误
func LoadConfig(configDir string) (Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("logFile", "app.log")
	v.SetDefault("staticDir", "web")
	v.SetDefault("sendQueueSize", 64)

	v.SetDefault("arena.spawnPosition.x", 0.0)
	v.SetDefault("arena.spawnPosition.y", 1.6)
	v.SetDefault("arena.spawnPosition.z", 0.0)
	v.SetDefault("arena.attackRange", 8.0)
	v.SetDefault("arena.attackCooldownMs", 400)
	v.SetDefault("arena.enemyCount", 6)
	v.SetDefault("arena.enemyRingRadius", 5.0)
	v.SetDefault("arena.enemyHeight", 1.1)
	v.SetDefault("arena.enemyFaceCount", 4)

	v.SetConfigName("bladearena.cfg")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("bladearena")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
