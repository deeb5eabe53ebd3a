package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tcpflood/internal/logger"
	"tcpflood/internal/rtt"

	"gopkg.in/yaml.v3"
)

// MinInterval はディスパッチ間隔の下限
// ゼロ長タイマーを避けるため 1µs 未満には縮めない
const MinInterval = time.Microsecond

// DefaultSeed は位相オフセット乱数の既定シード
// 固定シードにより実行間でオフセット列が再現可能になる
const DefaultSeed = 42

// Config は実行全体の設定
// 起動時に一度だけ構築し、以降は読み取り専用で各コンポーネントへ渡す
type Config struct {
	Host string // 接続先ホスト
	Port int    // 接続先ポート

	Rate        int           // 全コネクション合計の送信レート（クエリ/秒）
	Connections int           // TCPコネクション数
	NewConnRate int           // 新規コネクション確立レート（本/秒）
	Duration    time.Duration // 実行時間（0で無期限）

	Verbosity int   // -v フラグの回数
	PrintRTT  bool  // RTTサンプルを標準出力へ書き出す
	Window    int   // コネクションあたりのRTTタイムスタンプ保持数
	Seed      int64 // 位相オフセット乱数のシード

	StatsAddr string // 統計サーバーのアドレス（空で無効）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		NewConnRate: 1000,
		Window:      rtt.DefaultWindow,
		Seed:        DefaultSeed,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	if c.Connections <= 0 {
		return fmt.Errorf("connections must be positive")
	}
	if c.NewConnRate <= 0 {
		return fmt.Errorf("new connection rate must be positive")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must be non-negative")
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	return nil
}

// Interval は1コネクションあたりのディスパッチ間隔を返す
// 合計レート R を C 本で分担するため C/R 秒、下限は MinInterval
func (c Config) Interval() time.Duration {
	interval := time.Duration(c.Connections) * time.Second / time.Duration(c.Rate)
	if interval < MinInterval {
		interval = MinInterval
	}
	return interval
}

// LogLevel は -v の回数に応じたログレベルを返す
func (c Config) LogLevel() logger.Level {
	return logger.FromVerbosity(c.Verbosity)
}

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Target TargetConfig `yaml:"target" json:"target"`
	Load   LoadConfig   `yaml:"load" json:"load"`
	Output OutputConfig `yaml:"output" json:"output"`
}

// TargetConfig は接続先設定
type TargetConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// LoadConfig は負荷設定
type LoadConfig struct {
	Rate        int    `yaml:"rate" json:"rate"`
	Connections int    `yaml:"connections" json:"connections"`
	NewConnRate int    `yaml:"new_connection_rate" json:"new_connection_rate"`
	Duration    string `yaml:"duration" json:"duration"`
	Window      int    `yaml:"window" json:"window"`
	Seed        int64  `yaml:"seed" json:"seed"`
}

// OutputConfig は出力設定
type OutputConfig struct {
	PrintRTT  bool   `yaml:"print_rtt" json:"print_rtt"`
	StatsAddr string `yaml:"stats_addr" json:"stats_addr"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToConfig はFileConfigをConfigに変換する
// ファイルで指定されなかった項目はデフォルト値のままにする
func (f *FileConfig) ToConfig() (Config, error) {
	config := DefaultConfig()

	if f.Target.Host != "" {
		config.Host = f.Target.Host
	}
	if f.Target.Port > 0 {
		config.Port = f.Target.Port
	}

	if f.Load.Rate > 0 {
		config.Rate = f.Load.Rate
	}
	if f.Load.Connections > 0 {
		config.Connections = f.Load.Connections
	}
	if f.Load.NewConnRate > 0 {
		config.NewConnRate = f.Load.NewConnRate
	}
	if f.Load.Duration != "" {
		d, err := time.ParseDuration(f.Load.Duration)
		if err != nil {
			return config, fmt.Errorf("invalid duration: %w", err)
		}
		config.Duration = d
	}
	if f.Load.Window > 0 {
		config.Window = f.Load.Window
	}
	if f.Load.Seed != 0 {
		config.Seed = f.Load.Seed
	}

	config.PrintRTT = f.Output.PrintRTT
	if f.Output.StatsAddr != "" {
		config.StatsAddr = f.Output.StatsAddr
	}

	return config, nil
}
