// Package main is the entry point for tcpflood.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tcpflood/internal/config"
	"tcpflood/internal/logger"
	"tcpflood/internal/runner"
)

var (
	version = "dev"
)

// countValue は繰り返し指定できるフラグ（-v -v など）のカウンタ
type countValue int

func (c *countValue) String() string { return strconv.Itoa(int(*c)) }

func (c *countValue) Set(string) error {
	*c++
	return nil
}

func (c *countValue) IsBoolFlag() bool { return true }

func main() {
	fs := flag.NewFlagSet("tcpflood", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	// フラグ定義
	var verbosity countValue
	var (
		port        = fs.Int("p", 0, "接続先TCPポート（必須）")
		rate        = fs.Int("r", 0, "全コネクション合計の送信レート クエリ/秒（必須）")
		connections = fs.Int("c", 0, "TCPコネクション数（必須）")
		newConnRate = fs.Int("n", 1000, "新規コネクション確立レート 本/秒")
		printRTT    = fs.Bool("R", false, "RTTサンプルをマイクロ秒整数で標準出力へ1行ずつ出力")
		duration    = fs.Int("t", 0, "実行時間 秒（0で無期限）")
		window      = fs.Int("w", config.DefaultConfig().Window, "コネクションあたりのRTTタイムスタンプ保持数")
		seed        = fs.Int64("seed", config.DefaultSeed, "位相オフセット乱数のシード")
		configFile  = fs.String("config", "", "設定ファイルパス (YAML/JSON)")
		statsAddr   = fs.String("stats", "", "統計サーバーのアドレス (例: :8080)")
		showVersion = fs.Bool("version", false, "バージョンを表示")
	)
	fs.Var(&verbosity, "v", "詳細ログを有効化（繰り返しでさらに詳細に）")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tcpflood - TCP load generator for length-prefixed request/response servers

Usage:
  tcpflood [-h] [-v] [-R] [-t duration] [-n new_conn_rate] [-w window] -p <port> -r <rate> -c <nb_conn> <host>

Opens the chosen number of TCP connections to the host and sends a fixed
31-byte query per dispatch. [rate] is the total number of queries per second
across all connections. With -R, all RTT samples are printed in microseconds,
one per line, on standard output.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 1000コネクションで合計500クエリ/秒を30秒間
  tcpflood -p 853 -r 500 -c 1000 -t 30 dns.example.net

  # RTTサンプルを出力しながら実行
  tcpflood -p 5353 -r 10 -c 2 -R localhost

  # 設定ファイルから実行
  tcpflood -config load.yaml
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// バージョン表示
	if *showVersion {
		fmt.Printf("tcpflood version %s\n", version)
		return
	}

	// 設定ファイルとフラグから設定を構築（フラグ優先）
	cfg, err := buildConfig(fs, *configFile, *port, *rate, *connections,
		*newConnRate, *duration, *window, *seed, int(verbosity), *printRTT, *statsAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}

	logger.Default.SetLevel(cfg.LogLevel())

	// シグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("", "Interrupt received, shutting down...")
		cancel()
	}()

	result, err := runner.New(cfg).Run(ctx)
	if err != nil {
		logger.Error("", "Run failed: %v", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, result.Report())
}

// buildConfig は設定ファイルとフラグをマージする
// ファイルを読んだ後、明示的に指定されたフラグで上書きする
func buildConfig(fs *flag.FlagSet, configFile string, port, rate, connections,
	newConnRate, duration, window int, seed int64, verbosity int,
	printRTT bool, statsAddr string) (config.Config, error) {

	cfg := config.DefaultConfig()

	if configFile != "" {
		fileConfig, err := config.LoadFile(configFile)
		if err != nil {
			return cfg, err
		}
		cfg, err = fileConfig.ToConfig()
		if err != nil {
			return cfg, err
		}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["p"] {
		cfg.Port = port
	}
	if set["r"] {
		cfg.Rate = rate
	}
	if set["c"] {
		cfg.Connections = connections
	}
	if set["n"] {
		cfg.NewConnRate = newConnRate
	}
	if set["t"] {
		cfg.Duration = time.Duration(duration) * time.Second
	}
	if set["w"] {
		cfg.Window = window
	}
	if set["seed"] {
		cfg.Seed = seed
	}
	if set["stats"] {
		cfg.StatsAddr = statsAddr
	}
	cfg.Verbosity = verbosity
	if printRTT {
		cfg.PrintRTT = true
	}

	if fs.NArg() > 0 {
		cfg.Host = fs.Arg(0)
	}

	if cfg.Host == "" || cfg.Port == 0 || cfg.Rate == 0 || cfg.Connections == 0 {
		return cfg, fmt.Errorf("missing mandatory arguments")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
