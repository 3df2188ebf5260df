package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/imgscrape/internal/app/run"
	"github.com/John-Robertt/imgscrape/internal/config"
	"github.com/John-Robertt/imgscrape/internal/domain"
	"github.com/John-Robertt/imgscrape/internal/infra/httpx"
	"github.com/John-Robertt/imgscrape/internal/sitelist"
)

const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitCanceled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := realMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != exitOK {
		os.Exit(code)
	}
}

func realMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage(stdout)
			return exitOK
		}
	}

	ca, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printUsage(stderr)
		return exitUsage
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return exitFailed
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:     ca.ConfigPath,
		Root:           ca.Root,
		Delimiter:      ca.Delimiter,
		DelimiterSet:   ca.DelimiterSet,
		Concurrency:    ca.Concurrency,
		ConcurrencySet: ca.ConcurrencySet,
	})
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return exitFailed
	}

	log := newLogger(stderr, eff.LogLevel)

	sites, err := loadSites(ca, eff.Delimiter)
	if err != nil {
		log.Error().Str("code", domain.ErrCodeInputInvalid).Err(err).Msg("读取站点列表失败")
		return exitFailed
	}

	client, err := httpx.NewClient(httpx.Options{
		Timeout:   eff.Timeout,
		ProxyURL:  eff.ProxyURL,
		UserAgent: eff.UserAgent,
		Headers:   eff.Headers,
	})
	if err != nil {
		log.Error().Str("code", domain.ErrCodeConfigInvalid).Err(err).Msg("初始化 http client 失败")
		return exitFailed
	}

	log.Info().
		Str("root", eff.Root).
		Int("sites", len(sites)).
		Int("concurrency", eff.Concurrency).
		Str("proxy", formatProxy(eff.ProxyURL)).
		Dur("timeout", eff.Timeout).
		Msg("配置（生效）")

	// --json：stdout 只输出一个 RunReport JSON，进度改走 stderr。
	progressW := stdout
	if ca.JSON {
		progressW = stderr
	}
	ui := newProgressUI(progressW, eff.DisplayWidth)

	o := run.New(eff, client, run.WithLogger(log), run.WithObserver(ui))
	rr, runErr := o.Run(ctx, sites)

	if ca.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rr)
	}
	emitSummary(progressW, rr)
	emitFailures(log, rr)

	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		log.Warn().Msg("已取消")
		return exitCanceled
	case runErr != nil:
		log.Error().Err(runErr).Msg("运行中止")
		return exitFailed
	case rr.Summary.Failed > 0 || rr.Summary.ImagesBad > 0:
		return exitFailed
	default:
		return exitOK
	}
}

type cliArgs struct {
	Locations []string
	ListPath  string

	Delimiter    string
	DelimiterSet bool

	Root       string
	ConfigPath string

	Concurrency    int
	ConcurrencySet bool

	JSON bool
}

// parseArgs 支持 "--flag value" 与 "--flag=value" 两种写法；位置参数视为站点地址。
func parseArgs(args []string) (cliArgs, error) {
	ca := cliArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]

		name, val, hasVal := a, "", false
		if strings.HasPrefix(a, "--") {
			if k, v, ok := strings.Cut(a, "="); ok {
				name, val, hasVal = k, v, true
			}
		}
		value := func() (string, error) {
			if hasVal {
				return val, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s 需要一个值", name)
			}
			i++
			return args[i], nil
		}

		switch name {
		case "-u", "--url", "-w", "--website":
			v, err := value()
			if err != nil {
				return cliArgs{}, err
			}
			ca.Locations = append(ca.Locations, v)
		case "-c", "--csv", "-l", "--list":
			v, err := value()
			if err != nil {
				return cliArgs{}, err
			}
			if ca.ListPath != "" {
				return cliArgs{}, fmt.Errorf("重复的站点列表：%q 与 %q", ca.ListPath, v)
			}
			ca.ListPath = v
		case "-d", "--delimiter":
			v, err := value()
			if err != nil {
				return cliArgs{}, err
			}
			ca.Delimiter = v
			ca.DelimiterSet = true
		case "--root":
			v, err := value()
			if err != nil {
				return cliArgs{}, err
			}
			ca.Root = v
		case "--config":
			v, err := value()
			if err != nil {
				return cliArgs{}, err
			}
			ca.ConfigPath = v
		case "--concurrency":
			v, err := value()
			if err != nil {
				return cliArgs{}, err
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return cliArgs{}, fmt.Errorf("--concurrency 必须是整数，实际是 %q", v)
			}
			ca.Concurrency = n
			ca.ConcurrencySet = true
		case "--json":
			if hasVal {
				return cliArgs{}, fmt.Errorf("--json 不接受值")
			}
			ca.JSON = true
		default:
			if strings.HasPrefix(a, "-") {
				return cliArgs{}, fmt.Errorf("未知参数 %q", a)
			}
			ca.Locations = append(ca.Locations, a)
		}
	}

	if len(ca.Locations) == 0 && ca.ListPath == "" {
		return cliArgs{}, fmt.Errorf("至少需要一个站点地址（--url）或站点列表（--list）")
	}
	return ca, nil
}

// loadSites：站点列表在前，直接给出的地址在后（各自保持输入顺序）。
func loadSites(ca cliArgs, delimiter string) ([]domain.SiteRecord, error) {
	var sites []domain.SiteRecord
	if ca.ListPath != "" {
		recs, err := sitelist.LoadFile(ca.ListPath, delimiter)
		if err != nil {
			return nil, err
		}
		sites = append(sites, recs...)
	}
	return append(sites, sitelist.FromLocations(ca.Locations)...), nil
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func emitSummary(w io.Writer, rr domain.RunReport) {
	fmt.Fprintf(w, "完成：sites=%d skipped=%d failed=%d images=%d/%d\n",
		rr.Summary.Sites, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.ImagesOK, rr.Summary.Images,
	)
}

// emitFailures 把站点级失败逐条写入日志，便于定位。
func emitFailures(log zerolog.Logger, rr domain.RunReport) {
	for _, s := range rr.Sites {
		if s.Status != domain.StatusFailed {
			continue
		}
		key := s.Location
		if key == "" {
			key = "<unknown>"
		}
		log.Error().Int("site", s.Index).Str("location", key).Str("code", s.ErrorCode).Msg(s.ErrorMsg)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  imgscrape [--url <地址>]... [--list <文件>] [选项] [地址...]

输入：
  -u, --url, -w, --website <地址>  站点地址（可重复）
  -l, --list, -c, --csv <文件>     带表头的分隔文本（列 website/url 为站点地址，其余为元数据）
  -d, --delimiter <分隔符>         站点列表的列分隔符（默认制表符；可写 "\t"）

选项：
  --root <目录>          输出根目录（默认 ~/Desktop/scrape）
  --concurrency <n>      单站点下载并发数（默认 16；<=0 表示不限）
  --config <文件>        指定配置文件（默认读取 ./imgscrape.yaml，若存在）
  --json                 stdout 只输出 RunReport JSON（进度改走 stderr）
  -h, --help             显示帮助

环境变量：
  IMGSCRAPE_ROOT, IMGSCRAPE_PROXY, IMGSCRAPE_LOG_LEVEL, IMGSCRAPE_CONCURRENCY（也可写在 ./.env）
`)
}
