package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是 cwd 下自动发现的配置文件名（可选）。
	FileName = "imgscrape.yaml"
	// DotEnvName 是 cwd 下自动读取的环境变量文件（可选）。
	DotEnvName = ".env"

	DefaultRoot         = "~/Desktop/scrape"
	DefaultManifestName = "INFO.txt"
	DefaultDelimiter    = "\t"
	DefaultConcurrency  = 16
	DefaultTimeout      = 10 * time.Second
	DefaultDisplayWidth = 150
	DefaultLogLevel     = "info"
)

// 环境变量覆盖项（优先级：CLI > 环境变量 > .env > 配置文件 > 默认值）。
const (
	EnvRoot        = "IMGSCRAPE_ROOT"
	EnvProxy       = "IMGSCRAPE_PROXY"
	EnvLogLevel    = "IMGSCRAPE_LOG_LEVEL"
	EnvConcurrency = "IMGSCRAPE_CONCURRENCY"
)

// CLIArgs 只包含 CLI 暴露的配置项，并保留“是否显式指定”的信息。
type CLIArgs struct {
	ConfigPath string

	Root string

	Delimiter    string
	DelimiterSet bool

	Concurrency    int
	ConcurrencySet bool
}

// FileConfig 对应 imgscrape.yaml 的解析结构。
type FileConfig struct {
	Root         string            `yaml:"root"`
	ManifestName string            `yaml:"manifest_name"`
	Delimiter    *string           `yaml:"delimiter"`
	Concurrency  *int              `yaml:"concurrency"`
	Timeout      string            `yaml:"timeout"`
	UserAgent    string            `yaml:"user_agent"`
	Headers      map[string]string `yaml:"headers"`
	Proxy        *ProxyConfig      `yaml:"proxy"`
	DisplayWidth int               `yaml:"display_width"`
	OrderedLog   *bool             `yaml:"ordered_log"`
	SaveHTML     bool              `yaml:"save_html"`
	LogLevel     string            `yaml:"log_level"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// EffectiveConfig 是合并并规范化后的最终配置。
//
// 构造后不可变：编排层在创建时拿到一份值拷贝，运行期间不再读取任何全局状态。
type EffectiveConfig struct {
	Root         string
	ManifestName string
	Delimiter    string

	// Concurrency<=0 表示单站点内不限并发。
	Concurrency int
	Timeout     time.Duration

	UserAgent string
	Headers   map[string]string
	ProxyURL  string

	DisplayWidth int
	OrderedLog   bool
	SaveHTML     bool
	LogLevel     string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// 可替换，便于测试固定 home 目录。
var userHomeDir = os.UserHomeDir

// LoadEffective 发现并读取配置，然后与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/imgscrape.yaml（可选）
// 3) <cwd>/.env 可选；只补充未在进程环境中设置的变量
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	envPath := filepath.Join(cwdAbs, DotEnvName)
	env, err := readDotEnv(envPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: envPath, Err: err}
	}

	return merge(cwdAbs, cli, fc, env, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, env map[string]string, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// root：CLI > env > config > 默认
	root := DefaultRoot
	if v := strings.TrimSpace(fc.Root); v != "" {
		root = v
	}
	if v := lookup(env, EnvRoot); v != "" {
		root = v
	}
	if v := strings.TrimSpace(cli.Root); v != "" {
		root = v
	}
	root, err := expandHome(root)
	if err != nil {
		return invalid(fmt.Errorf("root 无法展开：%w", err))
	}
	root = absCleanFrom(cwdAbs, root)

	delimiter := DefaultDelimiter
	if fc.Delimiter != nil {
		delimiter = *fc.Delimiter
	}
	if cli.DelimiterSet {
		delimiter = unescapeDelimiter(cli.Delimiter)
	}
	if delimiter == "" {
		return invalid(errors.New("delimiter 不能为空"))
	}

	concurrency := DefaultConcurrency
	if fc.Concurrency != nil {
		concurrency = *fc.Concurrency
	}
	if v := lookup(env, EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalid(fmt.Errorf("%s 不是整数：%q", EnvConcurrency, v))
		}
		concurrency = n
	}
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency < 0 {
		concurrency = 0
	}

	timeout := DefaultTimeout
	if v := strings.TrimSpace(fc.Timeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return invalid(fmt.Errorf("timeout 无效：%q", v))
		}
		timeout = d
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if v := lookup(env, EnvProxy); v != "" {
		proxyURL = v
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
		if u.Scheme == "" || u.Host == "" {
			return invalid(fmt.Errorf("proxy.url 必须包含 scheme 与 host：%q", proxyURL))
		}
	}

	logLevel := DefaultLogLevel
	if v := strings.TrimSpace(fc.LogLevel); v != "" {
		logLevel = v
	}
	if v := lookup(env, EnvLogLevel); v != "" {
		logLevel = v
	}
	logLevel = strings.ToLower(logLevel)
	if _, err := zerolog.ParseLevel(logLevel); err != nil {
		return invalid(fmt.Errorf("log_level 无效：%q", logLevel))
	}

	manifestName := DefaultManifestName
	if v := strings.TrimSpace(fc.ManifestName); v != "" {
		if strings.ContainsAny(v, `/\`) {
			return invalid(fmt.Errorf("manifest_name 不能包含路径分隔符：%q", v))
		}
		manifestName = v
	}

	displayWidth := fc.DisplayWidth
	if displayWidth <= 0 {
		displayWidth = DefaultDisplayWidth
	}

	orderedLog := true
	if fc.OrderedLog != nil {
		orderedLog = *fc.OrderedLog
	}

	headers := make(map[string]string, len(fc.Headers))
	for k, v := range fc.Headers {
		headers[k] = v
	}

	return EffectiveConfig{
		Root:         root,
		ManifestName: manifestName,
		Delimiter:    delimiter,
		Concurrency:  concurrency,
		Timeout:      timeout,
		UserAgent:    strings.TrimSpace(fc.UserAgent),
		Headers:      headers,
		ProxyURL:     proxyURL,
		DisplayWidth: displayWidth,
		OrderedLog:   orderedLog,
		SaveHTML:     fc.SaveHTML,
		LogLevel:     logLevel,
	}, nil
}

// lookup：进程环境优先，其次 .env；空值视为未设置。
func lookup(env map[string]string, key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(env[key])
}

// unescapeDelimiter 允许在命令行写 "\t" 表示制表符。
func unescapeDelimiter(s string) string {
	switch s {
	case `\t`, "tab", "TAB":
		return "\t"
	default:
		return s
	}
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := userHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// readDotEnv 读取 .env（不修改进程环境）；不存在时返回空 map。
func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}
