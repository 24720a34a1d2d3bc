// Package shortcode 预生成随机短码
package shortcode

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Charset 包含用于生成短码的所有字符
const Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrExhausted 多次尝试后仍然冲突
var ErrExhausted = errors.New("shortcode: 无法生成未被占用的短码")

const maxAttempts = 10

// Checker 判断候选短码是否已被占用（短码、别名或已退役的短码）
type Checker interface {
	SlugTaken(ctx context.Context, candidate string) (bool, error)
}

// Config 生成器参数
type Config struct {
	Length         int
	BufferSize     int
	MinFill        int
	RefillInterval time.Duration
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		Length:         7,
		BufferSize:     1000,
		MinFill:        100,
		RefillInterval: 5 * time.Second,
	}
}

// Generator 负责生成和提供唯一的短码
type Generator struct {
	checker   Checker
	cfg       Config
	codeChan  chan string
	mu        sync.Mutex
	isFilling bool
	stopChan  chan struct{}
	stopOnce  sync.Once
	logger    *zap.SugaredLogger
}

// NewGenerator 创建短码生成器，未设置的参数使用默认值
func NewGenerator(checker Checker, cfg Config, logger *zap.Logger) *Generator {
	def := DefaultConfig()
	if cfg.Length <= 0 {
		cfg.Length = def.Length
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MinFill <= 0 || cfg.MinFill > cfg.BufferSize {
		cfg.MinFill = max(1, cfg.BufferSize/10)
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = def.RefillInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		checker:  checker,
		cfg:      cfg,
		codeChan: make(chan string, cfg.BufferSize),
		stopChan: make(chan struct{}),
		logger:   logger.Named("shortcode_generator").Sugar(),
	}
}

// Start 启动后台填充和补充任务
func (g *Generator) Start() {
	g.logger.Info("启动短码生成器...")
	go g.fillChannel()
	go g.monitorAndRefill()
}

// Stop 停止后台任务，可重复调用
func (g *Generator) Stop() {
	g.stopOnce.Do(func() {
		g.logger.Info("正在停止短码生成器...")
		close(g.stopChan)
	})
}

// Buffered 通道中现有的短码数量
func (g *Generator) Buffered() int {
	return len(g.codeChan)
}

// Next 取一个未被占用的短码。通道为空时直接生成，不等待后台补充。
// 预生成的短码在取出时再检查一次，期间被别名占用的会被丢弃。
func (g *Generator) Next(ctx context.Context) (string, error) {
	for {
		select {
		case code := <-g.codeChan:
			taken, err := g.checker.SlugTaken(ctx, code)
			if err != nil {
				return "", err
			}
			if !taken {
				return code, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			return g.generateUniqueCode(ctx)
		}
	}
}

func (g *Generator) monitorAndRefill() {
	ticker := time.NewTicker(g.cfg.RefillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if len(g.codeChan) < g.cfg.MinFill {
				g.fillChannel()
			}
		case <-g.stopChan:
			g.logger.Info("已停止监控和补充任务。")
			return
		}
	}
}

func (g *Generator) fillChannel() {
	g.mu.Lock()
	if g.isFilling {
		g.mu.Unlock()
		return
	}
	g.isFilling = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.isFilling = false
		g.mu.Unlock()
	}()

	g.logger.Debugf("通道中剩余 %d 个短码，开始补充...", len(g.codeChan))
	ctx := context.Background()
	for len(g.codeChan) < g.cfg.BufferSize {
		select {
		case <-g.stopChan:
			g.logger.Info("填充任务已中断。")
			return
		default:
		}

		code, err := g.generateUniqueCode(ctx)
		if err != nil {
			g.logger.Errorf("生成唯一短码时出错: %v", err)
			// 存储不可用时避免空转
			select {
			case <-g.stopChan:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		select {
		case g.codeChan <- code:
		default:
			// Next 的直接生成可能和补充同时发生，通道已满时丢弃
			return
		}
	}
	g.logger.Debugf("短码通道已填满，现有 %d 个。", len(g.codeChan))
}

func (g *Generator) generateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		code, err := randomString(g.cfg.Length)
		if err != nil {
			return "", err
		}
		taken, err := g.checker.SlugTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	g.logger.Warnf("已尝试%d次生成短码，但均存在冲突。", maxAttempts)
	return "", ErrExhausted
}

// randomString 使用加密安全的随机数生成器生成给定长度的字符串
func randomString(length int) (string, error) {
	b := make([]byte, length)
	n := big.NewInt(int64(len(Charset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}
