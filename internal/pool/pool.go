// Package pool 提供固定数量 worker 与有界队列的后台任务池。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task 一个后台任务
type Task func(ctx context.Context) error

// Config 任务池配置
type Config struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
	// PanicHandler 任务 panic 时回调
	PanicHandler func(any) `json:"-"`
	// ErrorHandler 任务返回错误时回调
	ErrorHandler func(error) `json:"-"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256}
}

// Pool 固定 worker 的任务池。Submit 不阻塞，队列满时直接拒绝。
type Pool struct {
	cfg   Config
	queue chan Task
	ctx   context.Context
	stop  context.CancelFunc
	wg    sync.WaitGroup

	// mu 保护 closed 与向 queue 发送，避免向已关闭通道写入
	mu     sync.RWMutex
	closed bool

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// New 创建任务池并启动 worker
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:   cfg,
		queue: make(chan Task, cfg.QueueSize),
		ctx:   ctx,
		stop:  cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit 提交任务；池已关闭返回 ErrPoolClosed，队列满返回 ErrPoolFull
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.active.Add(1)
		err := p.run(task)
		p.active.Add(-1)

		if err != nil {
			p.failed.Add(1)
			if p.cfg.ErrorHandler != nil {
				p.cfg.ErrorHandler(err)
			}
		} else {
			p.completed.Add(1)
		}
	}
}

func (p *Pool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.cfg.PanicHandler != nil {
				p.cfg.PanicHandler(r)
			}
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(p.ctx)
}

// Close 停止接收新任务并等待队列排空。
// ctx 到期时取消仍在执行的任务并返回 ctx.Err()。重复调用安全。
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.stop()
		return nil
	case <-ctx.Done():
		p.stop()
		<-done
		return ctx.Err()
	}
}

// Stats 任务池统计
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.cfg.Workers,
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats 统计信息
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
