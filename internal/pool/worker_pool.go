// Package pool 限制批量别名操作的并发数。
package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"aliaskit/client/internal/logger"
)

// WorkerPool 协程池
//
// 用于限制同时发往服务端的请求数量
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	log        *zap.Logger
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 最大协程数，小于 1 时按 1 处理
//   - queueSize: 任务队列大小
//   - log: 日志记录器，可为 nil
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
		log:        logger.OrNop(log).Named("pool"),
	}
}

// Start 启动协程池
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务
//
// 如果队列已满，会阻塞直到有空位
func (p *WorkerPool) Submit(task func()) {
	p.taskQueue <- task
}

// TrySubmit 尝试提交任务
//
// 如果队列已满，立即返回 false
func (p *WorkerPool) TrySubmit(task func()) bool {
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop 停止接收任务并等待已提交的任务完成
func (p *WorkerPool) Stop() {
	close(p.taskQueue)
	p.wg.Wait()
}

// worker 工作协程
//
// ctx 结束后剩余任务仍会被取出执行，由任务自己检查 ctx。
func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for task := range p.taskQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("task panicked", zap.Any("panic", r))
				}
			}()
			task()
		}()
	}
}

// Each 用至多 workers 个协程对每个元素执行 fn。
//
// 返回的错误切片与 items 一一对应；ctx 结束后尚未开始的元素记为 ctx.Err()。
func Each[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error, log *zap.Logger) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	if workers > len(items) {
		workers = len(items)
	}

	p := NewWorkerPool(workers, len(items), log)
	p.Start(ctx)
	for i, item := range items {
		i, item := i, item
		p.Submit(func() {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("task panicked: %v", r)
				}
			}()
			errs[i] = fn(ctx, item)
		})
	}
	p.Stop()
	return errs
}
