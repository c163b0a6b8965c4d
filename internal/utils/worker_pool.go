package utils

import (
	"sync"

	"go.uber.org/zap"

	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// WorkerPool 通用协程池，限制写密集型请求的并发处理数量。
// 队列满时 Submit 阻塞而不是拒绝，请求排队等待处理。
type WorkerPool struct {
	jobQueue  chan func()
	workerNum int
	log       *logger.Logger
	wg        sync.WaitGroup
	quit      chan struct{}
}

// NewWorkerPool 创建一个新的协程池
func NewWorkerPool(workerNum, queueSize int, log *logger.Logger) *WorkerPool {
	return &WorkerPool{
		jobQueue:  make(chan func(), queueSize),
		workerNum: workerNum,
		log:       log,
		quit:      make(chan struct{}),
	}
}

// Start 启动协程池
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobQueue:
					// 单个任务 panic 不能拖垮 worker
					func() {
						defer func() {
							if r := recover(); r != nil {
								p.log.Error("worker panic",
									zap.Int("worker_id", workerID), zap.Any("panic", r))
							}
						}()
						job()
					}()
				case <-p.quit:
					return
				}
			}
		}(i)
	}
	p.log.Info("worker pool started", zap.Int("workers", p.workerNum))
}

// Submit 提交任务，队列满时阻塞直到有空位
func (p *WorkerPool) Submit(job func()) {
	p.jobQueue <- job
}

// Stop 停止协程池并等待在执行的任务结束
func (p *WorkerPool) Stop() {
	close(p.quit)
	p.wg.Wait()
}
