package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ChatLib/internal/utils"
)

// Async 把请求处理提交到协程池执行，而不是在 gin 的 goroutine 中直接执行，
// 用于严格控制写密集型接口的并发量。pool 为 nil 时降级为同步执行。
// 主 goroutine 阻塞等待任务完成，所以同一时间只有一个 goroutine 操作 gin.Context。
func Async(pool *utils.WorkerPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pool == nil {
			c.Next()
			return
		}

		done := make(chan struct{})
		pool.Submit(func() {
			defer close(done)
			c.Next()
		})
		<-done
	}
}
