package threadpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTaskRunsAndReturnsResult(t *testing.T) {
	p := New(2)
	defer p.Stop()

	task := NewTask(1, func() int { return 99 })
	p.AddTask(task)

	select {
	case r := <-task.Result:
		assert.Equal(t, 99, r)
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}
}

func TestWaitBlocksUntilAllTasksDone(t *testing.T) {
	p := New(3)
	defer p.Stop()

	var ran int32
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		p.AddTask(NewTask(1, func() int {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&ran, 1)
			wg.Done()
			return 0
		}))
	}

	p.Wait()
	assert.Equal(t, int32(10), atomic.LoadInt32(&ran))
}

func TestHigherPriorityRunsFirst(t *testing.T) {
	p := New(1)
	defer p.Stop()

	var order []int
	var mu sync.Mutex
	block := make(chan struct{})

	// occupy the single worker so both priorities queue up before either runs
	p.AddTask(NewTask(0, func() int {
		<-block
		return 0
	}))
	time.Sleep(10 * time.Millisecond)

	low := NewTask(2, func() int {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		return 0
	})
	high := NewTask(3, func() int {
		mu.Lock()
		order = append(order, 3)
		mu.Unlock()
		return 0
	})
	p.AddTask(low)
	p.AddTask(high)
	close(block)

	<-low.Result
	<-high.Result

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, 3, order[0])
	assert.Equal(t, 2, order[1])
}
