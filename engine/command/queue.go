package command

import "sync"

// Queue is a double-buffered command list. Any goroutine may Push; Swap and Drain belong
// to the render goroutine, which alternates them once per frame.
type Queue interface {
	// Push appends cmd to the write side.
	Push(cmd Command)

	// PushAll appends cmds to the write side under a single lock, preserving their order.
	PushAll(cmds ...Command)

	// Swap exchanges the write and read sides. Commands pushed before Swap are drained by
	// the next Drain; commands pushed after it wait for the following frame.
	Swap()

	// Drain executes every command on the read side in push order, then empties it.
	//
	// Parameters:
	//   - t: the state the commands mutate
	//
	// Returns:
	//   - int: the number of commands executed
	Drain(t *Target) int

	// Pending returns the number of commands on the write side.
	Pending() int
}

type queue struct {
	mu    sync.Mutex
	lists [2][]Command
	read  int
}

var _ Queue = &queue{}

// NewQueue creates an empty Queue.
//
// Returns:
//   - Queue: the new queue
func NewQueue() Queue {
	return &queue{}
}

func (q *queue) Push(cmd Command) {
	q.mu.Lock()
	w := 1 - q.read
	q.lists[w] = append(q.lists[w], cmd)
	q.mu.Unlock()
}

func (q *queue) PushAll(cmds ...Command) {
	q.mu.Lock()
	w := 1 - q.read
	q.lists[w] = append(q.lists[w], cmds...)
	q.mu.Unlock()
}

func (q *queue) Swap() {
	q.mu.Lock()
	q.read = 1 - q.read
	q.mu.Unlock()
}

func (q *queue) Drain(t *Target) int {
	// The read side is only touched here and in Swap, both on the render goroutine.
	list := q.lists[q.read]
	if len(list) == 0 {
		return 0
	}
	for _, cmd := range list {
		if err := cmd.Execute(t); err != nil {
			t.handle(cmd, err)
		}
	}
	clear(list)
	q.lists[q.read] = list[:0]
	return len(list)
}

func (q *queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lists[1-q.read])
}
