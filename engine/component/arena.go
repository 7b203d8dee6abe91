package component

// chunkSize is the number of records per arena chunk. Chunks are allocated at full
// capacity and never grown, so record addresses only change during a sweep.
const chunkSize = 256

// recordPtr constrains arena element pointers to component records.
type recordPtr[T any] interface {
	*T
	Component
}

// slots is the type-erased view of an arena used by the Store.
type slots interface {
	alloc(h Handle) (int, Component)
	record(i int) Component
	owner(i int) Handle
	swapRemove(i int) Handle
	len() int
}

// arena stores records of one type contiguously in fixed-size chunks.
type arena[T any, P recordPtr[T]] struct {
	chunks [][]T
	owners []Handle
}

var _ slots = &arena[Transform, *Transform]{}

func (a *arena[T, P]) alloc(h Handle) (int, Component) {
	n := len(a.owners)
	if n/chunkSize == len(a.chunks) {
		a.chunks = append(a.chunks, make([]T, 0, chunkSize))
	}
	c := n / chunkSize
	var zero T
	a.chunks[c] = append(a.chunks[c], zero)
	a.owners = append(a.owners, h)
	return n, P(&a.chunks[c][n%chunkSize])
}

func (a *arena[T, P]) at(i int) P {
	return P(&a.chunks[i/chunkSize][i%chunkSize])
}

func (a *arena[T, P]) record(i int) Component {
	return a.at(i)
}

func (a *arena[T, P]) owner(i int) Handle {
	return a.owners[i]
}

func (a *arena[T, P]) len() int {
	return len(a.owners)
}

// swapRemove moves the last record into slot i and shrinks the arena by one.
// It returns the handle of the record that moved into i, or zero if i was last.
func (a *arena[T, P]) swapRemove(i int) Handle {
	last := len(a.owners) - 1
	var moved Handle
	if i != last {
		a.chunks[i/chunkSize][i%chunkSize] = a.chunks[last/chunkSize][last%chunkSize]
		a.owners[i] = a.owners[last]
		moved = a.owners[i]
	}
	var zero T
	c := last / chunkSize
	a.chunks[c][last%chunkSize] = zero
	a.chunks[c] = a.chunks[c][:last%chunkSize]
	if len(a.chunks[c]) == 0 {
		a.chunks = a.chunks[:c]
	}
	a.owners = a.owners[:last]
	return moved
}
