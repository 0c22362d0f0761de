package anyconv

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/unixpickle/anyvec"
)

// Im2Row lays out the sliding windows of a sequence as
// the rows of a matrix, so that a 1-D convolution becomes
// a single matrix product.
//
// Row i holds the Window timesteps starting at i*Stride,
// each with InputDepth channels.
// An Im2Row caches its index mapping, so its fields must
// not change after first use.
type Im2Row struct {
	Window     int
	Stride     int
	InputWidth int
	InputDepth int

	lock   sync.Mutex
	mapper anyvec.Mapper
}

// InputSize is the length of one packed input sequence.
func (m *Im2Row) InputSize() int {
	return m.InputWidth * m.InputDepth
}

// NumWindows is the number of window positions that fit
// entirely inside the input.
func (m *Im2Row) NumWindows() int {
	if m.InputWidth < m.Window {
		return 0
	}
	return (m.InputWidth-m.Window)/m.Stride + 1
}

// MakeOut allocates a matrix shaped like the output of
// Map.
func (m *Im2Row) MakeOut(c anyvec.Creator) *anyvec.Matrix {
	rows, cols := m.NumWindows(), m.Window*m.InputDepth
	return &anyvec.Matrix{Data: c.MakeVector(rows * cols), Rows: rows, Cols: cols}
}

// Map converts every sequence in a packed batch to its row
// matrix and hands it to f along with the sequence index.
//
// The matrix is scratch space that is reused across calls,
// so f must not hold on to it.
// When parallel is set, f runs concurrently and in no
// particular order.
func (m *Im2Row) Map(in anyvec.Vector, parallel bool, f func(int, *anyvec.Matrix)) {
	size := m.InputSize()
	if in.Len()%size != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d", in.Len(), size))
	}
	mapper := m.Mapper(in.Creator())
	m.Each(in.Creator(), in.Len()/size, parallel, func(i int, mat *anyvec.Matrix) {
		mapper.Map(in.Slice(size*i, size*(i+1)), mat.Data)
		f(i, mat)
	})
}

// Each calls f for every index in [0, n) with a scratch
// matrix whose contents are undefined.
func (m *Im2Row) Each(c anyvec.Creator, n int, parallel bool, f func(int, *anyvec.Matrix)) {
	if !parallel {
		mat := m.MakeOut(c)
		for i := 0; i < n; i++ {
			f(i, mat)
		}
		return
	}

	indices := make(chan int, n)
	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)

	var wg conc.WaitGroup
	for w := 0; w < runtime.GOMAXPROCS(0); w++ {
		wg.Go(func() {
			mat := m.MakeOut(c)
			for i := range indices {
				f(i, mat)
			}
		})
	}
	wg.Wait()
}

// Mapper returns the cached window mapping for creator c.
func (m *Im2Row) Mapper(c anyvec.Creator) anyvec.Mapper {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.mapper == nil || m.mapper.Creator() != c {
		m.mapper = c.MakeMapper(m.InputSize(), m.windowIndices())
	}
	return m.mapper
}

func (m *Im2Row) windowIndices() []int {
	rowSize := m.Window * m.InputDepth
	res := make([]int, 0, m.NumWindows()*rowSize)
	for row := 0; row < m.NumWindows(); row++ {
		start := row * m.Stride * m.InputDepth
		for j := 0; j < rowSize; j++ {
			res = append(res, start+j)
		}
	}
	return res
}
