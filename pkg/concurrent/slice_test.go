package concurrent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlice_Append(t *testing.T) {
	s := NewSlice[int]()

	s.Append(1)
	s.Append(2)
	s.Append(3)

	assert.Equal(t, 3, s.Length())
	assert.Equal(t, []int{1, 2, 3}, s.All())
}

func TestSlice_AllReturnsCopy(t *testing.T) {
	s := NewSlice[string]()
	s.Append("a")

	all := s.All()
	all[0] = "b"

	assert.Equal(t, []string{"a"}, s.All())
}

func TestSlice_Drain(t *testing.T) {
	s := NewSlice[int]()
	s.Append(1)
	s.Append(2)

	assert.Equal(t, []int{1, 2}, s.Drain())
	assert.Equal(t, 0, s.Length())
	assert.Empty(t, s.Drain())
}

func TestSlice_Clear(t *testing.T) {
	s := NewSlice[int]()
	s.Append(1)
	s.Clear()

	assert.Equal(t, 0, s.Length())
	assert.Empty(t, s.All())
}

func TestSlice_ConcurrentAppend(t *testing.T) {
	s := NewSlice[int]()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Append(v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, s.Length())
}
