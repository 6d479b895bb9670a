package router

import (
	"sync"
	"testing"
	"time"
)

func TestGrowableBuffer_SendReceiveOrder(t *testing.T) {
	buf := NewGrowableBuffer[int](10)

	for i := 0; i < 5; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) = false", i)
		}
	}
	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		v, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() empty at item %d", i)
		}
		if v != i {
			t.Errorf("received %d, want %d", v, i)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("Len() = %d, want 0", buf.Len())
	}
}

func TestGrowableBuffer_GrowsBeforeFull(t *testing.T) {
	buf := NewGrowableBuffer[int](10)

	for i := 0; i < 7; i++ {
		buf.Send(i)
	}

	stats := buf.Stats()
	if stats.Capacity <= 10 {
		t.Errorf("Capacity = %d, expected growth at 70%% fill", stats.Capacity)
	}
	if stats.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", stats.Resizes)
	}

	for i := 0; i < 7; i++ {
		v, ok := buf.TryReceive()
		if !ok || v != i {
			t.Fatalf("TryReceive() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestGrowableBuffer_NeverDrops(t *testing.T) {
	buf := NewGrowableBuffer[int](4)

	for i := 0; i < 100; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) = false", i)
		}
	}

	stats := buf.Stats()
	if stats.Count != 100 {
		t.Errorf("Count = %d, want 100", stats.Count)
	}
	if stats.Resizes < 3 {
		t.Errorf("Resizes = %d, want at least 3", stats.Resizes)
	}

	for i := 0; i < 100; i++ {
		v, ok := buf.TryReceive()
		if !ok || v != i {
			t.Fatalf("TryReceive() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestGrowableBuffer_WrapAroundGrowth(t *testing.T) {
	buf := NewGrowableBuffer[int](5)

	buf.Send(1)
	buf.Send(2)
	buf.Send(3)
	buf.TryReceive()
	buf.TryReceive()

	// Tail wraps behind head, then growth has to unwrap the ring.
	for v := 4; v <= 8; v++ {
		buf.Send(v)
	}

	want := []int{3, 4, 5, 6, 7, 8}
	for _, w := range want {
		got, ok := buf.TryReceive()
		if !ok || got != w {
			t.Fatalf("TryReceive() = %d, %v; want %d, true", got, ok, w)
		}
	}
}

func TestGrowableBuffer_ReceiveBlocksUntilSend(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	got := make(chan int, 1)

	go func() {
		if v, ok := buf.Receive(); ok {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Send(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("received %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not wake after Send")
	}
}

func TestGrowableBuffer_Close(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	buf.Send(1)
	buf.Send(2)
	buf.Close()

	if buf.Send(3) {
		t.Error("Send after Close = true, want false")
	}

	// Buffered items survive the close.
	if v, ok := buf.TryReceive(); !ok || v != 1 {
		t.Errorf("TryReceive() = %d, %v; want 1, true", v, ok)
	}
	if v, ok := buf.Receive(); !ok || v != 2 {
		t.Errorf("Receive() = %d, %v; want 2, true", v, ok)
	}
	if _, ok := buf.Receive(); ok {
		t.Error("Receive on closed drained buffer = true, want false")
	}
}

func TestGrowableBuffer_CloseWakesReceiver(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	done := make(chan bool, 1)

	go func() {
		_, ok := buf.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive = true after close on empty buffer")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake blocked Receive")
	}
}

func TestGrowableBuffer_DrainTo(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	for i := 0; i < 10; i++ {
		buf.Send(i)
	}

	items := buf.DrainTo(5)
	if len(items) != 5 {
		t.Fatalf("DrainTo(5) returned %d items, want 5", len(items))
	}
	for i, v := range items {
		if v != i {
			t.Errorf("items[%d] = %d, want %d", i, v, i)
		}
	}

	items = buf.DrainTo(0)
	if len(items) != 5 {
		t.Errorf("DrainTo(0) returned %d items, want remaining 5", len(items))
	}
	if buf.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after full drain", buf.Len())
	}
	if buf.DrainTo(0) != nil {
		t.Error("DrainTo on empty buffer should return nil")
	}
}

func TestGrowableBuffer_ConcurrentSendReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](8)
	const items = 1000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < items; i++ {
			buf.Send(i)
		}
	}()

	received := make([]int, 0, items)
	go func() {
		defer wg.Done()
		for i := 0; i < items; i++ {
			if v, ok := buf.Receive(); ok {
				received = append(received, v)
			}
		}
	}()

	wg.Wait()

	if len(received) != items {
		t.Fatalf("received %d items, want %d", len(received), items)
	}
	// Single producer, single consumer: FIFO order is preserved.
	for i, v := range received {
		if v != i {
			t.Fatalf("received[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestGrowableBuffer_Stats(t *testing.T) {
	buf := NewGrowableBuffer[int](10)

	stats := buf.Stats()
	if stats.Count != 0 || stats.Capacity != 10 || stats.TotalIn != 0 || stats.TotalOut != 0 {
		t.Errorf("fresh buffer stats = %+v", stats)
	}

	buf.Send(1)
	buf.Send(2)
	buf.Send(3)
	buf.TryReceive()

	stats = buf.Stats()
	if stats.Count != 2 || stats.TotalIn != 3 || stats.TotalOut != 1 {
		t.Errorf("stats = %+v, want Count 2, TotalIn 3, TotalOut 1", stats)
	}
}

func TestNewGrowableBuffer_MinCapacity(t *testing.T) {
	if got := NewGrowableBuffer[int](0).Cap(); got != 1 {
		t.Errorf("Cap() = %d, want 1 for zero capacity", got)
	}
	if got := NewGrowableBuffer[int](-3).Cap(); got != 1 {
		t.Errorf("Cap() = %d, want 1 for negative capacity", got)
	}
}
