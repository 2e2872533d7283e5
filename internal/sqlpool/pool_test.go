package sqlpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquireBlocksOnceSemaphoreExhausted exercises the bounding semaphore
// without needing a real driver registered: Acquire blocks on the
// semaphore before it ever touches *sql.DB, so we can observe the bound
// with PoolSize=1 and never let the second Acquire reach db.Conn.
func TestAcquireBlocksOnceSemaphoreExhausted(t *testing.T) {
	p := &Pool{sem: make(chan struct{}, 1)}
	p.sem <- struct{}{} // simulate one outstanding checkout

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseFreesSemaphoreSlot(t *testing.T) {
	p := &Pool{sem: make(chan struct{}, 1)}
	p.sem <- struct{}{}

	<-p.sem // mimic what Release's <-p.sem does without a real *sql.Conn
	require.Len(t, p.sem, 0)

	select {
	case p.sem <- struct{}{}:
	default:
		t.Fatal("semaphore slot should be free after release")
	}
}
