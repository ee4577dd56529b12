package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Pool runs several workers against the same queue. The claim query keeps
// them from picking up the same item.
type Pool []*Worker

func NewPool(n int, q Queue, store ProfileStore, embedder Embedder, mirror VectorMirror, opts Options) Pool {
	if n <= 0 {
		n = 1
	}
	p := make(Pool, n)
	for i := range p {
		o := opts
		o.ID = fmt.Sprintf("worker-%d", i)
		w := New(q, store, embedder, o)
		if mirror != nil {
			w.WithMirror(mirror)
		}
		p[i] = w
	}
	return p
}

func (p Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p {
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}

func (p Pool) Wake() {
	for _, w := range p {
		w.Wake()
	}
}
