package attach

import (
	"context"
	"io"
)

type flusher interface {
	Flush() error
}

// flushWriter flushes the underlying writer after every write if it
// buffers, so that every chunk becomes visible on the other end.
type flushWriter struct {
	w io.Writer
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		return n, err
	}

	if f, ok := fw.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return n, err
		}
	}

	return n, nil
}

type readResult struct {
	n   int
	err error
}

// contextReader makes a blocking reader, such as a terminal, return
// once the context is done. A read that is in flight at that moment
// is abandoned, but it keeps blocking on the source. Whatever the
// source yields next, such as the next line typed into a terminal, is
// consumed by it and discarded. Later reads fail with the context's
// error without touching the source.
type contextReader struct {
	ctx     context.Context
	src     io.Reader
	buf     []byte
	results chan readResult
}

func newContextReader(ctx context.Context, src io.Reader) *contextReader {
	return &contextReader{
		ctx:     ctx,
		src:     src,
		results: make(chan readResult, 1),
	}
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	// The buffer is only reused once the previous read has returned.
	if cap(r.buf) < len(p) {
		r.buf = make([]byte, len(p))
	}
	buf := r.buf[:len(p)]

	go func() {
		n, err := r.src.Read(buf)
		r.results <- readResult{n: n, err: err}
	}()

	select {
	case res := <-r.results:
		return copy(p, buf[:res.n]), res.err
	case <-r.ctx.Done():
		// Detach the buffer from the abandoned read.
		r.buf = nil
		return 0, r.ctx.Err()
	}
}
