package app

import (
	"bytes"
	"sync"
)

type syncWriter struct {
	mutex sync.Mutex
	buf   *bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.buf.Write(p)
}
