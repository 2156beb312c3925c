package harness

import (
	"os"

	"github.com/zjrosen/tokenengine/internal/log"
	"github.com/zjrosen/tokenengine/internal/watcher"
)

// FileSource watches a single file on disk and pushes its contents into a
// StubBuffer via SetText whenever it changes, letting the demo harness be
// driven by an external editor instead of a synthetic edit generator.
type FileSource struct {
	w    *watcher.Watcher
	buf  *StubBuffer
	path string
}

// NewFileSource starts watching path and returns a FileSource feeding buf.
// The buffer is flushed with the file's initial contents immediately.
func NewFileSource(path string, buf *StubBuffer) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	buf.Flush(string(data))

	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		return nil, err
	}

	fs := &FileSource{w: w, buf: buf, path: path}

	onChange, err := w.Start()
	if err != nil {
		return nil, err
	}
	go fs.loop(onChange)

	return fs, nil
}

func (fs *FileSource) loop(onChange <-chan struct{}) {
	for range onChange {
		data, err := os.ReadFile(fs.path)
		if err != nil {
			log.ErrorErr(log.CatWatcher, "reread failed", err, "path", fs.path)
			continue
		}
		fs.buf.SetText(string(data))
	}
}

// Close stops watching.
func (fs *FileSource) Close() error {
	return fs.w.Stop()
}
