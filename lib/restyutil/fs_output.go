package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"easypce-backend/lib/configutil"
)

// FilesystemOutput writes every recorded http exchange into its own file,
// named after the message id, under a directory that is wiped on creation.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	dir, err := configutil.ResolvePath(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// MemoryOutput keeps recorded exchanges in memory, keyed by message id.
type MemoryOutput struct {
	mutex    sync.Mutex
	Messages map[string]string
}

func NewMemoryOutput() *MemoryOutput {
	return &MemoryOutput{Messages: map[string]string{}}
}

func (o *MemoryOutput) Write(id string, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Messages[id] = contents
}
