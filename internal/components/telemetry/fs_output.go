package telemetry

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput implements MessageOutput by writing every message to its
// own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears out `dir` and returns an output that writes into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
