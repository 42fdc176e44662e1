package system

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// LogTailer follows a plain log file from its current end, like tail -f.
func NewLogTailer(path string, log logrus.FieldLogger) LogTailer {
	return LogTailer{
		path: path,
		poll: 200 * time.Millisecond,
		log:  log,
	}
}

type LogTailer struct {
	path string
	poll time.Duration
	log  logrus.FieldLogger
}

// GetChan streams lines appended after the call. The channel closes when
// cancel is called or the file becomes unreadable.
func (t LogTailer) GetChan() (context.CancelFunc, chan string, error) {
	file, err := os.Open(t.path)
	if err != nil {
		return nil, nil, err
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string, 10)

	go func() {
		defer close(out)
		defer file.Close()

		reader := bufio.NewReader(file)
		partial := ""
		for {
			line, err := reader.ReadString('\n')
			if err == nil {
				select {
				case out <- trimNewline(partial + line):
				case <-ctx.Done():
					return
				}
				partial = ""
				continue
			}
			if err != io.EOF {
				t.log.WithError(err).Warn("log tail stopped")
				return
			}
			// keep a line that is still being written
			partial += line
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.poll):
			}
		}
	}()
	return cancel, out, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
