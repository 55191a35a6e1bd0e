package requestlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// maxLines bounds log.txt to the most recent requests.
const maxLines = 200

// TextLog appends one line per request to a plain-text file, trimmed to
// the last maxLines lines after every append. Writes are serialized
// through a single goroutine so concurrent requests never interleave
// mid-line or race on the trim-and-rewrite.
type TextLog struct {
	path   string
	ch     chan Entry
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewTextLog opens (creating parent directories as needed) path for
// appending and starts the writer goroutine.
func NewTextLog(path string) (*TextLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("requestlog: create log dir: %w", err)
	}
	l := &TextLog{
		path:   path,
		ch:     make(chan Entry, 256),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func formatLine(e Entry) string {
	return fmt.Sprintf("%s | %s | %s | %s | %d | %d | %s",
		e.Timestamp.Format("02-01-2006 15:04:05"), e.Model, e.ProviderID, e.Account,
		e.SentTokens, e.RecvTokens, e.Status)
}

func (l *TextLog) append(e Entry) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	lines = append(lines, formatLine(e))
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	if _, err := f.Seek(0, 0); err != nil {
		return
	}
	if err := f.Truncate(0); err != nil {
		return
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	w.Flush()
}

func (l *TextLog) run() {
	defer close(l.doneCh)
	for {
		select {
		case e := <-l.ch:
			l.append(e)
		case <-l.stopCh:
			for {
				select {
				case e := <-l.ch:
					l.append(e)
				default:
					return
				}
			}
		}
	}
}

// Append queues e for writing. The entry is dropped if the queue is
// full rather than blocking the request path.
func (l *TextLog) Append(e Entry) {
	select {
	case l.ch <- e:
	default:
	}
}

// Close drains any queued entries and stops the writer goroutine.
func (l *TextLog) Close() {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}
	<-l.doneCh
}
