// Package console contains the sinks for text meant for a human rather than
// the logs: server operator reports and client chat output.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Display shows a single line of text to the person at the console.
type Display interface {
	Display(message string)
}

// Writer is a Display that writes each message on its own line.
type Writer struct {
	mu  sync.Mutex
	Out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{Out: out}
}

func (w *Writer) Display(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.Out, message)
}

// Recorder is a Display that keeps everything it's shown. Used by tests.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Display(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Messages returns a copy of everything displayed so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Last returns the most recently displayed message, or "" if there isn't one.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

// ReadLines passes each line read from in to handle until in is exhausted or
// ctx is cancelled.
func ReadLines(ctx context.Context, in io.Reader, handle func(line string)) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		handle(scanner.Text())
	}
	return scanner.Err()
}
