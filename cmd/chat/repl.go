package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gabriel-vasile/mimetype"

	"companion-ai/internal/model"
	"companion-ai/internal/session"
)

var (
	assistantColor = color.New(color.FgCyan)
	noticeColor    = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	faintColor     = color.New(color.Faint)
)

type repl struct {
	ctrl     *session.Controller
	in       *bufio.Scanner
	out      io.Writer
	readFile func(string) ([]byte, error)

	maxUploadBytes int64
}

func newREPL(ctrl *session.Controller, in io.Reader, out io.Writer) *repl {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &repl{
		ctrl:     ctrl,
		in:       scanner,
		out:      out,
		readFile: os.ReadFile,
	}
}

func (r *repl) run(ctx context.Context) error {
	for _, msg := range r.ctrl.Messages() {
		r.printMessage(msg)
	}
	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if quit := r.handle(ctx, r.in.Text()); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle runs one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, "commands: /attach <path>, /detach <name|number>, /list, /quit")
	case "/list":
		r.listAttachments()
	case "/attach":
		r.attach(ctx, arg)
	case "/detach":
		r.detach(arg)
	default:
		turn, err := r.ctrl.SubmitUserMessage(ctx, line)
		if err != nil {
			r.printError(err)
			return false
		}
		r.await(ctx, turn)
	}
	return false
}

func (r *repl) attach(ctx context.Context, path string) {
	if path == "" {
		r.printError(fmt.Errorf("usage: /attach <path>"))
		return
	}
	data, err := r.readFile(path)
	if err != nil {
		r.printError(err)
		return
	}
	if r.maxUploadBytes > 0 && int64(len(data)) > r.maxUploadBytes {
		r.printError(fmt.Errorf("%s is larger than %d bytes", filepath.Base(path), r.maxUploadBytes))
		return
	}

	turn, err := r.ctrl.SubmitAttachment(ctx, model.RawFile{
		Name:      filepath.Base(path),
		MediaType: mimetype.Detect(data).String(),
		Data:      data,
	})
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintln(r.out, turn.UserMessage.Content)
	r.await(ctx, turn)
}

// detach accepts a 1-based number as shown by /list, or a file name.
func (r *repl) detach(arg string) {
	if arg == "" {
		r.printError(fmt.Errorf("usage: /detach <name|number>"))
		return
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if !r.ctrl.DetachAttachmentAt(n - 1) {
			r.printError(fmt.Errorf("no attachment number %d", n))
			return
		}
	} else {
		r.ctrl.DetachAttachment(arg)
	}
	r.listAttachments()
}

func (r *repl) listAttachments() {
	docs := r.ctrl.Attachments()
	if len(docs) == 0 {
		noticeColor.Fprintln(r.out, "no attachments")
		return
	}
	for i, doc := range docs {
		fmt.Fprintf(r.out, "%d. %s (%.1f KB)\n", i+1, doc.Name, float64(doc.SizeBytes)/1024)
	}
}

func (r *repl) await(ctx context.Context, turn *session.Turn) {
	faintColor.Fprintln(r.out, "thinking...")
	reply, err := turn.Wait(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	r.printMessage(reply)
}

func (r *repl) printMessage(msg model.Message) {
	if msg.Sender == model.SenderAssistant {
		assistantColor.Fprintf(r.out, "assistant: %s\n", msg.Content)
		return
	}
	fmt.Fprintf(r.out, "you: %s\n", msg.Content)
}

func (r *repl) printError(err error) {
	errorColor.Fprintf(r.out, "error: %v\n", err)
}
