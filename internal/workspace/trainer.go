package workspace

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"yashubustudio/labeltune/categorizer"
)

const maxLineBytes = 1024 * 1024

// ErrNoTrainCommand indicates no training command is configured.
var ErrNoTrainCommand = errors.New("no training command configured")

// Progress is one line of trainer output. Percent is -1 unless the line is
// a progress-bar update.
type Progress struct {
	Line    string
	Percent int
}

// Trainer runs the external fine-tuning command.
type Trainer struct {
	cfg    categorizer.TrainerConfig
	logger *zerolog.Logger
}

// NewTrainer returns a trainer for cfg; logger may be nil.
func NewTrainer(cfg categorizer.TrainerConfig, logger *zerolog.Logger) *Trainer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Run starts the command and streams its combined output to onProgress
// until it exits. Cancelling ctx kills the process.
func (t *Trainer) Run(ctx context.Context, onProgress func(Progress)) error {
	if len(t.cfg.Command) == 0 || strings.TrimSpace(t.cfg.Command[0]) == "" {
		return ErrNoTrainCommand
	}
	cmd := exec.CommandContext(ctx, t.cfg.Command[0], t.cfg.Command[1:]...)
	cmd.Dir = t.cfg.Dir
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", t.cfg.Command[0], err)
	}
	t.logger.Info().Strs("command", t.cfg.Command).Msg("Training started")

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.CloseWithError(io.EOF)
		waitErr <- err
	}()

	if err := t.stream(pr, onProgress); err != nil {
		t.logger.Warn().Err(err).Msg("Trainer output no longer parsed")
	}
	_, _ = io.Copy(io.Discard, pr)

	if err := <-waitErr; err != nil {
		return fmt.Errorf("training command: %w", err)
	}
	t.logger.Info().Msg("Training finished")
	return nil
}

// stream delivers each non-blank output line to onProgress until r ends or a
// line exceeds the scanner limit.
func (t *Trainer) stream(r io.Reader, onProgress func(Progress)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(scanLinesOrCR)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p := Progress{Line: line, Percent: ParseProgress(line)}
		t.logger.Debug().Str("line", line).Int("percent", p.Percent).Msg("Trainer output")
		if onProgress != nil {
			onProgress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read trainer output: %w", err)
	}
	return nil
}

// ParseProgress extracts the percentage from a progress-bar line such as
// " 45%|████      | 9/20". Dataset mapping bars are ignored.
func ParseProgress(line string) int {
	if !strings.Contains(line, "|") || strings.Contains(line, "Map") {
		return -1
	}
	head := strings.TrimSpace(strings.SplitN(line, "|", 2)[0])
	if i := strings.LastIndex(head, ":"); i >= 0 {
		head = strings.TrimSpace(head[i+1:])
	}
	if !strings.HasSuffix(head, "%") {
		return -1
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(head, "%"))
	if err != nil || pct < 0 || pct > 100 {
		return -1
	}
	return pct
}

// scanLinesOrCR splits on \n or \r so carriage-return progress bars yield one token per redraw.
func scanLinesOrCR(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
