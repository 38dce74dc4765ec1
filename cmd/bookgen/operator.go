package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bookgen/internal/resolver"
	"bookgen/internal/storage"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	outlineStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// operator is the person at the terminal. It reviews generated outlines and
// picks among stored ones.
type operator struct {
	in  *bufio.Reader
	out io.Writer

	// pending is the read still in flight after a cancelled prompt; the next
	// prompt takes its line instead of starting a second reader.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func newOperator(in io.Reader, out io.Writer) *operator {
	return &operator{in: bufio.NewReader(in), out: out}
}

// readLine returns the next trimmed input line. A final line without a
// newline is still returned; io.EOF only when nothing is left. It returns
// ctx.Err() as soon as ctx is done, even while the terminal read blocks.
func (o *operator) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(o.out, promptStyle.Render(prompt)+" ")
	if o.pending == nil {
		ch := make(chan lineResult, 1)
		o.pending = ch
		go func() {
			line, err := o.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(o.out)
		return "", ctx.Err()
	case r := <-o.pending:
		o.pending = nil
		if r.err != nil && !(errors.Is(r.err, io.EOF) && r.line != "") {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	}
}

// AskTopic asks for the book topic when none was given on the command line.
func (o *operator) AskTopic(ctx context.Context) (string, error) {
	for {
		topic, err := o.readLine(ctx, "Enter a topic:")
		if err != nil {
			return "", fmt.Errorf("no topic given: %w", err)
		}
		if err := storage.ValidateTopic(topic); err != nil {
			fmt.Fprintln(o.out, warnStyle.Render(err.Error()))
			continue
		}
		return topic, nil
	}
}

// Decide shows a generated outline and asks whether to keep it.
// Closed input counts as abort.
func (o *operator) Decide(ctx context.Context, topic, text string) (resolver.Decision, error) {
	fmt.Fprintln(o.out, outlineStyle.Render("Outline for "+topic+"\n\n"+strings.TrimRight(text, "\n")))
	for {
		answer, err := o.readLine(ctx, "Do you want to continue with this outline? [Y(es)/N(o)/R(edo)]")
		if errors.Is(err, io.EOF) {
			return resolver.Abort, nil
		}
		if err != nil {
			return resolver.Abort, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return resolver.Accept, nil
		case "n", "no":
			return resolver.Abort, nil
		case "r", "redo":
			return resolver.Regenerate, nil
		}
		fmt.Fprintln(o.out, warnStyle.Render("Invalid choice, please retry!"))
	}
}

// Select lists the stored outlines for a topic and returns the chosen one,
// or ok=false when the operator asks for a new outline.
func (o *operator) Select(ctx context.Context, topic string, stored []storage.OutlineID) (storage.OutlineID, bool, error) {
	fmt.Fprintf(o.out, "The following outlines exist for topic %s.\n", topic)
	for i, id := range stored {
		fmt.Fprintf(o.out, "\t[%d] %s\n", i, id.FileName())
	}
	fmt.Fprintln(o.out, "\t[n] Create new outline")

	for {
		answer, err := o.readLine(ctx, "Select a valid index from the options above:")
		if err != nil {
			return storage.OutlineID{}, false, fmt.Errorf("no outline selected: %w", err)
		}
		if strings.EqualFold(answer, "n") {
			return storage.OutlineID{}, false, nil
		}
		if i, err := strconv.Atoi(answer); err == nil && i >= 0 && i < len(stored) {
			return stored[i], true, nil
		}
		fmt.Fprintln(o.out, warnStyle.Render("Invalid choice given!"))
	}
}
