package generator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"bookgen/internal/llm"
	"bookgen/internal/outline"

	"go.uber.org/zap"
)

// Options select the shape of the generated book.
type Options struct {
	IncludeGlossary  bool
	ExpandedSections bool // one prompt per subtopic instead of per topic
}

// ProgressFunc is called before each generation request.
type ProgressFunc func(step, total int, phase llm.Phase)

type PipelineConfig struct {
	Model        string
	TokenCeiling int
	Sampling     llm.Sampling
	Prompts      *PromptBuilder
	ReportDir    string // when set, <name>.report.json is written there
	Logger       *zap.Logger
	Progress     ProgressFunc
}

// Pipeline walks an outline and writes one generated paragraph per prompt.
type Pipeline struct {
	completer llm.Completer
	opener    DocumentOpener
	cfg       PipelineConfig
	logger    *zap.Logger
}

// Result describes a persisted book.
type Result struct {
	Location string
	Prompts  int
	Report   *PipelineReport
}

func NewPipeline(c llm.Completer, opener DocumentOpener, cfg PipelineConfig) *Pipeline {
	if cfg.Prompts == nil {
		cfg.Prompts = DefaultPromptBuilder()
	}
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = llm.DefaultTokenCeiling
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{completer: c, opener: opener, cfg: cfg, logger: logger}
}

// Generate writes the book for o under name. Requests are issued one at a
// time in document order: introduction, then each chapter introduction
// followed by its topics, then conclusion and the optional glossary. The
// document is persisted only if every step succeeds.
func (p *Pipeline) Generate(ctx context.Context, o *outline.Outline, name string, opts Options) (res *Result, retErr error) {
	if o == nil || len(o.Chapters) == 0 {
		return nil, errors.New("outline has no chapters")
	}
	report := NewPipelineReport(name)
	if p.cfg.ReportDir != "" {
		reportPath := filepath.Join(p.cfg.ReportDir, name+".report.json")
		defer func() {
			if retErr != nil {
				report.AddSignal("generation_failed", "pipeline", "critical", "Book generation failed; no document was written.", 1)
			}
			if err := report.Save(reportPath); err != nil {
				p.logger.Warn("Failed to write pipeline report", zap.String("path", reportPath), zap.Error(err))
			}
		}()
	}

	doc, err := p.opener.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", name, err)
	}
	closed := false
	defer func() {
		if !closed {
			doc.Discard()
			p.logger.Info("Discarded partial document", zap.String("document", name))
		}
	}()

	w := &bookWriter{
		p:      p,
		doc:    doc,
		short:  o.ShortOutline(),
		report: report,
		total:  o.PromptCount(opts.ExpandedSections, opts.IncludeGlossary),
	}
	pb := p.cfg.Prompts

	title := o.DisplayTitle()
	if title == "" {
		title = "Untitled"
	}
	if err := w.heading(1, title); err != nil {
		return nil, err
	}

	if err := w.section(ctx, "introduction", "", 1, "Introduction", pb.Introduction(w.short)); err != nil {
		return nil, err
	}

	for _, ch := range o.Chapters {
		if err := w.section(ctx, "chapter", ch.Label, 1, ch.Heading(), pb.ChapterIntroduction(w.short, ch)); err != nil {
			return nil, err
		}
		for _, tp := range ch.Topics {
			heading := tp.Name
			if heading == "" {
				heading = tp.Label
			}
			if err := w.heading(2, heading); err != nil {
				return nil, err
			}
			if !opts.ExpandedSections {
				if err := w.paragraph(ctx, "topic", ch.Label+"/"+tp.Label, pb.Topic(w.short, ch, tp)); err != nil {
					return nil, err
				}
				continue
			}
			for i, sub := range tp.Subtopics {
				label := fmt.Sprintf("%s/%s/%d", ch.Label, tp.Label, i+1)
				if err := w.paragraph(ctx, "subtopic", label, pb.Subtopic(w.short, ch, sub)); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := w.section(ctx, "conclusion", "", 1, "Conclusion", pb.Conclusion(w.short)); err != nil {
		return nil, err
	}
	if opts.IncludeGlossary {
		if err := w.section(ctx, "glossary", "", 1, "Glossary", pb.Glossary(w.short)); err != nil {
			return nil, err
		}
	}

	stage := report.BeginStage("persist", name)
	location, err := doc.Close(ctx)
	closed = true
	report.EndStage(stage, nil, err)
	if err != nil {
		return nil, fmt.Errorf("persist document %s: %w", name, err)
	}
	p.logger.Info("Book written", zap.String("location", location), zap.Int("prompts", w.step))
	return &Result{Location: location, Prompts: w.step, Report: report}, nil
}

// bookWriter carries the per-run traversal state.
type bookWriter struct {
	p      *Pipeline
	doc    Document
	short  string
	report *PipelineReport
	step   int
	total  int
}

func (w *bookWriter) heading(level int, text string) error {
	return w.doc.AddHeading(level, text)
}

func (w *bookWriter) section(ctx context.Context, phase, label string, level int, heading, prompt string) error {
	if err := w.heading(level, heading); err != nil {
		return err
	}
	return w.paragraph(ctx, phase, label, prompt)
}

// paragraph issues one request and appends its response. It returns only
// after the response has been consumed.
func (w *bookWriter) paragraph(ctx context.Context, phase, label, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.step++
	ctx = llm.WithPhase(ctx, phase, label)
	ph := llm.PhaseFrom(ctx)
	if w.p.cfg.Progress != nil {
		w.p.cfg.Progress(w.step, w.total, ph)
	}

	stage := w.report.BeginStage(phase, label)
	counters := map[string]float64{"prompt_chars": float64(utf8.RuneCountInString(prompt))}

	req, err := llm.NewRequest(ctx, w.p.cfg.Model, prompt, w.p.cfg.TokenCeiling, w.p.cfg.Sampling)
	if err != nil {
		w.report.EndStage(stage, counters, err)
		return err
	}
	text, err := w.p.completer.Complete(ctx, req)
	if err != nil {
		w.report.EndStage(stage, counters, err)
		return fmt.Errorf("%s: %w", ph, err)
	}
	counters["response_chars"] = float64(utf8.RuneCountInString(text))
	w.report.EndStage(stage, counters, nil)
	if text == "" {
		w.report.AddSignal("empty_response", ph.String(), "warning", "Generation returned no text for this section.", 0)
	}
	return w.doc.AddParagraph(text)
}
