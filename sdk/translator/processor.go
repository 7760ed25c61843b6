package translator

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxSegmentLength is the segment size, in characters, used when
// neither the configuration nor the context provides one.
const DefaultMaxSegmentLength = 2000

// DefaultPreservePatterns keeps template variables and printf verbs intact.
var DefaultPreservePatterns = []string{
	`\{[A-Za-z_][A-Za-z0-9_]*\}`,
	`%[sdvf]`,
}

// ProcessorConfig configures text preparation and segmentation.
type ProcessorConfig struct {
	MaxSegmentLength int                    `yaml:"max-segment-length" json:"max_segment_length"`
	PreservePatterns []string               `yaml:"preserve-patterns" json:"preserve_patterns"`
	HistorySize      int                    `yaml:"history-size" json:"history_size"`
	DomainRules      map[string]DomainRules `yaml:"domain-rules" json:"domain_rules"`
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		MaxSegmentLength: DefaultMaxSegmentLength,
		PreservePatterns: append([]string(nil), DefaultPreservePatterns...),
		HistorySize:      DefaultHistorySize,
	}
}

// Segment is one bounded piece of a longer text. Its context carries the
// segment index, the total count and the partial-sentence flag.
type Segment struct {
	Text    string
	Context Context
}

// Index returns the segment's position in the original text.
func (s Segment) Index() int {
	i, _ := s.Context.Int(KeySegmentIndex)
	return i
}

// Partial reports whether the segment was hard-cut inside a sentence.
func (s Segment) Partial() bool {
	return s.Context.Bool(KeyPartialSentence)
}

var (
	placeholderRe   = regexp.MustCompile(`__KEEP\d*_\d+__`)
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	extraBlankLines = regexp.MustCompile(`\n{3,}`)
	sentenceEnd     = regexp.MustCompile(`[.!?]+\s+|[。！？]+\s*`)
)

// placeholderPrefix returns a token prefix that does not occur in text, so
// literal token-shaped text is never mistaken for a placeholder.
func placeholderPrefix(text string) string {
	prefix := "__KEEP_"
	for i := 1; strings.Contains(text, prefix); i++ {
		prefix = "__KEEP" + strconv.Itoa(i) + "_"
	}
	return prefix
}

func placeholder(prefix string, i int) string {
	return prefix + strconv.Itoa(i) + "__"
}

// Processor prepares text for providers and restores it afterwards.
type Processor struct {
	cfg      ProcessorConfig
	patterns []*regexp.Regexp
	rules    *RuleRegistry
	history  *History
	dynamic  sync.Map
}

// NewProcessor compiles the configured preserve patterns and domain rules.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.MaxSegmentLength <= 0 {
		cfg.MaxSegmentLength = DefaultMaxSegmentLength
	}
	p := &Processor{
		cfg:     cfg,
		rules:   NewRuleRegistry(),
		history: NewHistory(cfg.HistorySize),
	}
	for _, expr := range cfg.PreservePatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("preserve pattern %q: %w", expr, err)
		}
		p.patterns = append(p.patterns, re)
	}
	if err := p.rules.Load(cfg.DomainRules); err != nil {
		return nil, err
	}
	return p, nil
}

// MustProcessor is NewProcessor that panics on a bad configuration.
func MustProcessor(cfg ProcessorConfig) *Processor {
	p, err := NewProcessor(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// Rules exposes the domain rule registry.
func (p *Processor) Rules() *RuleRegistry { return p.rules }

// History exposes the postprocessed translation history.
func (p *Processor) History() *History { return p.history }

// MaxSegmentLength returns the configured default segment length.
func (p *Processor) MaxSegmentLength() int { return p.cfg.MaxSegmentLength }

// Preprocess normalizes whitespace, swaps every preserve-pattern match for a
// unique placeholder recorded under KeyPreservedItems, and applies the
// domain's pre rules. The input context is not modified.
func (p *Processor) Preprocess(text string, tctx Context) (string, Context) {
	out := tctx.Clone()
	text = normalizeWhitespace(text)
	text, items := p.extract(text, p.patternsFor(tctx))
	out[KeyPreservedItems] = items
	text = p.rules.ApplyPre(text, out)
	return text, out
}

// Postprocess restores preserved tokens, normalizes line endings, applies the
// domain's post rules and records the result in the history.
func (p *Processor) Postprocess(translation string, tctx Context) string {
	result := p.finish(translation, tctx)
	p.history.Add(HistoryEntry{
		Timestamp: time.Now(),
		Text:      result,
		Domain:    tctx.String(KeyDomain),
	})
	return result
}

func (p *Processor) finish(translation string, tctx Context) string {
	text := restorePlaceholders(translation, tctx[KeyPreservedItems])
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if !tctx.Bool(KeyPartialSentence) {
		text = strings.TrimSpace(text)
	}
	return p.rules.ApplyPost(text, tctx)
}

// Split preprocesses text and cuts it into segments no longer than the
// limit in tctx[KeyMaxSegmentLength], or the configured default. Paragraphs
// are kept apart, long paragraphs are packed sentence by sentence, and a
// sentence that still does not fit is hard-cut and flagged partial.
func (p *Processor) Split(text string, tctx Context) []Segment {
	limit := p.cfg.MaxSegmentLength
	if n, ok := tctx.Int(KeyMaxSegmentLength); ok && n > 0 {
		limit = n
	}

	prepared, pctx := p.Preprocess(text, tctx)
	if utf8.RuneCountInString(prepared) <= limit {
		return []Segment{newSegment(prepared, pctx, 0, 1, false)}
	}

	type piece struct {
		text    string
		partial bool
	}
	var pieces []piece
	for _, para := range strings.Split(prepared, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= limit {
			pieces = append(pieces, piece{text: para})
			continue
		}
		for _, chunk := range packSentences(para, limit) {
			if utf8.RuneCountInString(chunk) <= limit {
				pieces = append(pieces, piece{text: chunk})
				continue
			}
			for _, hard := range hardChunk(chunk, limit) {
				pieces = append(pieces, piece{text: hard, partial: true})
			}
		}
	}
	if len(pieces) == 0 {
		return []Segment{newSegment(prepared, pctx, 0, 1, false)}
	}

	segments := make([]Segment, len(pieces))
	for i, pc := range pieces {
		segments[i] = newSegment(pc.text, pctx, i, len(pieces), pc.partial)
	}
	log.Debugf("translator: split %d chars into %d segments (limit %d)", utf8.RuneCountInString(prepared), len(segments), limit)
	return segments
}

func newSegment(text string, base Context, index, total int, partial bool) Segment {
	c := base.Clone()
	c[KeySegmentIndex] = index
	c[KeyTotalSegments] = total
	c[KeyPartialSentence] = partial
	return Segment{Text: text, Context: c}
}

// Merge orders translated segments by their index, postprocesses each, and
// joins them with a blank line, or with nothing when any segment was cut
// mid-sentence. The merged text is recorded in the history once.
func (p *Processor) Merge(translations []string, contexts []Context) string {
	type part struct {
		index int
		text  string
		ctx   Context
	}
	parts := make([]part, len(translations))
	partial := false
	for i, t := range translations {
		var c Context
		if i < len(contexts) {
			c = contexts[i]
		}
		idx, ok := c.Int(KeySegmentIndex)
		if !ok {
			idx = i
		}
		if c.Bool(KeyPartialSentence) {
			partial = true
		}
		parts[i] = part{index: idx, text: t, ctx: c}
	}
	sort.SliceStable(parts, func(a, b int) bool { return parts[a].index < parts[b].index })

	sep := "\n\n"
	if partial {
		sep = ""
	}
	texts := make([]string, len(parts))
	for i, pt := range parts {
		texts[i] = p.finish(pt.text, pt.ctx)
	}
	merged := strings.Join(texts, sep)

	var domain string
	if len(parts) > 0 {
		domain = parts[0].ctx.String(KeyDomain)
	}
	p.history.Add(HistoryEntry{
		Timestamp: time.Now(),
		Text:      merged,
		Domain:    domain,
		Segments:  len(parts),
	})
	return merged
}

func (p *Processor) patternsFor(tctx Context) []*regexp.Regexp {
	extra := callerPatterns(tctx)
	if len(extra) == 0 {
		return p.patterns
	}
	out := append([]*regexp.Regexp(nil), p.patterns...)
	for _, expr := range extra {
		if cached, ok := p.dynamic.Load(expr); ok {
			out = append(out, cached.(*regexp.Regexp))
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Warnf("translator: ignoring invalid preserve pattern %q: %v", expr, err)
			continue
		}
		p.dynamic.Store(expr, re)
		out = append(out, re)
	}
	return out
}

func callerPatterns(tctx Context) []string {
	switch v := tctx[KeyPreservePatterns].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// extract replaces all pattern matches in a single pass. Overlaps resolve to
// the earliest, then longest, match so placeholders never nest.
func (p *Processor) extract(text string, patterns []*regexp.Regexp) (string, map[string]string) {
	items := make(map[string]string)
	if len(patterns) == 0 || text == "" {
		return text, items
	}

	var spans [][2]int
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[1] > loc[0] {
				spans = append(spans, [2]int{loc[0], loc[1]})
			}
		}
	}
	if len(spans) == 0 {
		return text, items
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i][0] != spans[j][0] {
			return spans[i][0] < spans[j][0]
		}
		return spans[i][1] > spans[j][1]
	})

	prefix := placeholderPrefix(text)
	var b strings.Builder
	b.Grow(len(text))
	cursor, n := 0, 0
	for _, sp := range spans {
		if sp[0] < cursor {
			continue
		}
		token := placeholder(prefix, n)
		n++
		items[token] = text[sp[0]:sp[1]]
		b.WriteString(text[cursor:sp[0]])
		b.WriteString(token)
		cursor = sp[1]
	}
	b.WriteString(text[cursor:])
	return b.String(), items
}

func restorePlaceholders(text string, raw any) string {
	switch items := raw.(type) {
	case map[string]string:
		if len(items) == 0 {
			return text
		}
		return placeholderRe.ReplaceAllStringFunc(text, func(tok string) string {
			if orig, ok := items[tok]; ok {
				return orig
			}
			return tok
		})
	case map[string]any:
		if len(items) == 0 {
			return text
		}
		return placeholderRe.ReplaceAllStringFunc(text, func(tok string) string {
			if orig, ok := items[tok].(string); ok {
				return orig
			}
			return tok
		})
	}
	return text
}

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = extraBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// packSentences groups consecutive sentences of para into chunks of at most
// limit characters, keeping the original separators inside a chunk. A single
// sentence longer than limit is returned on its own.
func packSentences(para string, limit int) []string {
	type span struct{ start, end int }
	var sentences []span
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(para, -1) {
		end := loc[0] + len(strings.TrimRightFunc(para[loc[0]:loc[1]], unicode.IsSpace))
		sentences = append(sentences, span{start, end})
		start = loc[1]
	}
	if start < len(para) {
		sentences = append(sentences, span{start, len(para)})
	}

	var chunks []string
	for i := 0; i < len(sentences); {
		from := sentences[i].start
		to := sentences[i].end
		j := i + 1
		for j < len(sentences) && utf8.RuneCountInString(para[from:sentences[j].end]) <= limit {
			to = sentences[j].end
			j++
		}
		if chunk := strings.TrimSpace(para[from:to]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		i = j
	}
	return chunks
}

// hardChunk cuts s into pieces of at most limit runes without splitting a
// placeholder token. A placeholder longer than limit becomes its own piece.
func hardChunk(s string, limit int) []string {
	runes := []rune(s)
	var guards [][2]int
	for _, loc := range placeholderRe.FindAllStringIndex(s, -1) {
		guards = append(guards, [2]int{
			utf8.RuneCountInString(s[:loc[0]]),
			utf8.RuneCountInString(s[:loc[1]]),
		})
	}

	var out []string
	for start := 0; start < len(runes); {
		end := min(start+limit, len(runes))
		for _, g := range guards {
			if g[0] < end && end < g[1] {
				if g[0] > start {
					end = g[0]
				} else {
					end = g[1]
				}
				break
			}
		}
		out = append(out, string(runes[start:end]))
		start = end
	}
	return out
}
