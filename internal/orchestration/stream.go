package orchestration

import (
	"context"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"go.uber.org/zap"
)

// StreamOrchestration accumulates fragments from source and yields one
// partial result each time the buffer holds enough completed sentences, or
// reaches the buffer limit. The buffer is reset after every analysis; a
// trailing incomplete remainder is discarded when source ends. Stopping
// iteration, or cancelling ctx, stops pulling from source.
func (e *Engine) StreamOrchestration(ctx context.Context, source iter.Seq[string], octx *mediation.OrchestrationContext) iter.Seq[mediation.PartialResult] {
	return func(yield func(mediation.PartialResult) bool) {
		var buf strings.Builder
		sentences := 0
		for fragment := range source {
			if ctx.Err() != nil {
				e.logger.Debug("stream cancelled", zap.Error(ctx.Err()))
				return
			}
			// Fragments are joined on whitespace, so counting the new fragment
			// alone matches a recount of the whole buffer.
			appendFragment(&buf, fragment)
			sentences += CountSentences(fragment)
			full := buf.Len() >= e.opts.StreamBufferLimit
			if sentences < e.opts.SentenceTrigger && !full {
				continue
			}
			if full && sentences < e.opts.SentenceTrigger {
				e.logger.Debug("stream buffer limit reached", zap.Int("bytes", buf.Len()))
			}

			text := strings.TrimSpace(buf.String())
			buf.Reset()
			sentences = 0
			profile := e.stages.Expression.AnalyzeText(ctx, text, octx)
			if ctx.Err() != nil {
				return
			}
			partial := mediation.PartialResult{
				EmotionAnalysis:        &profile,
				PartialRecommendations: append([]string(nil), profile.Recommendations...),
			}
			if !yield(partial) {
				return
			}
		}
	}
}

func appendFragment(buf *strings.Builder, fragment string) {
	if fragment == "" {
		return
	}
	if buf.Len() > 0 {
		last, _ := utf8.DecodeLastRuneInString(buf.String())
		first, _ := utf8.DecodeRuneInString(fragment)
		if !unicode.IsSpace(last) && !unicode.IsSpace(first) {
			buf.WriteByte(' ')
		}
	}
	buf.WriteString(fragment)
}

// CountSentences counts terminators (. ! ?) that close a sentence, meaning
// they are followed by whitespace or the end of text. Runs such as "?!" or
// "..." count once.
func CountSentences(text string) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if !isTerminator(text[i]) {
			continue
		}
		if i+1 == len(text) {
			count++
			continue
		}
		if next, _ := utf8.DecodeRuneInString(text[i+1:]); unicode.IsSpace(next) {
			count++
		}
	}
	return count
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
