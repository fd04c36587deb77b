// Package captions picks hook lines, CTA texts and hashtags for a post.
package captions

import (
	"context"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const systemPrompt = "You write short, punchy TikTok carousel hook headlines. " +
	"Reply with the headline only, no quotes, no hashtags."

// DefaultPrompt is used when no prompt file is configured or readable.
// {{recent}} is replaced with hooks to avoid.
const DefaultPrompt = `Write one hook headline (under 12 words) for a skincare carousel that shows product screenshots.
It should create curiosity or urgency. Do not reuse any of these:
{{recent}}`

type Options struct {
	Hooks    []string
	Hashtags []string
	CTATexts []string
	// HashtagCount is how many hashtags go into each caption.
	HashtagCount int
	// Prompt is the model prompt template. See DefaultPrompt.
	Prompt string
	Model  Model
	Rand   *rand.Rand
	Logger *zap.Logger
}

type Generator struct {
	hooks    []string
	hashtags []string
	ctas     []string
	count    int
	prompt   string
	model    Model
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func New(opts Options) *Generator {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	return &Generator{
		hooks:    opts.Hooks,
		hashtags: opts.Hashtags,
		ctas:     opts.CTATexts,
		count:    opts.HashtagCount,
		prompt:   opts.Prompt,
		model:    opts.Model,
		logger:   opts.Logger,
		rng:      opts.Rand,
	}
}

// LoadPrompt reads a prompt template, falling back to DefaultPrompt.
func LoadPrompt(path string) string {
	if path == "" {
		return DefaultPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return DefaultPrompt
	}
	return string(data)
}

func (g *Generator) pick(items []string) string {
	if len(items) == 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return items[g.rng.IntN(len(items))]
}

// Hook returns a headline for the hook slide. The model is asked first when
// configured; otherwise, or when it fails, a pregenerated hook is picked,
// skipping the ones in recent while any others remain.
func (g *Generator) Hook(ctx context.Context, recent []string) string {
	if g.model != nil {
		prompt := strings.ReplaceAll(g.prompt, "{{recent}}", formatRecent(recent))
		text, err := g.model.Complete(ctx, systemPrompt, prompt)
		if err == nil {
			if hook := cleanHook(text); hook != "" {
				return hook
			}
		}
		g.logger.Warn("hook model failed, using pregenerated hooks", zap.Error(err))
	}

	fresh := make([]string, 0, len(g.hooks))
	for _, h := range g.hooks {
		if !slices.Contains(recent, h) {
			fresh = append(fresh, h)
		}
	}
	if len(fresh) == 0 {
		fresh = g.hooks
	}
	return g.pick(fresh)
}

func formatRecent(recent []string) string {
	if len(recent) == 0 {
		return "(none)"
	}
	return "- " + strings.Join(recent, "\n- ")
}

// cleanHook keeps the first non-empty line without wrapping quotes.
func cleanHook(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"'“”`)
		if line != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// Hashtags samples min(k, pool) distinct hashtags.
func (g *Generator) Hashtags(k int) []string {
	if k > len(g.hashtags) {
		k = len(g.hashtags)
	}
	if k <= 0 {
		return nil
	}
	g.mu.Lock()
	perm := g.rng.Perm(len(g.hashtags))
	g.mu.Unlock()

	tags := make([]string, k)
	for i := range tags {
		tags[i] = g.hashtags[perm[i]]
	}
	return tags
}

// CTA picks a call-to-action text.
func (g *Generator) CTA() string {
	return g.pick(g.ctas)
}

// Caption joins text and hashtags with a blank line between them.
func Caption(text string, tags []string) string {
	return text + "\n\n" + strings.Join(tags, " ")
}

// Complete returns a hook for the first slide and a caption built from the
// CTA text.
func (g *Generator) Complete(ctx context.Context, cta string, recent []string) (hook, caption string) {
	hook = g.Hook(ctx, recent)
	caption = Caption(cta, g.Hashtags(g.count))
	return hook, caption
}
