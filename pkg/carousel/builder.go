// Package carousel assembles and publishes photo carousels.
package carousel

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carouselbot/pkg/config"
	"carouselbot/pkg/drive"
	"carouselbot/pkg/imagekit"
)

type ImageSource interface {
	RandomFile(ctx context.Context, category string) (*drive.File, error)
}

type Renderer interface {
	RenderOverlay(data []byte, text string, spec imagekit.OverlaySpec) ([]byte, error)
}

type Normalizer interface {
	NormalizeFormat(data []byte) ([]byte, error)
	ResizeToFrame(data []byte, target imagekit.Geometry) ([]byte, error)
}

// Post is a finished carousel: the hook slide, the screenshots and the CTA
// slide, in that order.
type Post struct {
	Slides  [][]byte
	Sources []string
	Hook    string
	CTA     string
	Caption string
}

// Size is the total encoded size of the slides.
func (p *Post) Size() int {
	n := 0
	for _, s := range p.Slides {
		n += len(s)
	}
	return n
}

type BuilderOptions struct {
	Geometry    imagekit.Geometry
	Screenshots int
	HookSpec    imagekit.OverlaySpec
	CTASpec     imagekit.OverlaySpec
	// Workers caps concurrent slide jobs. Zero means one per slide.
	Workers int
	Logger  *zap.Logger
}

type Builder struct {
	source     ImageSource
	renderer   Renderer
	normalizer Normalizer
	opts       BuilderOptions
	logger     *zap.Logger
}

func NewBuilder(source ImageSource, renderer Renderer, normalizer Normalizer, opts BuilderOptions) *Builder {
	if opts.Geometry == (imagekit.Geometry{}) {
		opts.Geometry = imagekit.DefaultGeometry
	}
	if opts.HookSpec.IsZero() {
		opts.HookSpec = imagekit.HookOverlaySpec
	}
	if opts.CTASpec.IsZero() {
		opts.CTASpec = imagekit.CTAOverlaySpec
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Builder{
		source:     source,
		renderer:   renderer,
		normalizer: normalizer,
		opts:       opts,
		logger:     opts.Logger,
	}
}

// Build fetches and renders every slide. Slides are produced concurrently
// but keep their carousel order; the first failure cancels the rest.
func (b *Builder) Build(ctx context.Context, hook, cta string) (*Post, error) {
	n := b.opts.Screenshots + 2
	post := &Post{
		Slides:  make([][]byte, n),
		Sources: make([]string, n),
		Hook:    hook,
		CTA:     cta,
	}

	g, ctx := errgroup.WithContext(ctx)
	if b.opts.Workers > 0 {
		g.SetLimit(b.opts.Workers)
	}

	g.Go(func() error {
		slide, src, err := b.overlaySlide(ctx, config.CategoryHook, hook, b.opts.HookSpec)
		if err != nil {
			return fmt.Errorf("hook slide: %w", err)
		}
		post.Slides[0], post.Sources[0] = slide, src
		return nil
	})

	for i := 1; i <= b.opts.Screenshots; i++ {
		g.Go(func() error {
			slide, src, err := b.screenshotSlide(ctx)
			if err != nil {
				return fmt.Errorf("screenshot %d/%d: %w", i, b.opts.Screenshots, err)
			}
			post.Slides[i], post.Sources[i] = slide, src
			return nil
		})
	}

	g.Go(func() error {
		slide, src, err := b.overlaySlide(ctx, config.CategoryCTA, cta, b.opts.CTASpec)
		if err != nil {
			return fmt.Errorf("CTA slide: %w", err)
		}
		post.Slides[n-1], post.Sources[n-1] = slide, src
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.logger.Info("carousel built", zap.Int("slides", n), zap.Int("bytes", post.Size()))
	return post, nil
}

func (b *Builder) overlaySlide(ctx context.Context, category, text string, spec imagekit.OverlaySpec) ([]byte, string, error) {
	f, err := b.source.RandomFile(ctx, category)
	if err != nil {
		return nil, "", err
	}
	slide, err := b.renderer.RenderOverlay(f.Data, text, spec)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", f.Name, err)
	}
	slide, err = b.normalizer.ResizeToFrame(slide, b.opts.Geometry)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", f.Name, err)
	}
	return slide, f.WebViewLink, nil
}

func (b *Builder) screenshotSlide(ctx context.Context) ([]byte, string, error) {
	f, err := b.source.RandomFile(ctx, config.CategoryScreen)
	if err != nil {
		return nil, "", err
	}
	slide, err := b.normalizer.NormalizeFormat(f.Data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", f.Name, err)
	}
	slide, err = b.normalizer.ResizeToFrame(slide, b.opts.Geometry)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", f.Name, err)
	}
	return slide, f.WebViewLink, nil
}
