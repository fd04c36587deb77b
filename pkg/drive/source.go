// Package drive picks random images out of Google Drive folders.
package drive

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"carouselbot/pkg/cache"
	"carouselbot/pkg/retry"
)

var (
	ErrUnknownCategory = errors.New("unknown folder category")
	ErrEmptyFolder     = errors.New("no images in folder")
	ErrFolderNotFound  = errors.New("folder not found")
)

// File is one image in a folder. Data is only set on downloads.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MIMEType    string `json:"mime_type,omitempty"`
	WebViewLink string `json:"web_view_link,omitempty"`
	Data        []byte `json:"-"`
}

type Options struct {
	Retry  retry.Policy
	Logger *zap.Logger
	Rand   *rand.Rand
}

// Source maps categories (HOOK, SCREEN, CTA) to folder names and serves
// random images from them. Folder listings are kept in the cache.
type Source struct {
	api     api
	folders map[string]string
	cache   cache.ListingCache
	retry   retry.Policy
	logger  *zap.Logger

	// listings collapses concurrent cache misses for the same folder.
	listings singleflight.Group

	mu  sync.Mutex
	rng *rand.Rand
}

// New connects to Drive with a service-account key file and read-only scope.
func New(ctx context.Context, credentialsFile string, folders map[string]string, c cache.ListingCache, opts Options) (*Source, error) {
	d, err := newDriveAPI(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, err
	}
	return newSource(d, folders, c, opts), nil
}

// NewWithClientOptions is New for callers that bring their own transport,
// endpoint or credentials.
func NewWithClientOptions(ctx context.Context, folders map[string]string, c cache.ListingCache, opts Options, clientOpts ...option.ClientOption) (*Source, error) {
	d, err := newDriveAPI(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	return newSource(d, folders, c, opts), nil
}

func newSource(a api, folders map[string]string, c cache.ListingCache, opts Options) *Source {
	if c == nil {
		c = cache.NewMemoryCache(cache.DefaultTTL)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Default
	}
	return &Source{
		api:     a,
		folders: folders,
		cache:   c,
		retry:   opts.Retry,
		logger:  opts.Logger,
		rng:     opts.Rand,
	}
}

func (s *Source) folder(category string) (string, error) {
	name, ok := s.folders[category]
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return name, nil
}

func (s *Source) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// do retries transient Drive failures.
func (s *Source) do(ctx context.Context, name string, op func() error) error {
	return s.retry.Do(ctx, s.logger, name, func() error {
		err := op()
		if err != nil && !transient(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

// Images lists the images in the folder named name, from the cache when
// possible.
func (s *Source) Images(ctx context.Context, name string) ([]File, error) {
	var files []File
	ok, err := s.cache.Get(ctx, name, &files)
	if err != nil {
		s.logger.Warn("listing cache read failed", zap.String("folder", name), zap.Error(err))
	} else if ok {
		return files, nil
	}

	v, err, _ := s.listings.Do(name, func() (interface{}, error) {
		return s.list(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	files, ok = v.([]File)
	if !ok {
		return nil, fmt.Errorf("unexpected listing type %T", v)
	}
	return files, nil
}

func (s *Source) list(ctx context.Context, name string) ([]File, error) {
	var files []File
	err := s.do(ctx, "drive.list", func() error {
		id, err := s.api.FindFolder(ctx, name)
		if err != nil {
			return err
		}
		files, err = s.api.ListImages(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, name, files); err != nil {
		s.logger.Warn("listing cache write failed", zap.String("folder", name), zap.Error(err))
	}
	s.logger.Debug("listed folder", zap.String("folder", name), zap.Int("images", len(files)))
	return files, nil
}

// RandomFile downloads a random image from the folder mapped to category.
func (s *Source) RandomFile(ctx context.Context, category string) (*File, error) {
	name, err := s.folder(category)
	if err != nil {
		return nil, err
	}

	files, err := s.Images(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFolder, name)
	}

	picked := files[s.intn(len(files))]
	err = s.do(ctx, "drive.download", func() error {
		data, err := s.api.Download(ctx, picked.ID)
		picked.Data = data
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fetched image",
		zap.String("category", category),
		zap.String("file", picked.Name),
		zap.Int("bytes", len(picked.Data)))
	return &picked, nil
}

// Invalidate drops the cached listing for one category.
func (s *Source) Invalidate(ctx context.Context, category string) error {
	name, err := s.folder(category)
	if err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, name)
}

// Refresh clears the cache and lists every configured folder again.
// Failures are logged and joined; folders that listed fine stay cached.
func (s *Source) Refresh(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear listing cache: %w", err)
	}

	categories := make([]string, 0, len(s.folders))
	for c := range s.folders {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var errs []error
	for _, c := range categories {
		files, err := s.Images(ctx, s.folders[c])
		if err != nil {
			s.logger.Warn("failed to refresh folder", zap.String("category", c), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
			continue
		}
		s.logger.Info("refreshed folder", zap.String("category", c), zap.Int("images", len(files)))
	}
	return errors.Join(errs...)
}
