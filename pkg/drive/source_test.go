package drive

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"carouselbot/pkg/cache"
	"carouselbot/pkg/retry"
)

var fastRetry = retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

type fakeAPI struct {
	mu        sync.Mutex
	folders   map[string][]File
	data      map[string][]byte
	listCalls int
	failList  int
	listErr   error
}

func (f *fakeAPI) FindFolder(_ context.Context, name string) (string, error) {
	if _, ok := f.folders[name]; !ok {
		return "", ErrFolderNotFound
	}
	return "id-" + name, nil
}

func (f *fakeAPI) ListImages(_ context.Context, folderID string) ([]File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList > 0 {
		f.failList--
		return nil, f.listErr
	}
	return f.folders[strings.TrimPrefix(folderID, "id-")], nil
}

func (f *fakeAPI) Download(_ context.Context, fileID string) ([]byte, error) {
	return f.data[fileID], nil
}

func newFake() *fakeAPI {
	return &fakeAPI{
		folders: map[string][]File{
			"hooks": {{ID: "h1", Name: "a.jpg"}, {ID: "h2", Name: "b.png"}},
			"shots": {{ID: "s1", Name: "c.jpg"}},
			"empty": nil,
		},
		data: map[string][]byte{"h1": []byte("one"), "h2": []byte("two"), "s1": []byte("three")},
	}
}

var folders = map[string]string{"HOOK": "hooks", "SCREEN": "shots", "CTA": "empty"}

func newTestSource(a api) *Source {
	return newSource(a, folders, cache.NewMemoryCache(time.Minute), Options{
		Retry: fastRetry,
		Rand:  rand.New(rand.NewPCG(1, 2)),
	})
}

func TestRandomFile(t *testing.T) {
	fake := newFake()
	s := newTestSource(fake)

	f, err := s.RandomFile(context.Background(), "HOOK")
	require.NoError(t, err)
	assert.Contains(t, []string{"h1", "h2"}, f.ID)
	assert.Equal(t, fake.data[f.ID], f.Data)

	// Second pick comes from the cached listing.
	_, err = s.RandomFile(context.Background(), "HOOK")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.listCalls)
}

// slowAPI holds every listing long enough for concurrent callers to pile up.
type slowAPI struct {
	*fakeAPI
	delay time.Duration
}

func (s slowAPI) ListImages(ctx context.Context, folderID string) ([]File, error) {
	time.Sleep(s.delay)
	return s.fakeAPI.ListImages(ctx, folderID)
}

func TestRandomFile_ConcurrentMissesListOnce(t *testing.T) {
	fake := newFake()
	s := newTestSource(slowAPI{fakeAPI: fake, delay: 100 * time.Millisecond})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.RandomFile(context.Background(), "SCREEN")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.listCalls)
}

func TestRandomFile_Errors(t *testing.T) {
	s := newTestSource(newFake())

	_, err := s.RandomFile(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = s.RandomFile(context.Background(), "CTA")
	assert.ErrorIs(t, err, ErrEmptyFolder)

	missing := newSource(newFake(), map[string]string{"HOOK": "gone"}, nil, Options{Retry: fastRetry})
	_, err = missing.RandomFile(context.Background(), "HOOK")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestRandomFile_RetriesTransient(t *testing.T) {
	fake := newFake()
	fake.failList = 2
	fake.listErr = &googleapi.Error{Code: http.StatusServiceUnavailable}
	s := newTestSource(fake)

	_, err := s.RandomFile(context.Background(), "SCREEN")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.listCalls)
}

func TestRandomFile_DoesNotRetryClientErrors(t *testing.T) {
	fake := newFake()
	fake.failList = 5
	fake.listErr = &googleapi.Error{Code: http.StatusNotFound}
	s := newTestSource(fake)

	_, err := s.RandomFile(context.Background(), "SCREEN")
	require.Error(t, err)
	assert.Equal(t, 1, fake.listCalls)
}

func TestInvalidateAndRefresh(t *testing.T) {
	fake := newFake()
	s := newTestSource(fake)
	ctx := context.Background()

	_, err := s.Images(ctx, "hooks")
	require.NoError(t, err)
	require.NoError(t, s.Invalidate(ctx, "HOOK"))
	_, err = s.Images(ctx, "hooks")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.listCalls)

	assert.ErrorIs(t, s.Invalidate(ctx, "NOPE"), ErrUnknownCategory)

	fake.listCalls = 0
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 3, fake.listCalls)

	// Everything is served from cache after a refresh.
	for c := range folders {
		_, _ = s.RandomFile(ctx, c)
	}
	assert.Equal(t, 3, fake.listCalls)
}

func TestRefresh_JoinsFailures(t *testing.T) {
	s := newSource(newFake(), map[string]string{"HOOK": "hooks", "CTA": "gone"}, nil, Options{Retry: fastRetry})
	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFolderNotFound)
	assert.Contains(t, err.Error(), "CTA")
}

func TestIsImageName(t *testing.T) {
	for name, want := range map[string]bool{
		"a.jpg": true, "B.JPEG": true, "c.png": true, "d.webp": true, "e.tiff": true,
		"f.heic": false, "notes.txt": false, "noext": false,
	} {
		assert.Equal(t, want, IsImageName(name), name)
	}
}

func TestQueries(t *testing.T) {
	assert.Equal(t,
		`name = 'Bob\'s hooks' and mimeType = 'application/vnd.google-apps.folder' and trashed = false`,
		folderQuery("Bob's hooks"))

	q := imagesQuery("abc")
	assert.True(t, strings.HasPrefix(q, "'abc' in parents and trashed = false and ("))
	assert.Contains(t, q, "mimeType = 'image/jpeg' or mimeType = 'image/png'")
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(errors.New("connection reset")))
	assert.True(t, transient(&googleapi.Error{Code: 500}))
	assert.True(t, transient(&googleapi.Error{Code: 429}))
	assert.True(t, transient(&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}))
	assert.False(t, transient(&googleapi.Error{Code: 403}))
	assert.False(t, transient(ErrFolderNotFound))
	assert.False(t, transient(context.Canceled))
}

// driveServer answers the three Drive calls the source makes.
func driveServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/files" && strings.Contains(r.URL.Query().Get("q"), "google-apps.folder"):
			json.NewEncoder(w).Encode(map[string]any{
				"files": []map[string]string{{"id": "folder1", "name": "hooks"}},
			})
		case r.URL.Path == "/files" && r.URL.Query().Get("pageToken") == "":
			assert.Contains(t, r.URL.Query().Get("q"), "'folder1' in parents")
			assert.Equal(t, "1000", r.URL.Query().Get("pageSize"))
			json.NewEncoder(w).Encode(map[string]any{
				"nextPageToken": "p2",
				"files": []map[string]string{
					{"id": "f1", "name": "one.jpg", "mimeType": "image/jpeg", "webViewLink": "https://drive/f1"},
					{"id": "f2", "name": "readme.txt", "mimeType": "image/png"},
				},
			})
		case r.URL.Path == "/files":
			json.NewEncoder(w).Encode(map[string]any{
				"files": []map[string]string{{"id": "f3", "name": "three.PNG", "mimeType": "image/png"}},
			})
		case strings.HasPrefix(r.URL.Path, "/files/") && r.URL.Query().Get("alt") == "media":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte("bytes-of-" + strings.TrimPrefix(r.URL.Path, "/files/")))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestDriveAPI_OverHTTP(t *testing.T) {
	srv := driveServer(t)
	defer srv.Close()
	ctx := context.Background()

	s, err := NewWithClientOptions(ctx, map[string]string{"HOOK": "hooks"}, nil,
		Options{Retry: fastRetry},
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)

	files, err := s.Images(ctx, "hooks")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "f1", files[0].ID)
	assert.Equal(t, "https://drive/f1", files[0].WebViewLink)
	assert.Equal(t, "f3", files[1].ID)

	f, err := s.RandomFile(ctx, "HOOK")
	require.NoError(t, err)
	assert.Equal(t, "bytes-of-"+f.ID, string(f.Data))
}
