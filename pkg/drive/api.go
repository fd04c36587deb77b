package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// imageMIMETypes are the listing filters sent to Drive.
var imageMIMETypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

const pageSize = 1000

// api is the slice of Drive the source needs.
type api interface {
	FindFolder(ctx context.Context, name string) (string, error)
	ListImages(ctx context.Context, folderID string) ([]File, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

type driveAPI struct {
	files *drive.FilesService
}

func newDriveAPI(ctx context.Context, opts ...option.ClientOption) (*driveAPI, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &driveAPI{files: svc.Files}, nil
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func folderQuery(name string) string {
	return fmt.Sprintf("name = %s and mimeType = 'application/vnd.google-apps.folder' and trashed = false", quote(name))
}

func imagesQuery(folderID string) string {
	mimes := make([]string, len(imageMIMETypes))
	for i, m := range imageMIMETypes {
		mimes[i] = "mimeType = " + quote(m)
	}
	return fmt.Sprintf("%s in parents and trashed = false and (%s)", quote(folderID), strings.Join(mimes, " or "))
}

// IsImageName reports whether name has one of the accepted image extensions.
func IsImageName(name string) bool {
	return imageExtensions[strings.ToLower(path.Ext(name))]
}

func (d *driveAPI) FindFolder(ctx context.Context, name string) (string, error) {
	list, err := d.files.List().
		Q(folderQuery(name)).
		Fields("files(id, name)").
		PageSize(10).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to search folder %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: %s", ErrFolderNotFound, name)
	}
	return list.Files[0].Id, nil
}

func (d *driveAPI) ListImages(ctx context.Context, folderID string) ([]File, error) {
	var files []File
	call := d.files.List().
		Q(imagesQuery(folderID)).
		Fields("nextPageToken, files(id, name, mimeType, webViewLink)").
		PageSize(pageSize)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			if !IsImageName(f.Name) {
				continue
			}
			files = append(files, File{
				ID:          f.Id,
				Name:        f.Name,
				MIMEType:    f.MimeType,
				WebViewLink: f.WebViewLink,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	return files, nil
}

func (d *driveAPI) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := d.files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileID, err)
	}
	return data, nil
}

// transient reports whether a Drive error is worth another attempt.
func transient(err error) bool {
	if errors.Is(err, ErrFolderNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return true
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
		return true
	case gerr.Code == http.StatusForbidden:
		for _, e := range gerr.Errors {
			if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}
