package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"verishield-pipeline/logging"
	"verishield-pipeline/models"
)

const defaultMaxImages = 10

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*http.Response, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

type ObjectUploader interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// MediaCapturer archives the images embedded in a threat's source page.
type MediaCapturer struct {
	pages     PageFetcher
	objects   ObjectUploader
	maxImages int
}

func NewMediaCapturer(pages PageFetcher, objects ObjectUploader, maxImages int) *MediaCapturer {
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}
	return &MediaCapturer{pages: pages, objects: objects, maxImages: maxImages}
}

// Capture downloads the page images and uploads them under <threatID>/.
// Individual image failures are logged and skipped.
func (c *MediaCapturer) Capture(ctx context.Context, threat models.Threat) ([]models.ThreatMedia, error) {
	base, err := url.Parse(threat.SourceURL)
	if err != nil || base.Scheme == "" {
		return nil, fmt.Errorf("invalid source url %q", threat.SourceURL)
	}

	resp, err := c.pages.Fetch(ctx, threat.SourceURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 status code for URL %s: %d", threat.SourceURL, resp.StatusCode)
	}

	images := ExtractImageURLs(resp.Body, base)
	if len(images) > c.maxImages {
		images = images[:c.maxImages]
	}

	logger := logging.FromContext(ctx)
	var media []models.ThreatMedia
	for _, imgURL := range images {
		data, contentType, err := c.pages.Download(ctx, imgURL)
		if err != nil {
			logger.Warn("failed to download image", "url", imgURL, "error", err)
			continue
		}
		key := fmt.Sprintf("%s/%s.%s", threat.ID, uuid.NewString(), mediaExtension(imgURL, contentType))
		location, err := c.objects.UploadBytes(ctx, key, data, contentType)
		if err != nil {
			logger.Warn("failed to upload image", "url", imgURL, "error", err)
			continue
		}
		media = append(media, models.ThreatMedia{
			ID:       uuid.NewString(),
			ThreatID: threat.ID,
			MediaURL: location,
		})
	}
	return media, nil
}

// ExtractImageURLs returns the absolute, de-duplicated image URLs referenced
// by <img src> or <img data-src>. SVG images and data URIs are skipped.
func ExtractImageURLs(r io.Reader, base *url.URL) []string {
	tokenizer := html.NewTokenizer(r)
	seen := make(map[string]bool)
	var images []string

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return images
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		token := tokenizer.Token()
		if token.Data != "img" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key != "src" && attr.Key != "data-src" {
				continue
			}
			resolved, ok := resolveImageURL(base, attr.Val)
			if ok && !seen[resolved] {
				seen[resolved] = true
				images = append(images, resolved)
			}
		}
	}
}

func resolveImageURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if strings.EqualFold(path.Ext(abs.Path), ".svg") {
		return "", false
	}
	return abs.String(), true
}

func mediaExtension(rawURL, contentType string) string {
	ext := "bin"

	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				ext = strings.TrimPrefix(exts[0], ".")
			}
		}
	}

	if ext == "bin" {
		urlExt := path.Ext(strings.Split(rawURL, "?")[0])
		if urlExt != "" && len(urlExt) < 6 {
			ext = strings.TrimPrefix(urlExt, ".")
		}
	}
	return strings.ToLower(ext)
}
