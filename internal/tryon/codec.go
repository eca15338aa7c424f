package tryon

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultImageMIME = "image/jpeg"
	inlinePrefix     = "data:"
	inlineMarker     = ";base64,"
	maxFetchBytes    = 20 << 20
)

// Accept describes which image encodings a provider takes in its payload.
type Accept struct {
	URL    bool
	Inline bool
}

// ToInline encodes raw bytes as a base64 data URI.
func ToInline(data []byte, mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = defaultImageMIME
	}
	return inlinePrefix + mimeType + inlineMarker + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI produced by ToInline.
func ParseDataURI(uri string) ([]byte, string, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, inlinePrefix) {
		return nil, "", errors.New("data uri: missing data: scheme")
	}
	idx := strings.Index(uri, inlineMarker)
	if idx < 0 {
		return nil, "", errors.New("data uri: only base64 payloads are supported")
	}
	mimeType := uri[len(inlinePrefix):idx]
	data, err := base64.StdEncoding.DecodeString(uri[idx+len(inlineMarker):])
	if err != nil {
		return nil, "", fmt.Errorf("data uri: decode payload: %w", err)
	}
	return data, mimeType, nil
}

// Codec fetches remote images and converts image references into the shape
// a provider accepts.
type Codec struct {
	httpClient *http.Client
}

// NewCodec builds a codec. A nil client gets a 30 second timeout.
func NewCodec(client *http.Client) *Codec {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Codec{httpClient: client}
}

// FetchAndInline downloads an image and encodes it as a data URI using the
// response content type.
func (c *Codec) FetchAndInline(ctx context.Context, imageURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &TransportError{URL: imageURL, Err: errors.New("invalid image url")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", &TransportError{URL: imageURL, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", &TransportError{URL: imageURL, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return "", &TransportError{URL: imageURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(data) > maxFetchBytes {
		return "", &TransportError{URL: imageURL, Err: errors.New("image exceeds size limit")}
	}
	return ToInline(data, contentType(resp.Header.Get("Content-Type"))), nil
}

// Resolve turns ref into the string a provider puts in its payload.
func (c *Codec) Resolve(ctx context.Context, ref ImageRef, accept Accept) (string, error) {
	switch ref.Kind() {
	case ImageKindURL:
		if accept.URL {
			return ref.URL, nil
		}
		if accept.Inline {
			return c.FetchAndInline(ctx, ref.URL)
		}
	case ImageKindBytes:
		if accept.Inline {
			return ToInline(ref.Data, ref.MIMEType), nil
		}
		return "", configErrorf("provider accepts image urls only, got raw image bytes")
	case ImageKindInline:
		if accept.Inline {
			if _, _, err := ParseDataURI(ref.Inline); err != nil {
				return "", configErrorf("%v", err)
			}
			return ref.Inline, nil
		}
		return "", configErrorf("provider accepts image urls only, got inline image data")
	default:
		return "", configErrorf("image reference must set exactly one of url, bytes or inline data")
	}
	return "", configErrorf("provider accepts no image encoding")
}

func contentType(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultImageMIME
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" {
		return defaultImageMIME
	}
	return mediaType
}
