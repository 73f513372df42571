package assets

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// CacheBust appends a millisecond timestamp parameter so the URL bypasses
// HTTP caches. URLs that already carry a query are returned unchanged, as
// are data URLs.
func CacheBust(rawURL string, now time.Time) string {
	if rawURL == "" || strings.HasPrefix(rawURL, "data:") || strings.Contains(rawURL, "?") {
		return rawURL
	}
	return rawURL + "?t=" + strconv.FormatInt(now.UnixMilli(), 10)
}

// DecodeDataURL splits a data URL into its media type and payload.
func DecodeDataURL(s string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errors.New(errors.ErrCodeInvalidSource, "not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New(errors.ErrCodeInvalidSource, "data URL has no payload")
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta, isBase64 = m, true
	}
	mediaType, _, _ = strings.Cut(meta, ";")
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
	} else {
		var text string
		text, err = url.PathUnescape(payload)
		data = []byte(text)
	}
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeImageDecode, err, "decode data URL")
	}
	return mediaType, data, nil
}

// EncodeDataURL returns a base64 data URL for data.
func EncodeDataURL(mediaType string, data []byte) string {
	var b bytes.Buffer
	b.WriteString("data:")
	b.WriteString(mediaType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
