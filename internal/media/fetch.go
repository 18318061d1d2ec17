package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/iteam-company/blockpress/internal/apperr"
)

const maxRedirects = 5

var (
	allowedExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true,
	}

	mimeToExt = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	}

	extToMime = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".webp": "image/webp",
		".svg":  "image/svg+xml",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator: %w", apperr.ErrUnsupportedImage)
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported: %w", apperr.ErrUnsupportedImage)
	}

	data, err := decodeBase64(encoded)
	if err != nil {
		return nil, "", err
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s: %w", mime, apperr.ErrUnsupportedImage)
	}
	return data, ext, nil
}

// decodePayload decodes a bare base64 image payload and sniffs its type.
func decodePayload(payload string) ([]byte, string, error) {
	data, err := decodeBase64(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", err
	}
	detected := strings.Split(http.DetectContentType(data), ";")[0]
	ext := mimeToExt[detected]
	if ext == "" {
		return nil, "", fmt.Errorf("payload is not a supported image (detected: %s): %w", detected, apperr.ErrUnsupportedImage)
	}
	return data, ext, nil
}

func decodeBase64(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", errors.Join(apperr.ErrUnsupportedImage, err))
		}
	}
	return data, nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with host checks on
// the initial request and every redirect.
func (r *Resolver) fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https): %w", parsed.Scheme, apperr.ErrUnsupportedImage)
	}
	if err := r.checkHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := *r.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects (max %d)", maxRedirects)
		}
		return r.checkHost(req.URL.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", r.maxSize)
	}

	ct := resp.Header.Get("Content-Type")
	return data, mimeToExt[strings.Split(ct, ";")[0]], nil
}

// checkBlockedHost rejects hosts that resolve to loopback, private,
// link-local or unspecified addresses. Every resolved address is checked.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		resolved, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(resolved) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ips = resolved
	}

	for _, ip := range ips {
		if blockedIP(ip) {
			return fmt.Errorf("blocked host: %s resolves to internal address %s", host, ip)
		}
	}
	return nil
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// baseName picks a file name for an image: the alt text when given, else the
// last URL path segment, else a UUID. The extension is always ext.
func baseName(alt, rawURL, ext string) string {
	stem := ""
	if alt != "" {
		stem = alt
	} else if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		if parsed, err := url.Parse(rawURL); err == nil {
			b := path.Base(parsed.Path)
			if b != "." && b != "/" {
				stem = strings.TrimSuffix(b, path.Ext(b))
			}
		}
	}
	stem = sanitizeFilename(stem)
	if stem == "" {
		stem = uuid.New().String()
	}
	return stem + ext
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "." || strings.Trim(name, "_") == "" {
		return ""
	}
	return name
}

// validateMagicBytes verifies file content matches the declared extension.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag): %w", apperr.ErrUnsupportedImage)
		}
		return nil
	}

	detected := http.DetectContentType(data)
	got := mimeToExt[strings.Split(detected, ";")[0]]

	switch ext {
	case ".jpg", ".jpeg":
		if got != ".jpg" {
			return fmt.Errorf("content does not match extension %s (detected: %s): %w", ext, detected, apperr.ErrUnsupportedImage)
		}
	default:
		if got != ext {
			return fmt.Errorf("content does not match extension %s (detected: %s): %w", ext, detected, apperr.ErrUnsupportedImage)
		}
	}
	return nil
}
