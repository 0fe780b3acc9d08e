package crawler

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
)

var (
	nonPrintable = regexp.MustCompile(`[^\x20-\x7E]`)
	unsafeChars  = regexp.MustCompile(`[<>:"/\\|?*]`)
	underscores  = regexp.MustCompile(`_+`)
)

// fileName derives a safe local file name for a document URL. Non-ASCII and
// path characters become underscores; when nothing usable remains the name
// falls back to doc_<md5 prefix>.<ext>.
func fileName(rawURL string, format documentModel.Format) string {
	ext := "." + string(format)
	if format == "" {
		ext = ".bin"
	}

	if u, err := url.Parse(rawURL); err == nil {
		if segment, ok := fileSegment(u.Path); ok {
			if stem := sanitize(strings.TrimSuffix(segment, filepath.Ext(segment))); stem != "" {
				return stem + ext
			}
		}
	}

	sum := md5.Sum([]byte(rawURL))
	return "doc_" + hex.EncodeToString(sum[:])[:8] + ext
}

func sanitize(segment string) string {
	name, err := url.PathUnescape(segment)
	if err != nil {
		name = segment
	}
	name = strings.ReplaceAll(name, "+", " ")
	name = nonPrintable.ReplaceAllString(name, "_")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")
	name = strings.Trim(strings.TrimSpace(name), "_.")
	return name
}
