// Package naming turns free-form catalog strings into filesystem-safe tokens
// and builds the file and directory names of a generation run.
package naming

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spboyer/posegen/internal/models"
)

// RunDirLayout is the timestamp layout used for run directory names.
const RunDirLayout = "20060102150405"

// translationSuffixSep separates the English name from trailing commentary.
const translationSuffixSep = " - "

// quoteRunes are the straight and curly quote characters stripped from
// translations.
const quoteRunes = "\"'“”‘’"

// Slugify lower-cases s and replaces every maximal run of characters outside
// [a-z0-9] with a single "-". Leading and trailing "-" are removed.
func Slugify(s string) string {
	lower := strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(lower))
	pendingDash := false
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if isSlugByte(c) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteByte(c)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func isSlugByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// ExtractEnglishName derives a slug from a pose translation such as
// `"Mountain Pose" - grounding` -> "mountain-pose".
func ExtractEnglishName(translation string) string {
	s := stripQuotes(translation)

	if i := strings.Index(s, translationSuffixSep); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	for _, r := range s {
		if r == ' ' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	s = strings.ToLower(strings.TrimSpace(b.String()))
	return strings.Join(strings.Fields(s), "-")
}

// stripQuotes removes one pair of quotes when both ends carry one.
func stripQuotes(s string) string {
	first, firstSize := utf8.DecodeRuneInString(s)
	last, lastSize := utf8.DecodeLastRuneInString(s)
	if firstSize+lastSize > len(s) {
		return s
	}
	if strings.ContainsRune(quoteRunes, first) && strings.ContainsRune(quoteRunes, last) {
		return s[firstSize : len(s)-lastSize]
	}
	return s
}

// PadIndex renders n zero-padded to at least three digits. Wider values are
// never truncated.
func PadIndex(n int) string {
	return fmt.Sprintf("%03d", n)
}

// JobStem is the filename prefix shared by the success and error names of a
// job: {paddedIndex}-{slugifiedSanskrit}-{englishNameSlug}.
func JobStem(job models.Job) string {
	return fmt.Sprintf("%s-%s-%s", PadIndex(job.Index), Slugify(job.Pose.Sanskrit), ExtractEnglishName(job.Pose.Translation))
}

// ErrUnsafeProviderID is returned for provider IDs that can't be used as part
// of a file name inside the run directory.
var ErrUnsafeProviderID = errors.New("unsafe provider id")

// ImageFilename is the name of the image written for a successful job.
// providerID must be non-empty and free of path separators.
func ImageFilename(job models.Job, providerID, ext string) (string, error) {
	if providerID == "" || providerID == "." || providerID == ".." || strings.ContainsAny(providerID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeProviderID, providerID)
	}
	return fmt.Sprintf("%s-%s.%s", JobStem(job), providerID, normalizeExt(ext)), nil
}

// ErrorFilename is the name recorded for a failed job. No file is written
// under this name.
func ErrorFilename(job models.Job, ext string) string {
	return fmt.Sprintf("%s-%s.%s", JobStem(job), models.ErrorMarker, normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return "jpg"
	}
	return ext
}

// RunDirName names the output directory of a run started at t. A non-empty
// style is appended as a slug.
func RunDirName(t time.Time, style string) string {
	name := t.Format(RunDirLayout)
	if slug := Slugify(style); slug != "" {
		name += "-" + slug
	}
	return name
}
