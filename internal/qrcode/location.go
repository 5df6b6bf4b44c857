package qrcode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const LocationCodeVersion = 2

var (
	reNonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	reSeparators = regexp.MustCompile(`[-\s]+`)
)

// SanitizeName turns a free-text hall name into a file-safe token:
// non-word characters are dropped, the result is trimmed and lower-cased,
// and runs of whitespace or hyphens collapse to a single underscore.
func SanitizeName(name string) string {
	s := reNonWord.ReplaceAllString(name, "")
	s = strings.ToLower(strings.TrimSpace(s))
	return reSeparators.ReplaceAllString(s, "_")
}

// Checksum is the sum of the rune values of text modulo 10000.
func Checksum(text string) int {
	sum := 0
	for _, r := range text {
		sum += int(r)
	}
	return sum % 10000
}

func HallArtifactName(slug string) string {
	return "hall_" + slug + ".png"
}

// LocationCode is a long-lived code bound to a hall rather than a session.
// It carries a checksum and an issue timestamp but no expiry: whoever
// resolves it must check the validity window of the program running in the
// hall. The checksum only detects mangled or hand-typed slugs; it is not a
// security boundary.
type LocationCode struct {
	Version   int       `json:"version"`
	Hall      string    `json:"hall"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Checksum  int       `json:"checksum"`
	Artifact  Artifact  `json:"artifact"`
}

// HallURL builds the resolvable payload of a location code.
func HallURL(baseURL, slug string, checksum int, issued time.Time) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}
	q := url.Values{}
	q.Set("v", strconv.Itoa(LocationCodeVersion))
	q.Set("ts", issued.UTC().Format(time.RFC3339))
	q.Set("cs", strconv.Itoa(checksum))
	return fmt.Sprintf("%s/attendance/hall/%s?%s", base, url.PathEscape(slug), q.Encode()), nil
}

func (g *Generator) GenerateLocationCode(ctx context.Context, hallName, baseURL string) (LocationCode, error) {
	slug := SanitizeName(hallName)
	if slug == "" {
		return LocationCode{}, &RenderError{Kind: KindHall, Target: hallName, Err: errors.New("hall name has no usable characters")}
	}
	code := LocationCode{
		Version:   LocationCodeVersion,
		Hall:      slug,
		Timestamp: g.now().UTC(),
		Checksum:  Checksum(hallName),
	}
	target, err := HallURL(baseURL, slug, code.Checksum, code.Timestamp)
	if err != nil {
		return LocationCode{}, &RenderError{Kind: KindHall, Target: hallName, Err: err}
	}
	code.URL = target
	code.Artifact = Artifact{Kind: KindHall, Name: HallArtifactName(slug), URL: target}
	code.Artifact.Path = g.Path(code.Artifact.Name)
	if err := g.render(ctx, code.Artifact.Name, target, g.styles[KindHall]); err != nil {
		return LocationCode{}, &RenderError{Kind: KindHall, Target: target, Err: err}
	}
	return code, nil
}

// VerifyLocationChecksum reports whether checksum was derived from hallName.
func VerifyLocationChecksum(hallName string, checksum int) bool {
	return Checksum(hallName) == checksum
}
