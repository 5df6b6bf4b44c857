package qrcode

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
)

// Kind names the purpose of a session QR code.
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindFeedback   Kind = "feedback"
	// KindHall is the long-lived, location-scoped code printed in a hall.
	KindHall Kind = "hall"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAttendance:
		return KindAttendance, nil
	case KindFeedback:
		return KindFeedback, nil
	}
	return "", fmt.Errorf("invalid qr type %q, must be attendance or feedback", s)
}

// Style is the cosmetic rendering of a code.
type Style struct {
	Fill       string
	Background string
	Recovery   goqrcode.RecoveryLevel
	// ModuleSize is the number of pixels per QR module.
	ModuleSize int
}

func DefaultStyles() map[Kind]Style {
	return map[Kind]Style{
		KindAttendance: {Fill: "#160272", Background: "#f0f0f0", Recovery: goqrcode.Highest, ModuleSize: 8},
		KindFeedback:   {Fill: "#015B01BC", Background: "#ffffff", Recovery: goqrcode.Highest, ModuleSize: 8},
		KindHall:       {Fill: "#006400", Background: "#ffffff", Recovery: goqrcode.High, ModuleSize: 6},
	}
}

func ParseRecovery(s string) (goqrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "l":
		return goqrcode.Low, nil
	case "medium", "m":
		return goqrcode.Medium, nil
	case "high", "q":
		return goqrcode.High, nil
	case "highest", "h":
		return goqrcode.Highest, nil
	}
	return goqrcode.Medium, fmt.Errorf("unknown recovery level %q", s)
}

// parseHexColor accepts #rgb, #rrggbb and #rrggbbaa.
func parseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// EncodeFunc renders content into PNG bytes using style.
type EncodeFunc func(content string, style Style) ([]byte, error)

// EncodePNG is the default EncodeFunc.
func EncodePNG(content string, style Style) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	fg, err := parseHexColor(style.Fill)
	if err != nil {
		return nil, err
	}
	bg, err := parseHexColor(style.Background)
	if err != nil {
		return nil, err
	}
	q, err := goqrcode.New(content, style.Recovery)
	if err != nil {
		return nil, err
	}
	q.ForegroundColor = fg
	q.BackgroundColor = bg
	size := style.ModuleSize
	if size <= 0 {
		size = 8
	}
	// a negative size asks for that many pixels per module
	return q.PNG(-size)
}
