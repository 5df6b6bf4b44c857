package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zaqqye/training_qr_backend/internal/qrcode"
)

type styleEntry struct {
	Fill       string `yaml:"fill"`
	Background string `yaml:"background"`
	Recovery   string `yaml:"recovery"`
	ModuleSize int    `yaml:"moduleSize"`
}

// LoadQRStyles reads per-kind overrides of the QR palette, e.g.
//
//	attendance:
//	  fill: "#160272"
//	  background: "#f0f0f0"
//	  recovery: highest
//	  moduleSize: 8
//
// Unset fields keep the built-in value. An empty path returns the defaults.
func LoadQRStyles(path string) (map[qrcode.Kind]qrcode.Style, error) {
	styles := qrcode.DefaultStyles()
	if strings.TrimSpace(path) == "" {
		return styles, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read qr style file: %w", err)
	}
	var raw map[string]styleEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse qr style file: %w", err)
	}
	for name, entry := range raw {
		kind := qrcode.Kind(strings.ToLower(strings.TrimSpace(name)))
		st, ok := styles[kind]
		if !ok {
			return nil, fmt.Errorf("qr style file: unknown kind %q", name)
		}
		if entry.Fill != "" {
			st.Fill = entry.Fill
		}
		if entry.Background != "" {
			st.Background = entry.Background
		}
		if entry.Recovery != "" {
			lvl, err := qrcode.ParseRecovery(entry.Recovery)
			if err != nil {
				return nil, fmt.Errorf("qr style file: %s: %w", name, err)
			}
			st.Recovery = lvl
		}
		if entry.ModuleSize > 0 {
			st.ModuleSize = entry.ModuleSize
		}
		styles[kind] = st
	}
	return styles, nil
}
