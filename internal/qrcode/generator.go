// Package qrcode renders the attendance, feedback and hall QR codes of the
// training portal and manages their image files.
package qrcode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const DefaultTimeout = 10 * time.Second

// RenderError reports a failed encode or write. An empty Kind means both session codes failed.
type RenderError struct {
	Kind      Kind
	ProgramID uint
	Target    string
	Err       error
}

func (e *RenderError) Error() string {
	what := "qr codes"
	if e.Kind != "" {
		what = string(e.Kind) + " qr code"
	}
	if e.ProgramID != 0 {
		return fmt.Sprintf("render %s for program %d: %v", what, e.ProgramID, e.Err)
	}
	return fmt.Sprintf("render %s %s: %v", what, e.Target, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// PartialRenderError is returned when exactly one of a program's two codes was written.
type PartialRenderError struct {
	Succeeded Artifact
	Failed    *RenderError
}

func (e *PartialRenderError) Error() string {
	return fmt.Sprintf("partial qr generation (%s written): %v", e.Succeeded.Kind, e.Failed)
}

func (e *PartialRenderError) Unwrap() error { return e.Failed }

type Artifact struct {
	Kind      Kind   `json:"kind"`
	ProgramID uint   `json:"program_id,omitempty"`
	Name      string `json:"name"`
	Path      string `json:"-"`
	URL       string `json:"url"`
}

type ProgramArtifacts struct {
	Attendance *Artifact
	Feedback   *Artifact
}

type Options struct {
	Folder  string
	Timeout time.Duration
	Styles  map[Kind]Style
	Encode  EncodeFunc
	Now     func() time.Time
}

type Generator struct {
	folder  string
	timeout time.Duration
	styles  map[Kind]Style
	encode  EncodeFunc
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGenerator(opts Options) (*Generator, error) {
	folder := strings.TrimSpace(opts.Folder)
	if folder == "" {
		folder = filepath.Join("static", "qrcodes")
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create qr folder: %w", err)
	}
	styles := DefaultStyles()
	for k, st := range opts.Styles {
		styles[k] = st
	}
	g := &Generator{
		folder:  folder,
		timeout: opts.Timeout,
		styles:  styles,
		encode:  opts.Encode,
		now:     opts.Now,
		locks:   map[string]*sync.Mutex{},
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.encode == nil {
		g.encode = EncodePNG
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

func (g *Generator) Folder() string { return g.folder }

// ArtifactName is the deterministic file name of a session code.
func ArtifactName(kind Kind, programID uint) string {
	return fmt.Sprintf("%s_program_%d.png", kind, programID)
}

// TargetURL is the address a scanned session code resolves to.
func TargetURL(kind Kind, baseURL string, programID uint) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}
	switch kind {
	case KindAttendance:
		return fmt.Sprintf("%s/attendance/%d", base, programID), nil
	case KindFeedback:
		return fmt.Sprintf("%s/feedback/form/%d", base, programID), nil
	}
	return "", fmt.Errorf("no url template for qr kind %q", kind)
}

// Path resolves a stored artifact name inside the QR folder.
func (g *Generator) Path(name string) string {
	return filepath.Join(g.folder, filepath.Base(name))
}

// Generate renders one session code and overwrites its file.
func (g *Generator) Generate(ctx context.Context, programID uint, kind Kind, baseURL string) (Artifact, error) {
	target, err := TargetURL(kind, baseURL, programID)
	if err != nil {
		return Artifact{}, &RenderError{Kind: kind, ProgramID: programID, Err: err}
	}
	art := Artifact{
		Kind:      kind,
		ProgramID: programID,
		Name:      ArtifactName(kind, programID),
		URL:       target,
	}
	art.Path = g.Path(art.Name)
	if err := g.render(ctx, art.Name, target, g.styles[kind]); err != nil {
		return Artifact{}, &RenderError{Kind: kind, ProgramID: programID, Target: target, Err: err}
	}
	return art, nil
}

// GenerateProgramCodes renders the attendance and feedback codes independently.
// Exactly one failure yields *PartialRenderError; two yield *RenderError.
func (g *Generator) GenerateProgramCodes(ctx context.Context, programID uint, baseURL string) (ProgramArtifacts, error) {
	var out ProgramArtifacts
	att, attErr := g.Generate(ctx, programID, KindAttendance, baseURL)
	if attErr == nil {
		out.Attendance = &att
	}
	fb, fbErr := g.Generate(ctx, programID, KindFeedback, baseURL)
	if fbErr == nil {
		out.Feedback = &fb
	}
	switch {
	case attErr == nil && fbErr == nil:
		log.Printf("qrcode: generated attendance and feedback codes for program %d", programID)
		return out, nil
	case attErr != nil && fbErr != nil:
		return out, &RenderError{ProgramID: programID, Err: errors.Join(attErr, fbErr)}
	case attErr != nil:
		return out, &PartialRenderError{Succeeded: fb, Failed: asRenderError(attErr)}
	default:
		return out, &PartialRenderError{Succeeded: att, Failed: asRenderError(fbErr)}
	}
}

func asRenderError(err error) *RenderError {
	var re *RenderError
	if errors.As(err, &re) {
		return re
	}
	return &RenderError{Err: err}
}

type renderResult struct {
	err error
}

// render encodes and writes name under a per-name lock, bounded by the generator timeout.
func (g *Generator) render(ctx context.Context, name, content string, style Style) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan renderResult, 1)
	go func() {
		lock := g.lockFor(name)
		lock.Lock()
		defer lock.Unlock()
		if err := ctx.Err(); err != nil {
			done <- renderResult{err: err}
			return
		}
		png, err := g.encode(content, style)
		if err != nil {
			done <- renderResult{err: fmt.Errorf("encode: %w", err)}
			return
		}
		// The caller may have given up and removed the file already.
		if err := ctx.Err(); err != nil {
			done <- renderResult{err: err}
			return
		}
		done <- renderResult{err: writeFileAtomic(g.folder, name, png)}
	}()

	select {
	case res := <-done:
		return res.err
	case <-ctx.Done():
		return fmt.Errorf("render timed out: %w", ctx.Err())
	}
}

func (g *Generator) lockFor(name string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[name]
	if !ok {
		l = &sync.Mutex{}
		g.locks[name] = l
	}
	return l
}

// writeFileAtomic replaces dir/name so readers never observe a half-written image.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Remove deletes artifact files on a best-effort basis: a missing file is
// ignored and any other failure is logged, never returned.
func (g *Generator) Remove(names ...string) {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		g.remove(name)
	}
}

func (g *Generator) remove(name string) {
	lock := g.lockFor(filepath.Base(name))
	lock.Lock()
	defer lock.Unlock()
	if err := os.Remove(g.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("qrcode: best-effort remove %s: %v", name, err)
	}
}

// Exists reports whether the named artifact is present on disk.
func (g *Generator) Exists(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	st, err := os.Stat(g.Path(name))
	return err == nil && !st.IsDir()
}
