// Package page supplies the data the rendering layer needs before a page is
// built, either per request or once at build time when the page is prerendered.
package page

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Loader produces page data for one render pass.
type Loader[D any] interface {
	Load(ctx context.Context) (D, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc[D any] func(ctx context.Context) (D, error)

// Load calls f(ctx).
func (f LoaderFunc[D]) Load(ctx context.Context) (D, error) {
	return f(ctx)
}

// Provider hands page data to the rendering layer.
//
// When prerendering, the loader runs once during Build and every later call
// to Data returns that snapshot. Otherwise the loader runs on every call.
type Provider[D any] struct {
	loader    Loader[D]
	prerender bool

	mu       sync.Mutex
	snapshot *D
}

// NewProvider creates a Provider around loader.
func NewProvider[D any](loader Loader[D], prerender bool) *Provider[D] {
	return &Provider[D]{
		loader:    loader,
		prerender: prerender,
	}
}

// Prerender reports whether the page output may be generated once ahead of
// request time.
func (p *Provider[D]) Prerender() bool {
	return p.prerender
}

// Build runs the loader and stores the result as the build snapshot,
// replacing any earlier snapshot.
func (p *Provider[D]) Build(ctx context.Context) (D, error) {
	data, err := p.loader.Load(ctx)
	if err != nil {
		var zero D
		return zero, fmt.Errorf("build page data: %w", err)
	}

	p.mu.Lock()
	p.snapshot = &data
	p.mu.Unlock()

	return data, nil
}

// Data returns the page data for a render pass.
func (p *Provider[D]) Data(ctx context.Context) (D, error) {
	if !p.prerender {
		return p.loader.Load(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snapshot != nil {
		return *p.snapshot, nil
	}

	// No build pass ran before the first render; build now.
	data, err := p.loader.Load(ctx)
	if err != nil {
		var zero D
		return zero, fmt.Errorf("build page data: %w", err)
	}
	p.snapshot = &data
	return data, nil
}

// WriteSnapshot builds the page data and writes it to path as JSON.
func (p *Provider[D]) WriteSnapshot(ctx context.Context, path string) error {
	data, err := p.Build(ctx)
	if err != nil {
		return err
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode page data: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write page data: %w", err)
	}
	return nil
}

// LayoutData is the data shared by every page through the root layout.
type LayoutData struct {
	CurrentTime string `json:"currentTime"`
}

// TimeLayout renders times as e.g. "Sun Oct 18 2026 14:03:09 GMT-0700 (PDT)".
const TimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// LayoutPrerender is the root layout's prerender setting.
const LayoutPrerender = true

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// LayoutLoader loads LayoutData from a clock. It holds no state between calls.
type LayoutLoader struct {
	now func() time.Time
}

// NewLayoutLoader returns a LayoutLoader reading now. A nil now uses time.Now.
func NewLayoutLoader(now func() time.Time) *LayoutLoader {
	if now == nil {
		now = time.Now
	}
	return &LayoutLoader{now: now}
}

// Load implements Loader.
func (l *LayoutLoader) Load(_ context.Context) (LayoutData, error) {
	return LayoutData{CurrentTime: FormatTime(l.now())}, nil
}

// NewLayoutProvider wires a LayoutLoader into a Provider.
func NewLayoutProvider(now func() time.Time, prerender bool) *Provider[LayoutData] {
	return NewProvider[LayoutData](NewLayoutLoader(now), prerender)
}
