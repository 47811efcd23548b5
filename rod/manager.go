package rod

import (
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// DefaultRecycleAfter is the number of pages a browser renders before it
// is replaced. Chrome's memory only grows over a long crawl.
const DefaultRecycleAfter = 75

// instance is one launched Chrome process.
type instance struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	rendered int
	inFlight int
	retired  bool
}

func (in *instance) shutdown() error {
	err := in.browser.Close()
	in.launcher.Kill()
	return err
}

// BrowserManager hands out a headless Chrome for rendering and rotates it
// every RecycleAfter pages. New pages go to the replacement at once; a
// retired browser is shut down when its last in-flight page is released.
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	mu           sync.Mutex
	bin          string
	recycleAfter int
	current      *instance
	retired      []*instance
	closed       bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithRecycleAfter sets the number of pages rendered per browser.
func WithRecycleAfter(n int) ManagerOption {
	return func(bm *BrowserManager) { bm.recycleAfter = n }
}

// WithBrowserBin uses the Chrome binary at path instead of the one rod
// finds or downloads.
func WithBrowserBin(path string) ManagerOption {
	return func(bm *BrowserManager) { bm.bin = path }
}

// NewBrowserManager launches the first browser so a missing Chrome is
// reported up front. Close must be called when done.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{recycleAfter: DefaultRecycleAfter}
	for _, opt := range opts {
		opt(bm)
	}
	in, err := bm.launch()
	if err != nil {
		return nil, err
	}
	bm.current = in
	return bm, nil
}

// Acquire returns a browser for one page and a release func to call after
// the page is closed. It fails once the manager is closed.
func (bm *BrowserManager) Acquire() (*rod.Browser, func(), error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil, func() {}, fmt.Errorf("browser manager closed")
	}
	if bm.current.rendered+bm.current.inFlight >= bm.recycleAfter {
		bm.rotate()
	}
	in := bm.current
	in.inFlight++

	var once sync.Once
	return in.browser, func() {
		once.Do(func() { bm.release(in) })
	}, nil
}

func (bm *BrowserManager) release(in *instance) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	in.inFlight--
	in.rendered++
	if in.retired && in.inFlight == 0 {
		_ = in.shutdown()
		bm.forget(in)
	}
}

// rotate replaces the current browser. A failed launch keeps the current
// one serving. Must be called with mu held.
func (bm *BrowserManager) rotate() {
	next, err := bm.launch()
	if err != nil {
		return
	}
	old := bm.current
	bm.current = next
	if old.inFlight == 0 {
		_ = old.shutdown()
		return
	}
	old.retired = true
	bm.retired = append(bm.retired, old)
}

func (bm *BrowserManager) forget(in *instance) {
	for i, r := range bm.retired {
		if r == in {
			bm.retired = append(bm.retired[:i], bm.retired[i+1:]...)
			return
		}
	}
}

// Browsers returns the number of running Chrome processes.
func (bm *BrowserManager) Browsers() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return 0
	}
	return 1 + len(bm.retired)
}

// Close shuts down every browser. It is safe to call more than once.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true
	err := bm.current.shutdown()
	for _, in := range bm.retired {
		_ = in.shutdown()
	}
	bm.retired = nil
	return err
}

func (bm *BrowserManager) launch() (*instance, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Leakless(true).
		Headless(true)
	if bm.bin != "" {
		l = l.Bin(bm.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return &instance{browser: browser, launcher: l}, nil
}
