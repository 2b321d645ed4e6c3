package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

// Sink receives signals produced from the page.
type Sink interface {
	Submit(sig signals.Signal) error
}

// #region config
// ObserverConfig selects the browser and the page to watch.
type ObserverConfig struct {
	ControlURL   string        // DevTools websocket; empty launches a local browser
	Headless     bool          // only used when launching
	URL          string        // opened when no existing tab matches
	URLMatch     string        // substring identifying the tracked tab
	ElementID    string        // id of the break tag
	PollInterval time.Duration // event drain and visibility snapshot cadence
}

// DefaultObserverConfig returns the settings for a locally launched browser.
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{
		Headless:     false,
		ElementID:    "break",
		PollInterval: 500 * time.Millisecond,
	}
}

// #endregion config

// #region observer
// Observer drives one tab over the DevTools protocol and turns what it sees
// into break signals.
type Observer struct {
	cfg        ObserverConfig
	translator *Translator
	sink       Sink
	logger     *zap.Logger
}

func NewObserver(cfg ObserverConfig, producer *signals.Producer, sink Sink, logger *zap.Logger) *Observer {
	def := DefaultObserverConfig()
	if cfg.ElementID == "" {
		cfg.ElementID = def.ElementID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		cfg:        cfg,
		translator: NewTranslator(producer),
		sink:       sink,
		logger:     logger,
	}
}

// Run connects, attaches to the tracked tab and streams signals until ctx
// is cancelled. A launched browser is killed on return; an attached one is
// left running.
func (o *Observer) Run(ctx context.Context) error {
	browser, cleanup, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	page, err := o.findPage(ctx, browser)
	if err != nil {
		return err
	}
	if err := o.install(ctx, page); err != nil {
		return err
	}
	o.logger.Info("browser observer attached", zap.String("element", o.cfg.ElementID))

	o.stream(ctx, page)
	return nil
}

func (o *Observer) connect(ctx context.Context) (*rod.Browser, func(), error) {
	controlURL := o.cfg.ControlURL
	cleanup := func() {}

	if controlURL == "" {
		l := launcher.New().Headless(o.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		cleanup = func() { l.Kill() }
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect to browser: %w", err)
	}
	return browser, cleanup, nil
}

// findPage waits for a tab whose URL matches, opening one when a URL is configured.
func (o *Observer) findPage(ctx context.Context, browser *rod.Browser) (*rod.Page, error) {
	opened := false
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		pages, err := browser.Pages()
		if err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		for _, p := range pages {
			info, err := p.Info()
			if err != nil {
				continue
			}
			if o.matches(info.URL) {
				return p, nil
			}
		}

		if !opened && o.cfg.URL != "" {
			p, err := browser.Page(proto.TargetCreateTarget{URL: o.cfg.URL})
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", o.cfg.URL, err)
			}
			return p, nil
		}
		opened = true

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Observer) matches(url string) bool {
	if o.cfg.URLMatch == "" {
		return o.cfg.URL != "" && strings.HasPrefix(url, o.cfg.URL)
	}
	return strings.Contains(url, o.cfg.URLMatch)
}

func (o *Observer) install(ctx context.Context, page *rod.Page) error {
	if _, err := page.EvalOnNewDocument(newDocumentScript); err != nil {
		return fmt.Errorf("install document hooks: %w", err)
	}
	if _, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           installFn,
		ByValue:      true,
		AwaitPromise: true,
	}); err != nil {
		return fmt.Errorf("install page hooks: %w", err)
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}
	return nil
}

// #endregion observer

// #region stream
func (o *Observer) stream(ctx context.Context, page *rod.Page) {
	var (
		mu      sync.Mutex
		pending = make(map[proto.NetworkRequestID]string)
		wg      sync.WaitGroup
	)

	waitNet := page.Context(ctx).EachEvent(
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil || !o.translator.Watches(ev.Response.URL) {
				return
			}
			mu.Lock()
			pending[ev.RequestID] = ev.Response.URL
			mu.Unlock()
		},
		func(ev *proto.NetworkLoadingFinished) {
			mu.Lock()
			url, ok := pending[ev.RequestID]
			delete(pending, ev.RequestID)
			mu.Unlock()
			if !ok {
				return
			}
			at := time.Now()
			// Bodies are fetched off the event goroutine.
			wg.Add(1)
			go func() {
				defer wg.Done()
				body := o.responseBody(page, ev.RequestID)
				for _, sig := range o.translator.FromResponse(url, body, at) {
					o.submit(sig)
				}
			}()
		},
	)

	waitNav := page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		if sig, ok := o.translator.FromNavigation(time.Now()); ok {
			o.submit(sig)
		}
	})

	wg.Add(3)
	go func() {
		defer wg.Done()
		waitNet()
	}()
	go func() {
		defer wg.Done()
		waitNav()
	}()
	go func() {
		defer wg.Done()
		o.poll(ctx, page)
	}()
	wg.Wait()
}

func (o *Observer) poll(ctx context.Context, page *rod.Page) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS:           pollFn,
			JSArgs:       []interface{}{o.cfg.ElementID},
			ByValue:      true,
			AwaitPromise: true,
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				o.logger.Debug("poll page", zap.Error(err))
			}
			continue
		}
		if res == nil || res.Value.Nil() {
			continue
		}
		raw, err := res.Value.MarshalJSON()
		if err != nil {
			continue
		}
		sigs, err := o.translator.FromPoll(raw)
		if err != nil {
			o.logger.Warn("decode poll result", zap.Error(err))
			continue
		}
		for _, sig := range sigs {
			o.submit(sig)
		}
	}
}

func (o *Observer) responseBody(page *rod.Page, id proto.NetworkRequestID) []byte {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page)
	if err != nil {
		o.logger.Debug("fetch response body", zap.String("request", string(id)), zap.Error(err))
		return nil
	}
	if res.Base64Encoded {
		b, err := base64.StdEncoding.DecodeString(res.Body)
		if err != nil {
			return nil
		}
		return b
	}
	return []byte(res.Body)
}

func (o *Observer) submit(sig signals.Signal) {
	if err := o.sink.Submit(sig); err != nil {
		o.logger.Warn("submit browser signal", zap.Stringer("signal", sig), zap.Error(err))
	}
}

// #endregion stream
