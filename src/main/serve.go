package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"textlens/src/clipboard"
	"textlens/src/coordinator"
	"textlens/src/hotkey"
	"textlens/src/logutil"
	"textlens/src/messages"
	"textlens/src/notification"
	"textlens/src/overlay"
	"textlens/src/page"
	"textlens/src/presenter"
	"textlens/src/process"
	"textlens/src/router"
	"textlens/src/runtimeinit"
	"textlens/src/screenshot"
	"textlens/src/selection"
	"textlens/src/tray"
	"textlens/src/wsbridge"
)

type serveOptions struct {
	noTray   bool
	noHotkey bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resident process (coordinator, page, hotkey, tray, bridge)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*root, *opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "Do not show the tray icon")
	cmd.Flags().BoolVar(&opts.noHotkey, "no-hotkey", false, "Do not install the global input hook")
	return cmd
}

// pages tracks the page process currently serving page:1 so input events
// follow a page that was re-injected.
type pages struct {
	mu      sync.Mutex
	current *page.Page
}

func (p *pages) set(pg *page.Page) {
	p.mu.Lock()
	p.current = pg
	p.mu.Unlock()
}

func (p *pages) machine() *selection.Machine {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.Machine()
}

// app is the wired resident process.
type app struct {
	rt      *runtimeinit.Runtime
	manager *process.Manager
	popup   *presenter.Popup
	board   *notification.Board
	pages   *pages
	bridge  *http.Server
}

func newApp(ctx context.Context, rt *runtimeinit.Runtime, out io.Writer, withTray bool) (*app, error) {
	a := &app{
		rt:      rt,
		manager: process.NewManager(ctx),
		board:   notification.NewBoard(),
		pages:   &pages{},
	}
	a.board.OnShow = func(n notification.Notice) {
		fmt.Fprintln(out, presenter.RenderNotice(n))
		if withTray {
			tray.SetStatus(n.Text)
		}
	}

	if err := a.manager.Start(coordinator.New(rt.LLM)); err != nil {
		return nil, err
	}

	newPage := func(name string) process.Process {
		pg := page.New(name, page.Deps{
			Overlay:    &overlay.Headless{},
			Capturer:   screenshot.Screen{},
			Recognizer: rt.Recognizer,
			Notifier:   a.board,
			OnCallout: func(v presenter.CalloutView) {
				fmt.Fprintln(out, presenter.RenderCallout(v))
			},
		})
		return pg
	}
	pageStarted := func(p process.Process) {
		if pg, ok := p.(*page.Page); ok {
			a.pages.set(pg)
		}
	}
	injector := process.Injector{Manager: a.manager, New: newPage, Started: pageStarted}

	pageName := messages.PageContext(1)
	if err := injector.Inject(ctx, pageName); err != nil {
		return nil, err
	}

	a.popup = &presenter.Popup{
		Requester: router.Client{From: messages.ContextPopup, Router: a.manager.Router()},
		Store:     rt.Store,
		Clipboard: &clipboard.System{},
		Injector:  injector,
		Policy:    rt.Policy(),
		Page:      pageName,
		Interval:  rt.Config.PollInterval,
		OnRender: func(v presenter.View) {
			fmt.Fprintln(out, presenter.RenderPopup(v))
		},
	}

	a.bridge = &http.Server{
		Addr:              rt.Config.BridgeAddr,
		Handler:           wsbridge.NewServer(a.manager.Router(), rt.Config.BridgeAllowedOrigins...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

func (a *app) serveBridge(ln net.Listener) {
	log.Printf("Bridge listening on %s", ln.Addr())
	if err := a.bridge.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Bridge error: %v", err)
	}
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.bridge.Shutdown(ctx)
	a.manager.StopAll()
	_ = a.rt.Close()
}

// action runs a popup action off the caller's goroutine.
func (a *app) action(ctx context.Context, name string, fn func(context.Context) error) func() {
	return func() {
		go func() {
			if err := fn(ctx); err != nil {
				log.Printf("Popup %s: %v", name, err)
			}
		}()
	}
}

func (a *app) show(ctx context.Context) error {
	_, err := a.popup.Open(ctx)
	return err
}

func runServe(root rootOptions, opts serveOptions, out io.Writer) error {
	// The tray and the native hook expect the main thread.
	runtime.LockOSThread()

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  root.loadOptions(),
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		notification.ShowBlockingError("TextLens unavailable", err.Error())
		return err
	}

	// The bridge port doubles as the single-instance lock.
	ln, err := net.Listen("tcp", rt.Config.BridgeAddr)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("a resident is already running on %s: %w", rt.Config.BridgeAddr, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, rt, out, !opts.noTray)
	if err != nil {
		_ = ln.Close()
		_ = rt.Close()
		return err
	}
	defer a.shutdown()

	go a.serveBridge(ln)
	log.Printf("Contexts running: %v", a.manager.Router().ActiveContexts())

	startSelection := a.action(ctx, "startSelection", a.popup.StartSelection)
	if !opts.noHotkey {
		hub := &hotkey.Hub{}
		if err := hotkey.Listen(hub, rt.Config.Hotkey, startSelection); err != nil {
			return fmt.Errorf("invalid hotkey %q: %w", rt.Config.Hotkey, err)
		}
		go selection.Drive(ctx, a.pages.machine, hub.Subscribe(64))
		hub.Start()
		defer hub.Stop()
	}

	fmt.Fprintf(out, "TextLens running. Press %s to select a region.\n", rt.Config.Hotkey)

	if opts.noTray {
		<-ctx.Done()
		return nil
	}

	go func() {
		<-ctx.Done()
		tray.Stop()
	}()
	tray.Run(tray.Actions{
		Select: startSelection,
		Show:   a.action(ctx, "show", a.show),
		Copy:   a.action(ctx, "copy", a.popup.Copy),
		Clear:  a.action(ctx, "clear", a.popup.Clear),
		Quit:   cancel,
	})
	return nil
}
