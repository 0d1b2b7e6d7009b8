// Package gateway runs the assistant as a long-lived service: chat channels
// feed the message bus, every inbound message goes through the assistant,
// and proactive notices are pushed to the configured chat.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/assistant"
	"github.com/stellarlinkco/jarvis/internal/bus"
	"github.com/stellarlinkco/jarvis/internal/channel"
	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/logging"
	"github.com/stellarlinkco/jarvis/internal/proactive"
	"golang.org/x/sync/errgroup"
)

const errorReply = "Sorry, I encountered an error processing your message."

// Assistant is the part of the assistant the gateway drives.
type Assistant interface {
	Process(ctx context.Context, input string) assistant.Reply
	Deliver(n proactive.Notice) string
}

// RuntimeFactory opens the assistant runtime.
type RuntimeFactory func(cfg *config.Config) (*assistant.Runtime, error)

type Options struct {
	RuntimeFactory RuntimeFactory
	SignalChan     chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	runtime    *assistant.Runtime
	assistant  Assistant
	channels   *channel.ChannelManager
	proactive  *proactive.Engine
	signalChan chan os.Signal

	shutdownOnce sync.Once
	log          zerolog.Logger
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	factory := opts.RuntimeFactory
	if factory == nil {
		factory = assistant.Open
	}
	rt, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("open assistant: %w", err)
	}

	g := &Gateway{
		cfg:        cfg,
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		runtime:    rt,
		assistant:  rt.Assistant,
		signalChan: opts.SignalChan,
		log:        logging.For("gateway"),
	}

	chCfg := cfg.Channels
	chCfg.Telegram.MediaDir = cfg.MediaDir()
	g.channels, err = channel.NewChannelManager(chCfg, g.bus)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}

	if cfg.Proactive.Enabled {
		g.proactive = proactive.New(rt.Memory, proactive.Options{
			Interval:    proactive.ParseInterval(cfg.Proactive.Interval),
			MorningHour: cfg.Proactive.MorningHour,
			Privacy:     rt.Memory.Privacy(),
		})
	}
	return g, nil
}

// Run serves until a signal arrives or ctx ends, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.channels.StartAll(ctx); err != nil {
		cancel()
		return errors.Join(fmt.Errorf("start channels: %w", err), g.Shutdown())
	}
	g.log.Info().Strs("channels", g.channels.EnabledChannels()).Msg("channels started")

	if g.proactive != nil {
		if err := g.proactive.Start(ctx); err != nil {
			g.log.Warn().Err(err).Msg("proactive engine not started")
		}
	}

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return g.bus.DispatchOutbound(egCtx) })
	eg.Go(func() error {
		g.processLoop(egCtx)
		return nil
	})
	eg.Go(func() error {
		select {
		case sig := <-sigCh:
			g.log.Info().Str("signal", sig.String()).Msg("shutting down")
		case <-egCtx.Done():
		}
		cancel()
		return nil
	})
	g.log.Info().Msg("gateway running")

	err := eg.Wait()
	return errors.Join(err, g.Shutdown())
}

func (g *Gateway) processLoop(ctx context.Context) {
	var notices <-chan proactive.Notice
	if g.proactive != nil {
		notices = g.proactive.Notices()
	}

	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		case n := <-notices:
			g.notify(ctx, g.assistant.Deliver(n))
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	g.log.Info().Str("channel", msg.Channel).Str("sender", msg.SenderID).
		Str("content", truncate(msg.Content, 80)).Msg("inbound")

	reply := g.assistant.Process(ctx, msg.Content)
	text := reply.Text
	if text == "" {
		text = errorReply
	}
	g.log.Debug().Str("intent", string(reply.Intent)).Dur("elapsed", reply.Elapsed).Msg("replied")

	g.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: text,
	})
}

// notify sends a proactive notice to the Telegram notify chat, or logs it
// when none is configured.
func (g *Gateway) notify(ctx context.Context, text string) {
	if text == "" {
		return
	}
	tg := g.cfg.Channels.Telegram
	if !tg.Enabled || tg.NotifyChatID == "" {
		g.log.Info().Str("notice", text).Msg("proactive notice")
		return
	}
	g.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: "telegram",
		ChatID:  tg.NotifyChatID,
		Content: text,
	})
}

// Shutdown stops the proactive loop and channels and closes the runtime. Only
// the first call has any effect.
func (g *Gateway) Shutdown() error {
	var err error
	g.shutdownOnce.Do(func() {
		if g.proactive != nil {
			g.proactive.Stop()
		}
		_ = g.channels.StopAll()
		if g.runtime != nil {
			err = g.runtime.Close()
		}
		g.log.Info().Msg("shutdown complete")
	})
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
