// Package ble encodes band commands and broadcasts them as BLE advertisements.
package ble

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrQueueFull is returned when the broadcast queue cannot take another packet.
var ErrQueueFull = errors.New("broadcast queue full")

// Advertiser is the radio the broadcaster drives.
type Advertiser interface {
	Enable() error
	Advertise(companyID uint16, data []byte) error
	Stop() error
}

// Broadcaster advertises queued packets one at a time. Each packet is held
// on air for a fixed time so bands in range can pick it up.
type Broadcaster struct {
	adv        Advertiser
	queue      chan []byte
	limiter    *rate.Limiter
	hold       time.Duration
	settle     time.Duration
	retryDelay time.Duration
	onSent     func(packet []byte)
}

// Options tunes a Broadcaster.
type Options struct {
	Hold       time.Duration
	RateLimit  float64
	RateBurst  int
	QueueSize  int
	RetryDelay time.Duration
}

// NewBroadcaster creates a broadcaster. Call Run to start advertising.
func NewBroadcaster(adv Advertiser, opts Options) *Broadcaster {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 8
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Broadcaster{
		adv:        adv,
		queue:      make(chan []byte, opts.QueueSize),
		limiter:    rate.NewLimiter(limit, opts.RateBurst),
		hold:       opts.Hold,
		settle:     10 * time.Millisecond,
		retryDelay: opts.RetryDelay,
	}
}

// OnSent registers a callback fired after each packet has been on air.
func (b *Broadcaster) OnSent(fn func(packet []byte)) {
	b.onSent = fn
}

// Broadcast queues a packet without blocking.
func (b *Broadcaster) Broadcast(packet []byte) error {
	select {
	case b.queue <- packet:
		return nil
	default:
		log.Warn().Str("component", "ble").Hex("packet", packet).Msg("Broadcast queue full, dropping packet")
		return ErrQueueFull
	}
}

// Run enables the adapter and advertises packets until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	logger := log.With().Str("component", "ble").Logger()

	for {
		err := b.adv.Enable()
		if err == nil {
			break
		}
		logger.Error().Err(err).Msg("Failed to enable adapter")
		if !sleep(ctx, b.retryDelay) {
			return
		}
	}
	logger.Info().Msg("BLE broadcaster started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("BLE broadcaster shutting down")
			return
		case packet := <-b.queue:
			if err := b.limiter.Wait(ctx); err != nil {
				return
			}
			if err := b.send(ctx, packet); err != nil {
				logger.Error().Err(err).Hex("packet", packet).Msg("Broadcast failed")
				continue
			}
			if b.onSent != nil {
				b.onSent(packet)
			}
		}
	}
}

func (b *Broadcaster) send(ctx context.Context, packet []byte) error {
	_ = b.adv.Stop()
	sleep(ctx, b.settle)

	id, data := ManufacturerData(packet)
	if err := b.adv.Advertise(id, data); err != nil {
		return err
	}
	log.Debug().Str("component", "ble").Hex("packet", packet).Msg("Broadcasting")

	sleep(ctx, b.hold)
	err := b.adv.Stop()
	sleep(ctx, b.settle)
	return err
}

// sleep waits for d or until ctx is done. It reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
