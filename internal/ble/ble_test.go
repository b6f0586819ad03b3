package ble

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"magicband-controller/internal/palette"
)

func TestPackets(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"ping", Ping(), []byte{0xCC, 0x03, 0x00, 0x00, 0x00}},
		{"preset red", Preset(palette.Red, 0), []byte{0x83, 0x01, 0xE9, 0x05, 0x00, 0x2E, 0x0E, 0xF5, 0xB0}},
		{"preset masks vib", Preset(palette.White, 0x13), []byte{0x83, 0x01, 0xE9, 0x05, 0x00, 0x2E, 0x0E, 0xFB, 0xB3}},
		{
			"rainbow",
			Rainbow([5]palette.Code{palette.YellowOrange, palette.Red, palette.Green, palette.Blue, palette.Purple}, 2),
			[]byte{0x83, 0x01, 0xE9, 0x09, 0x00, 0x2E, 0x0F, 0xAF, 0xB5, 0xB9, 0xA2, 0xA1, 0xB2},
		},
		{"dual", Dual(palette.YellowOrange, palette.Blue, 0), []byte{0x83, 0x01, 0xE9, 0x06, 0x00, 0x22, 0x0F, 0x8F, 0x82, 0xB0}},
		{
			"circle",
			Circle(1),
			[]byte{0x83, 0x01, 0xE9, 0x0B, 0x0B, 0x0F, 0x0F, 0x5C, 0x5D, 0x48, 0xA5, 0xD1, 0x45, 0x32, 0xB1},
		},
		{
			"crossfade",
			Crossfade(palette.Red, palette.Blue, 0),
			[]byte{0x83, 0x01, 0xE1, 0x00, 0xE9, 0x11, 0x00, 0x6F, 0x0F, 0x55, 0x42, 0x58, 0xF4, 0x48, 0x82, 0xD1, 0x46, 0x02, 0x08, 0xD0, 0x65, 0x00, 0xB0},
		},
		{"color masked to five bits", Dual(palette.Code(0xFF), palette.Code(0x20), 0), []byte{0x83, 0x01, 0xE9, 0x06, 0x00, 0x22, 0x0F, 0x9F, 0x80, 0xB0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("got % X\n\twant % X", tt.got, tt.want)
			}
		})
	}
}

func TestManufacturerData(t *testing.T) {
	id, data := ManufacturerData(Preset(palette.Red, 0))
	if id != CompanyID {
		t.Errorf("expected company id %#x, got %#x", CompanyID, id)
	}
	if !bytes.Equal(data, []byte{0xE9, 0x05, 0x00, 0x2E, 0x0E, 0xF5, 0xB0}) {
		t.Errorf("prefix not stripped: % X", data)
	}
	if _, data := ManufacturerData(Ping()); !bytes.Equal(data, Ping()) {
		t.Errorf("ping should be sent whole, got % X", data)
	}
}

type fakeAdvertiser struct {
	mu         sync.Mutex
	enableErrs int
	advertised [][]byte
	stops      int
	advErr     error
}

func (f *fakeAdvertiser) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enableErrs > 0 {
		f.enableErrs--
		return errors.New("adapter busy")
	}
	return nil
}

func (f *fakeAdvertiser) Advertise(companyID uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advErr != nil {
		return f.advErr
	}
	f.advertised = append(f.advertised, append([]byte(nil), data...))
	return nil
}

func (f *fakeAdvertiser) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func TestBroadcasterRun(t *testing.T) {
	adv := &fakeAdvertiser{enableErrs: 1}
	b := NewBroadcaster(adv, Options{Hold: time.Millisecond, RetryDelay: time.Millisecond, QueueSize: 4})

	sent := make(chan []byte, 4)
	b.OnSent(func(p []byte) { sent <- p })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	if err := b.Broadcast(Ping()); err != nil {
		t.Fatal(err)
	}
	if err := b.Broadcast(Circle(0)); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("packet %d was not broadcast", i)
		}
	}

	adv.mu.Lock()
	defer adv.mu.Unlock()
	if len(adv.advertised) != 2 {
		t.Fatalf("expected 2 advertisements, got %d", len(adv.advertised))
	}
	if !bytes.Equal(adv.advertised[1], Circle(0)[2:]) {
		t.Errorf("unexpected advertisement % X", adv.advertised[1])
	}
	if adv.stops < 4 {
		t.Errorf("expected the radio to be stopped around every packet, got %d stops", adv.stops)
	}
}

func TestBroadcastQueueFull(t *testing.T) {
	b := NewBroadcaster(&fakeAdvertiser{}, Options{QueueSize: 1})
	if err := b.Broadcast(Ping()); err != nil {
		t.Fatal(err)
	}
	if err := b.Broadcast(Ping()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}
