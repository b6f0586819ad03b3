package ble

import (
	"time"

	"tinygo.org/x/bluetooth"
)

// Adapter advertises through the host Bluetooth adapter.
type Adapter struct {
	adapter   *bluetooth.Adapter
	adv       *bluetooth.Advertisement
	localName string
	interval  time.Duration
}

// NewAdapter wraps the default Bluetooth adapter.
func NewAdapter(localName string, interval time.Duration) *Adapter {
	return &Adapter{
		adapter:   bluetooth.DefaultAdapter,
		localName: localName,
		interval:  interval,
	}
}

// Enable powers the adapter and grabs its advertisement slot.
func (a *Adapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}
	a.adv = a.adapter.DefaultAdvertisement()
	return nil
}

// Advertise configures the manufacturer data and starts advertising.
func (a *Adapter) Advertise(companyID uint16, data []byte) error {
	opts := bluetooth.AdvertisementOptions{
		LocalName: a.localName,
		ManufacturerData: []bluetooth.ManufacturerDataElement{
			{CompanyID: companyID, Data: data},
		},
	}
	if a.interval > 0 {
		opts.Interval = bluetooth.NewDuration(a.interval)
	}
	if err := a.adv.Configure(opts); err != nil {
		return err
	}
	return a.adv.Start()
}

// Stop stops advertising. It is a no-op before Enable.
func (a *Adapter) Stop() error {
	if a.adv == nil {
		return nil
	}
	return a.adv.Stop()
}
