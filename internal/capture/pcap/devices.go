package pcap

import (
	"fmt"

	"github.com/google/gopacket/pcap"
)

// Device describes a capture interface.
type Device struct {
	Name        string
	Description string
	Addresses   []string
	Loopback    bool
}

// ListDevices returns all available capture interfaces.
func ListDevices() ([]Device, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	out := make([]Device, 0, len(devs))
	for _, d := range devs {
		out = append(out, toDevice(d))
	}
	return out, nil
}

// DefaultDevice returns the first non-loopback interface that has an address.
func DefaultDevice() (string, error) {
	devs, err := ListDevices()
	if err != nil {
		return "", err
	}
	if name, ok := pickDefault(devs); ok {
		return name, nil
	}
	return "", fmt.Errorf("no capture device with an address found; set capture.device")
}

func pickDefault(devs []Device) (string, bool) {
	for _, d := range devs {
		if !d.Loopback && len(d.Addresses) > 0 {
			return d.Name, true
		}
	}
	return "", false
}

func toDevice(d pcap.Interface) Device {
	dev := Device{
		Name:        d.Name,
		Description: d.Description,
		Loopback:    d.Flags&pcapIfLoopback != 0,
	}
	for _, addr := range d.Addresses {
		dev.Addresses = append(dev.Addresses, addr.IP.String())
	}
	return dev
}

// PCAP_IF_LOOPBACK
const pcapIfLoopback = 0x00000001
