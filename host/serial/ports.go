package serial

import (
	"fmt"
	"sort"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// Label returns a one-line description for port menus
func (p PortInfo) Label() string {
	if !p.IsUSB {
		return p.Name
	}
	if p.Product != "" {
		return fmt.Sprintf("%s (%s, %s:%s)", p.Name, p.Product, p.VID, p.PID)
	}
	return fmt.Sprintf("%s (%s:%s)", p.Name, p.VID, p.PID)
}

// ListPorts enumerates the serial ports available on the host, sorted by name.
// When USB details cannot be read the plain port list is returned instead.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		ports := make([]PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, PortInfo{
				Name:    d.Name,
				IsUSB:   d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			})
		}
		sortPorts(ports)
		return ports, nil
	}

	names, listErr := bugst.GetPortsList()
	if listErr != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", listErr)
	}
	ports := make([]PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, PortInfo{Name: name})
	}
	sortPorts(ports)
	return ports, nil
}

func sortPorts(ports []PortInfo) {
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
}
