// Package robot assembles a controller from a configuration file: it opens
// the backends, builds the Brain and creates a named handle for every
// configured device.
package robot

import (
	"sort"

	"github.com/gwillem/smartport/pkg/port"
)

// DeviceInfo describes one configured device.
type DeviceInfo struct {
	Name string
	Kind port.DeviceType
	Port port.Index
}

// Names returns the configured device names ordered by port, then name.
func (r *Robot) Names() []string {
	infos := r.Devices()
	names := make([]string, len(infos))
	for i, d := range infos {
		names[i] = d.Name
	}
	return names
}

// Devices lists the configured devices ordered by port, then name.
func (r *Robot) Devices() []DeviceInfo {
	out := make([]DeviceInfo, 0, len(r.cfg.Devices))
	for _, d := range r.cfg.Devices {
		kind, _ := port.ParseDeviceType(d.Kind)
		out = append(out, DeviceInfo{Name: d.Name, Kind: kind, Port: d.Port})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].Name < out[j].Name
	})
	return out
}
