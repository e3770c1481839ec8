package registry

import (
	"sort"

	"github.com/Ko-stant/tilewall/internal/protocol"
)

func clientStatuses(clients []*ClientInfo) []protocol.ClientStatus {
	out := make([]protocol.ClientStatus, 0, len(clients))
	for _, c := range clients {
		out = append(out, protocol.ClientStatus{ID: string(c.ID), Rect: c.Rect})
	}
	return out
}

// Status summarizes the wall, its clients and module channels, and the
// recent errors.
func (r *Registry) Status() protocol.StatusSnapshot {
	geo := r.walls.Snapshot()
	modules := r.Modules()
	sort.Slice(modules, func(i, j int) bool { return modules[i].ID < modules[j].ID })

	snap := protocol.StatusSnapshot{
		Extents: geo.Derived.Extents,
		XScale:  geo.XScale,
		YScale:  geo.YScale,
		Screens: len(geo.Grid.Screens()),
		Regions: geo.Grid.RegionsCount,
		Clients: clientStatuses(r.Clients()),
		Modules: make([]protocol.ModuleStatus, 0, len(modules)),
		Errors:  r.errors.Recent(),
	}
	for _, m := range modules {
		snap.Modules = append(snap.Modules, protocol.ModuleStatus{
			ID:        string(m.ID),
			Namespace: m.Namespace,
			Clients:   clientStatuses(m.Clients()),
		})
	}
	return snap
}
