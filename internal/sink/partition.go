package sink

import (
	"errors"
	"sync"

	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
)

// Channel names the host channel a prop is applied on.
type Channel string

const (
	ChannelUI     Channel = "ui"
	ChannelNative Channel = "native"
	ChannelJS     Channel = "js"
)

// Partition splits each bundle by prop name. Keys listed as UI props go to
// the UI sink, native props to the native sink and everything else to the JS
// sink. Empty partitions are not forwarded.
type Partition struct {
	mu     sync.RWMutex
	ui     map[string]struct{}
	native map[string]struct{}

	sinks map[Channel]graph.HostSink
}

// NewPartition creates a partition with the given routing and downstream
// sinks. A nil downstream sink drops its channel.
func NewPartition(cfg ir.PropsConfig, ui, native, js graph.HostSink) *Partition {
	p := &Partition{
		sinks: map[Channel]graph.HostSink{
			ChannelUI:     orDiscard(ui),
			ChannelNative: orDiscard(native),
			ChannelJS:     orDiscard(js),
		},
	}
	p.ConfigureProps(cfg.UI, cfg.Native)
	return p
}

// ConfigureProps replaces the UI and native prop name lists.
func (p *Partition) ConfigureProps(ui, native []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ui = toSet(ui)
	p.native = toSet(native)
}

// ChannelOf reports which channel key is routed to.
func (p *Partition) ChannelOf(key string) Channel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.ui[key]; ok {
		return ChannelUI
	}
	if _, ok := p.native[key]; ok {
		return ChannelNative
	}
	return ChannelJS
}

// ApplyUpdate splits props and forwards each non-empty part, UI first.
func (p *Partition) ApplyUpdate(view ir.ViewTag, props ir.Bundle) error {
	parts := map[Channel]ir.Bundle{}
	for _, k := range props.SortedKeys() {
		ch := p.ChannelOf(k)
		if parts[ch] == nil {
			parts[ch] = ir.Bundle{}
		}
		parts[ch][k] = props[k]
	}

	var errs []error
	for _, ch := range []Channel{ChannelUI, ChannelNative, ChannelJS} {
		part, ok := parts[ch]
		if !ok {
			continue
		}
		if err := p.sinks[ch].ApplyUpdate(view, part); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func orDiscard(s graph.HostSink) graph.HostSink {
	if s == nil {
		return graph.Discard
	}
	return s
}
