package server

import "context"

// Plugin hooks into the lifecycle of a Server. The plugins of a Server are invoked one after
// another in the order of Config.Plugins.
type Plugin interface {
	// OnStart is called after the executor was started and before the address is bound.
	// An error fails Start.
	OnStart(ctx context.Context) error
	// OnDrain is called as the last step of Shutdown.
	OnDrain(ctx context.Context) error
}

// PluginFuncs adapts functions to a Plugin. Nil functions are skipped.
type PluginFuncs struct {
	Start func(ctx context.Context) error
	Drain func(ctx context.Context) error
}

func (p PluginFuncs) OnStart(ctx context.Context) error {
	if p.Start == nil {
		return nil
	}
	return p.Start(ctx)
}

func (p PluginFuncs) OnDrain(ctx context.Context) error {
	if p.Drain == nil {
		return nil
	}
	return p.Drain(ctx)
}
