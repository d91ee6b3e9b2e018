package worldtest

import (
	"context"
	"sync"

	"minepilot.ai/internal/world"
)

// Dialer hands out the same World on every dial and counts handshakes.
type Dialer struct {
	World *World

	mu    sync.Mutex
	dials int
	last  world.DialOptions

	// Fail makes Dial return this error.
	Fail error
	// HandshakeError makes the world report an error instead of spawning.
	HandshakeError string
	// HoldSpawn keeps the handshake pending until Spawn is called.
	HoldSpawn bool
}

func NewDialer(w *World) *Dialer {
	return &Dialer{World: w}
}

func (d *Dialer) Dial(ctx context.Context, opts world.DialOptions) (world.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.last = opts
	fail, handshakeErr, hold := d.Fail, d.HandshakeError, d.HoldSpawn
	d.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	d.World.reopen()
	switch {
	case handshakeErr != "":
		d.World.Emit(world.Event{Kind: world.EventError, Reason: handshakeErr})
	case !hold:
		d.World.Emit(world.Event{Kind: world.EventSpawned})
	}
	return d.World, nil
}

// Spawn completes a held handshake.
func (d *Dialer) Spawn() {
	d.World.Emit(world.Event{Kind: world.EventSpawned})
}

func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *Dialer) LastOptions() world.DialOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
