package world

import "context"

type DialOptions struct {
	Host        string
	Port        int
	Username    string
	Version     string
	ResumeToken string
}

// Dialer opens a world session. The returned Conn reports EventSpawned once
// the avatar is in the world, or EventError/EventEnded if the handshake fails.
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Conn, error)
}

// Conn is one live game session. Events is closed when the session is gone.
// Commands issued after that fail with fault.ErrNotConnected.
type Conn interface {
	Events() <-chan Event
	Telemetry() Telemetry

	Chat(ctx context.Context, message string) error
	SetMovements(ctx context.Context, opts MovementOptions) error
	SetGoal(ctx context.Context, goal Goal, continuous bool) error
	StopNavigation(ctx context.Context) error

	// BlockAt reports ok=false when the position is not loaded.
	BlockAt(ctx context.Context, pos Vec3) (Block, bool, error)
	FindBlocks(ctx context.Context, q BlockQuery) ([]Vec3, error)
	Entities(ctx context.Context) ([]Entity, error)
	Inventory(ctx context.Context) ([]ItemStack, error)

	Dig(ctx context.Context, pos Vec3) error
	Place(ctx context.Context, ref Vec3, face Vec3) error
	Equip(ctx context.Context, item string, destination string) error
	Toss(ctx context.Context, item string, count int) error
	ActivateItem(ctx context.Context) error
	DeactivateItem(ctx context.Context) error
	Attack(ctx context.Context, entityID int) error

	// Recipes lists recipes for item that are craftable right now. A nil
	// station restricts the lookup to the 2x2 inventory grid.
	Recipes(ctx context.Context, item string, count int, station *Vec3) ([]Recipe, error)
	Craft(ctx context.Context, recipe Recipe, count int, station *Vec3) error

	Close() error
}

// Resumable is implemented by connections that can hand out a token for
// resuming the same game session on a later dial.
type Resumable interface {
	ResumeToken() string
}
