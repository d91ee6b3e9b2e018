package behavior

import "time"

const (
	NameAutoEat     = "auto_eat"
	NameGuard       = "guard"
	NameAutoCollect = "auto_collect"
	NameAutoFollow  = "auto_follow"
	NamePatrol      = "patrol"
)

// Builtins returns fresh definitions of the built-in behaviors. Each call
// gets its own per-definition state (the eat guard), so separate registries
// do not share it.
func Builtins() []Definition {
	return []Definition{
		autoEat(2*time.Second, 3*time.Second),
		guard(500 * time.Millisecond),
		autoCollect(3*time.Second, 15*time.Second),
		autoFollow(time.Second),
		patrol(3*time.Second, 20*time.Second),
	}
}
