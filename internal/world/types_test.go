package world

import (
	"encoding/json"
	"testing"
)

func TestVec3_UnmarshalAcceptsObjectAndArray(t *testing.T) {
	var got []Vec3
	if err := json.Unmarshal([]byte(`[{"x":1,"y":64,"z":-2},[10,64,0]]`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 || got[0] != V(1, 64, -2) || got[1] != V(10, 64, 0) {
		t.Fatalf("unexpected vectors: %+v", got)
	}
	var bad Vec3
	if err := json.Unmarshal([]byte(`[1,2]`), &bad); err == nil {
		t.Fatalf("expected error for short array")
	}
}

func TestVec3_DistanceAndFloor(t *testing.T) {
	a := V(0.5, 64.9, -0.5)
	if f := a.Floored(); f != V(0, 64, -1) {
		t.Fatalf("floored: %v", f)
	}
	if d := V(0, 0, 0).Distance(V(3, 4, 0)); d != 5 {
		t.Fatalf("distance: %v", d)
	}
}

func TestBlock_IsAir(t *testing.T) {
	for _, name := range []string{"", "air", "cave_air", "void_air"} {
		if !(Block{Name: name}).IsAir() {
			t.Fatalf("expected %q to be air", name)
		}
	}
	if (Block{Name: "oak_log"}).IsAir() {
		t.Fatalf("oak_log is not air")
	}
}

func TestGoalFollow_KeepsEntityZero(t *testing.T) {
	b, err := json.Marshal(GoalFollow(0, 2))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	id, ok := m["entity_id"]
	if !ok || id != float64(0) {
		t.Fatalf("entity_id 0 must be sent, got %s", b)
	}
	if m["kind"] != string(GoalKindFollow) || m["range"] != float64(2) {
		t.Fatalf("unexpected goal %s", b)
	}
}
