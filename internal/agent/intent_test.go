package agent

import (
	"testing"
	"time"
)

func TestParseIntentGoto(t *testing.T) {
	intent, err := ParseIntent(map[string]any{
		"action": "GoTo",
		"x":      1.5,
		"z":      -2,
	})
	if err != nil {
		t.Fatalf("ParseIntent error: %v", err)
	}
	if intent.Action != IntentGoto {
		t.Fatalf("action=%q want goto", intent.Action)
	}
	if intent.Float("x") != 1.5 || intent.Float("z") != -2 {
		t.Fatalf("unexpected params: %+v", intent.Params)
	}
}

func TestParseIntentGotoStringCoordinates(t *testing.T) {
	intent, err := ParseIntent(map[string]any{"action": "goto", "x": "3", "z": " 4.25 "})
	if err != nil {
		t.Fatalf("ParseIntent error: %v", err)
	}
	if intent.Float("x") != 3 || intent.Float("z") != 4.25 {
		t.Fatalf("unexpected params: %+v", intent.Params)
	}
}

func TestParseIntentWander(t *testing.T) {
	intent, err := ParseIntent(map[string]any{
		"action":       "wander",
		"interval_ms":  250,
		"duration_ms":  -1,
		"max_distance": 3.5,
	})
	if err != nil {
		t.Fatalf("ParseIntent error: %v", err)
	}
	if intent.Duration("interval_ms") != 250*time.Millisecond {
		t.Fatalf("interval=%v want 250ms", intent.Duration("interval_ms"))
	}
	if intent.Duration("duration_ms") != -time.Millisecond {
		t.Fatalf("duration=%v want -1ms", intent.Duration("duration_ms"))
	}
	if intent.Float("max_distance") != 3.5 {
		t.Fatalf("max_distance=%v want 3.5", intent.Float("max_distance"))
	}
}

func TestParseIntentWanderNegativeInterval(t *testing.T) {
	_, err := ParseIntent(map[string]any{"action": "wander", "interval_ms": -5})
	if err == nil {
		t.Fatal("expected interval range error")
	}
}

func TestParseIntentPerformEntityID(t *testing.T) {
	intent, err := ParseIntent(map[string]any{"action": "perform", "entity_id": 42.0})
	if err != nil {
		t.Fatalf("ParseIntent error: %v", err)
	}
	if intent.String("entity_id") != "42" {
		t.Fatalf("entity_id=%q want 42", intent.String("entity_id"))
	}

	intent, err = ParseIntent(map[string]any{"action": "perform"})
	if err != nil {
		t.Fatalf("ParseIntent error: %v", err)
	}
	if intent.String("entity_id") != "" {
		t.Fatalf("entity_id=%q want empty", intent.String("entity_id"))
	}
}

func TestParseIntentMissingField(t *testing.T) {
	_, err := ParseIntent(map[string]any{"action": "goto", "x": 1})
	if err == nil {
		t.Fatal("expected error for missing z")
	}
}

func TestParseIntentUnknownAction(t *testing.T) {
	_, err := ParseIntent(map[string]any{"action": "dance"})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseIntentNil(t *testing.T) {
	if _, err := ParseIntent(nil); err == nil {
		t.Fatal("expected error for nil input")
	}
	if _, err := ParseIntent(map[string]any{}); err == nil {
		t.Fatal("expected error for missing action")
	}
}
