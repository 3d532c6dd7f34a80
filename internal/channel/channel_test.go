package channel

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolveMergePrecedence(t *testing.T) {
	t.Parallel()
	def := Channel{ID: "default", Name: "Default", PlaySound: Bool(true), Sound: "ping"}

	tests := []struct {
		name      string
		ch        Channel
		wantSound bool
	}{
		{name: "nil inherits default", ch: Channel{ID: "a"}, wantSound: true},
		{name: "explicit false wins over default", ch: Channel{ID: "a", PlaySound: Bool(false)}, wantSound: false},
		{name: "explicit true kept", ch: Channel{ID: "a", PlaySound: Bool(true)}, wantSound: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			eff := Resolve(def, []Channel{tt.ch}, "a")
			if eff.PlaySound != tt.wantSound {
				t.Fatalf("PlaySound = %v, want %v", eff.PlaySound, tt.wantSound)
			}
		})
	}
}

func TestResolveBaselines(t *testing.T) {
	t.Parallel()
	// Default channel with everything unset: baselines apply.
	eff := Resolve(Channel{ID: "default"}, nil, "default")
	if !eff.PlaySound || !eff.ShowBadge || !eff.EnableVibration {
		t.Fatalf("sound/badge/vibration baselines should be true: %+v", eff)
	}
	if eff.EnableLights {
		t.Fatal("lights baseline should be false")
	}
	if eff.Importance != ImportanceDefault {
		t.Fatalf("Importance = %q, want default", eff.Importance)
	}
}

func TestResolveUnknownFallsBack(t *testing.T) {
	t.Parallel()
	def := Channel{ID: "default", Name: "Default", Importance: ImportanceLow}
	// Unknown names must never fail; they resolve to the default channel.
	eff := Resolve(def, []Channel{{ID: "known"}}, "does-not-exist")
	if eff.ID != "default" {
		t.Fatalf("ID = %q, want default channel", eff.ID)
	}
	if eff.Importance != ImportanceLow {
		t.Fatalf("Importance = %q, want low", eff.Importance)
	}
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()
	def := Channel{ID: "default", PlaySound: Bool(true), LEDColor: Color(0xFF00FF00)}
	chs := []Channel{{ID: "promo", ShowBadge: Bool(false), Importance: ImportanceMax}}

	a := Resolve(def, chs, "promo")
	b := Resolve(def, chs, "promo")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("resolution not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestResolveFieldMerge(t *testing.T) {
	t.Parallel()
	def := Channel{
		ID: "default", Name: "Default", GroupID: "g0",
		Sound: "ping", LEDColor: Color(0x00FF0000), Importance: ImportanceLow,
	}
	ch := Channel{ID: "promo", Importance: ImportanceHigh, EnableLights: Bool(true)}

	eff := Resolve(def, []Channel{ch}, "promo")
	if eff.Importance != ImportanceHigh {
		t.Fatalf("specific importance should win: %q", eff.Importance)
	}
	if eff.Sound != "ping" || eff.GroupID != "g0" || eff.LEDColor != 0x00FF0000 {
		t.Fatalf("unset fields should inherit from default: %+v", eff)
	}
	if !eff.EnableLights {
		t.Fatal("specific lights should win")
	}
}

func TestOverride(t *testing.T) {
	t.Parallel()
	eff := Resolve(Channel{ID: "default", PlaySound: Bool(true)}, nil, "default")

	over := eff.Override(ImportanceMax, Bool(false))
	if over.Importance != ImportanceMax || over.PlaySound {
		t.Fatalf("message overrides should win: %+v", over)
	}

	// No overrides: unchanged.
	same := eff.Override("", nil)
	if !reflect.DeepEqual(same, eff) {
		t.Fatal("empty override must not change the effective channel")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	def := Channel{ID: "default"}

	if err := Validate(def, []Channel{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(def, []Channel{{ID: "a"}, {ID: "a"}}); !errors.Is(err, ErrSetup) {
		t.Fatalf("duplicate id: err = %v, want ErrSetup", err)
	}
	if err := Validate(def, []Channel{{ID: " "}}); !errors.Is(err, ErrSetup) {
		t.Fatalf("empty id: err = %v, want ErrSetup", err)
	}
	if err := Validate(Channel{}, nil); !errors.Is(err, ErrSetup) {
		t.Fatalf("default without id: err = %v, want ErrSetup", err)
	}
}
