package util

import (
	"github.com/spf13/viper"
	"strings"
	"testing"
	"time"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line exceeds %d characters: %q", Wrap, line)
		}
	}

	if got := WrapString("  short   text "); got != "short text" {
		t.Errorf("expected 'short text', got %q", got)
	}
}

func TestGetSerializer(t *testing.T) {
	defer viper.Reset()

	for _, name := range []string{"proto", "json", "gob"} {
		viper.Set("serializer", name)
		s, err := GetSerializer()
		if err != nil {
			t.Fatalf("serializer %s: %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("expected %s, got %s", name, s.Name())
		}
	}

	viper.Set("serializer", "binary")
	if _, err := GetSerializer(); err == nil {
		t.Error("expected an error for an unknown serializer")
	}
}

func TestGetMillis(t *testing.T) {
	defer viper.Reset()

	viper.Set("write-timeout", 250)
	if got := GetMillis("write-timeout"); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", got)
	}
}
