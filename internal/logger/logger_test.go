package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":        logrus.InfoLevel,
		"trace":   logrus.TraceLevel,
		" DEBUG ": logrus.DebugLevel,
		"warning": logrus.WarnLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFallsBackToEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if got := New("").GetLevel(); got != logrus.DebugLevel {
		t.Fatalf("level = %v, want debug", got)
	}
	if got := New("error").GetLevel(); got != logrus.ErrorLevel {
		t.Fatalf("explicit level = %v, want error", got)
	}
}
