package main

import (
	"testing"

	"github.com/yoockh/livecoach/config"
)

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("Find(%s) = %v, %v", name, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatal("missing --config flag")
	}
}

func TestLiveConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Live.WindowSize = 4
	cfg.Media.ScratchDir = "/var/tmp/livecoach"
	cfg.Google.EmotionBaseURL = "https://clips.example.com"

	lc := liveConfig(&cfg)
	if lc.WindowSize != 4 || lc.ScratchDir != "/var/tmp/livecoach" || lc.EmotionBaseURL != "https://clips.example.com" {
		t.Fatalf("live config = %+v", lc)
	}
	if lc.ObjectPrefix != "session_chunks" || lc.DrainTimeout != cfg.Live.DrainTimeout || len(lc.Rooms) != 3 {
		t.Fatalf("live config = %+v", lc)
	}
}
