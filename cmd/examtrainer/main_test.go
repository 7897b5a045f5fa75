package main

import (
	"context"
	"testing"

	"github.com/spf13/viper"

	"github.com/pavelanni/examtrainer/internal/scoring"
)

func TestNewScorer(t *testing.T) {
	v := viper.New()
	v.Set("scorer", "http")
	v.Set("scorer-url", "http://scorer.local")
	v.Set("scorer-rps", 2.0)

	s, err := newScorer(context.Background(), v)
	if err != nil {
		t.Fatalf("newScorer(http): %v", err)
	}
	if _, ok := s.(*scoring.HTTPScorer); !ok {
		t.Errorf("newScorer(http) = %T, want *scoring.HTTPScorer", s)
	}

	v.Set("scorer", "carrier-pigeon")
	if _, err := newScorer(context.Background(), v); err == nil {
		t.Error("expected error for unknown scorer")
	}
}

func TestRootCommandDefaultsToServe(t *testing.T) {
	root := rootCmd()
	if root.RunE == nil {
		t.Fatal("root command should run serve by default")
	}
	for _, name := range []string{"addr", "db", "source-url", "scorer", "exam-duration", "lang"} {
		if root.Flags().Lookup(name) == nil {
			t.Errorf("root command missing flag %q", name)
		}
	}
	export, _, err := root.Find([]string{"export"})
	if err != nil || export.Name() != "export" {
		t.Errorf("export subcommand not found: %v", err)
	}
}
