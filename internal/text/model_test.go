package text

import (
	"strings"
	"testing"
)

// firstChoice always picks the first candidate, making walks deterministic.
func firstChoice(int) int { return 0 }

func TestModel_EmptyModelNeverGenerates(t *testing.T) {
	t.Parallel()

	m := NewModel()
	if got, ok := m.Generate(5); ok {
		t.Errorf("expected failure on empty model, got %q", got)
	}
}

func TestModel_GenerateFromSingleSentence(t *testing.T) {
	t.Parallel()

	m := NewModel(WithRand(firstChoice))
	m.Rebuild([]string{"the cat sat on the mat."})

	got, ok := m.Generate(DefaultMaxAttempts)
	if !ok {
		t.Fatal("expected generation to succeed")
	}
	if got != "the cat sat on the mat." {
		t.Errorf("got %q", got)
	}
}

func TestModel_GenerateWithStart(t *testing.T) {
	t.Parallel()

	m := NewModel(WithRand(firstChoice))
	m.Rebuild([]string{
		"the cat sat on the mat.",
		"the cat ate all the fish.",
		"a dog barked at the moon.",
	})

	got, ok := m.GenerateWithStart("the cat", DefaultMaxAttempts)
	if !ok {
		t.Fatal("expected seeded generation to succeed")
	}
	if !strings.HasPrefix(got, "the cat ") {
		t.Errorf("generated sentence %q does not start with seed", got)
	}
}

func TestModel_GenerateWithStart_UnknownSeed(t *testing.T) {
	t.Parallel()

	m := NewModel()
	m.Rebuild([]string{"a dog barked at the moon."})

	if got, ok := m.GenerateWithStart("the cat", DefaultMaxAttempts); ok {
		t.Errorf("expected failure for unknown seed, got %q", got)
	}
}

func TestModel_GenerateWithStart_SingleSeedToken(t *testing.T) {
	t.Parallel()

	m := NewModel(WithRand(firstChoice))
	m.Rebuild([]string{"rain falls on the hills."})

	got, ok := m.GenerateWithStart("rain", DefaultMaxAttempts)
	if !ok {
		t.Fatal("expected seeded generation to succeed")
	}
	if !strings.HasPrefix(got, "rain ") {
		t.Errorf("got %q", got)
	}
}

func TestModel_LengthBoundForcesRetryFailure(t *testing.T) {
	t.Parallel()

	// A self-loop that can never reach the end marker within the budget when
	// the walker always picks the first (looping) candidate.
	var sb strings.Builder
	for range 40 {
		sb.WriteString("loop loop ")
	}
	m := NewModel(WithRand(firstChoice))
	m.Rebuild([]string{sb.String()})

	if got, ok := m.Generate(3); ok {
		t.Errorf("expected walk to exceed length budget and fail, got %q", got)
	}
}

func TestModel_RebuildReplacesCorpus(t *testing.T) {
	t.Parallel()

	m := NewModel(WithRand(firstChoice))
	m.Rebuild([]string{"old corpus sentence here."})
	m.Rebuild([]string{"fresh corpus sentence instead."})

	got, ok := m.Generate(DefaultMaxAttempts)
	if !ok {
		t.Fatal("expected generation to succeed")
	}
	if strings.Contains(got, "old") {
		t.Errorf("generation used stale chain: %q", got)
	}
}

func TestModel_RebuildEmptyCorpusDisablesGeneration(t *testing.T) {
	t.Parallel()

	m := NewModel()
	m.Rebuild([]string{"something to say here."})
	m.Rebuild(nil)

	if got, ok := m.Generate(5); ok {
		t.Errorf("expected failure after rebuilding with empty corpus, got %q", got)
	}
}

func TestModel_ConcurrentGenerateDuringRebuild(t *testing.T) {
	t.Parallel()

	m := NewModel()
	m.Rebuild([]string{"the quick brown fox jumps over the lazy dog."})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			m.Rebuild([]string{"the quick brown fox jumps over the lazy dog."})
		}
	}()

	for range 200 {
		if _, ok := m.Generate(DefaultMaxAttempts); !ok {
			t.Error("generation failed during rebuild")
			break
		}
	}
	<-done
}
