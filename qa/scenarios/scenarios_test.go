package scenarios

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/core/model"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob("*.yaml")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenario files")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestLoad_SingleTrack(t *testing.T) {
	sc, err := Load("single_track.yaml")
	require.NoError(t, err)

	snap := sc.Snapshot()
	assert.Equal(t, DefaultStart, snap.Timestamp)
	ic, ok := snap.Train("ic101")
	require.True(t, ok)
	assert.Equal(t, DefaultStart.Add(5*time.Minute), ic.ScheduledEntry)
	s1, ok := snap.Section("s1")
	require.True(t, ok)
	assert.Equal(t, 1, s1.Capacity)
	assert.Equal(t, 2*time.Minute, s1.MinHeadway)

	cs, err := sc.ConflictList()
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, model.SeverityHigh, cs[0].Severity)
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	tmp, err := os.CreateTemp(t.TempDir(), "bad*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmp.WriteString(":"); err != nil {
		t.Fatal(err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmp.Name()); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestConflictDef_BadSeverity(t *testing.T) {
	sc := &Scenario{Name: "x", Conflicts: []ConflictDef{{ID: "c", Trains: []string{"a"}, Sections: []string{"s"}, Severity: "apocalyptic"}}}
	_, err := sc.ConflictList()
	assert.Error(t, err)
}
