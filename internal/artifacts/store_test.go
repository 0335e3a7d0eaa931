package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"qatriage/internal/assistant"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type note struct {
	N    int    `json:"n"`
	Text string `json:"text"`
}

func TestStore_CreatesDirectoryOnFirstAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "notes.json")
	s := NewStore[note](path)

	require.NoError(t, s.Append(context.Background(), note{N: 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []note
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []note{{N: 1}}, got)
}

func TestStore_SequentialAppendsPreserveOrder(t *testing.T) {
	s := NewStore[note](filepath.Join(t.TempDir(), "notes.json"))
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, note{N: 1, Text: "R1"}))
	require.NoError(t, s.Append(ctx, note{N: 2, Text: "R2"}))

	got, err := s.Load()
	require.NoError(t, err)
	if diff := cmp.Diff([]note{{1, "R1"}, {2, "R2"}}, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	got, err := NewStore[note](filepath.Join(dir, "absent.json")).Load()
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	got, err = NewStore[note](empty).Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_CorruptFileIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	fixed := time.Unix(1700000000, 42)
	s := NewStore[note](path, WithClock(func() time.Time { return fixed }))

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrCorruptStore), "Load should report corruption, got %v", err)
	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))

	require.NoError(t, s.Append(context.Background(), note{N: 7}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []note{{N: 7}}, got)

	quarantined := fmt.Sprintf("%s.corrupt-%d", path, fixed.UnixNano())
	data, err := os.ReadFile(quarantined)
	require.NoError(t, err, "corrupt file should be preserved aside")
	assert.Equal(t, "not json", string(data))
}

func TestStore_NonArrayJSONIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"n":1}`), 0644))
	s := NewStore[note](path)

	require.NoError(t, s.Append(context.Background(), note{N: 2}))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []note{{N: 2}}, got)
}

func TestStore_AppendLeavesExistingRecordsUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bug-reports.json")
	legacy := `{"testId":"login","title":"[AI Draft] login","severity":"High","reviewedBy":"alice","createdAt":"2025-01-02T03:04:05.000Z"}`
	require.NoError(t, os.WriteFile(path, []byte("[\n  "+legacy+"\n]\n"), 0644))

	s := BugReports(path)
	rec := NewBugReportRecord("checkout", "", assistant.BugReportDraft{Title: "[AI Draft] checkout"}, time.Now())
	require.NoError(t, s.Append(context.Background(), rec))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, legacy, string(raw[0]))

	var first map[string]any
	require.NoError(t, json.Unmarshal(raw[0], &first))
	assert.NotContains(t, first, "id")
	assert.NotContains(t, first, "attachments")
	assert.Equal(t, "alice", first["reviewedBy"])

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "login", got[0].TestID)
	assert.Equal(t, rec.ID, got[1].ID)
}

func TestStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	const n = 40

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Separate Store values share the per-path lock and the lock file.
			errs <- NewStore[note](path).Append(context.Background(), note{N: i})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := NewStore[note](path).Load()
	require.NoError(t, err)
	require.Len(t, got, n)

	seen := make(map[int]bool, n)
	for _, r := range got {
		seen[r.N] = true
	}
	assert.Len(t, seen, n)
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := NewStore[note](filepath.Join(dir, "notes.json"))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(context.Background(), note{N: i}))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "notes.json.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_AppendHonorsCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	s := NewStore[note](path, WithLockTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The lock is free, so a cancelled context may still win the first try;
	// either way nothing may be half-written.
	err := s.Append(ctx, note{N: 1})
	got, lerr := s.Load()
	require.NoError(t, lerr)
	if err != nil {
		var pe *PersistenceError
		assert.True(t, errors.As(err, &pe))
		assert.Empty(t, got)
	} else {
		assert.Len(t, got, 1)
	}
}

func TestRecords_JSONShape(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	draft := assistant.BugReportDraft{
		Title:    assistant.TitlePrefix + "t",
		Severity: assistant.SeverityLow,
	}
	rec := NewBugReportRecord("pkg.TestLogin", "https://example.com", draft, now)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"id", "testId", "title", "description", "stepsToReproduce", "expectedResult",
		"actualResult", "severity", "environment", "attachments", "url", "createdAt"} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, []any{}, m["stepsToReproduce"])
	assert.Equal(t, "2024-05-01T11:00:00Z", m["createdAt"])

	fix := NewFixSuggestionRecord("pkg.TestLogin",
		assistant.FailedTestContext{TestName: "t", TestFilePath: "login_test.go"},
		assistant.TestFixSuggestion{Description: "d", SuggestedChanges: "c", Confidence: assistant.ConfidenceHigh}, now)
	data, err = json.Marshal(fix)
	require.NoError(t, err)
	m = nil
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"id", "testId", "testName", "testFile", "url", "description", "suggestedChanges", "confidence", "createdAt"} {
		assert.Contains(t, m, key)
	}
	assert.NotEqual(t, rec.ID, fix.ID)
}
