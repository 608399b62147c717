package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qmailtrail/internal/logline"
	"github.com/roach88/qmailtrail/internal/store"
	"github.com/roach88/qmailtrail/internal/testutil"
)

// recorder collects warnings in order.
type recorder struct {
	warnings []Warning
}

func (r *recorder) Report(w Warning) {
	r.warnings = append(r.warnings, w)
}

func (r *recorder) codes() []WarningCode {
	codes := make([]WarningCode, 0, len(r.warnings))
	for _, w := range r.warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, st *store.Store, opts ...Option) (*Engine, *bytes.Buffer, *recorder) {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	t.Cleanup(func() { st.Close() })

	out := &bytes.Buffer{}
	rec := &recorder{}
	base := []Option{
		WithLocation(time.UTC),
		WithReporter(rec),
		WithLogger(quietLogger()),
		WithRunIDGenerator(FixedGenerator("test-run")),
	}
	return New(st, out, append(base, opts...)...), out, rec
}

func ingestAll(t *testing.T, e *Engine, lines ...string) {
	t.Helper()
	ctx := context.Background()
	for _, line := range lines {
		require.NoError(t, e.Ingest(ctx, line))
	}
}

func outputLines(out *bytes.Buffer) []string {
	s := strings.TrimRight(out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestEngine_New(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	assert.Equal(t, "test-run", e.RunID())
	assert.NotNil(t, e.reporter)
	assert.NotNil(t, e.logger)
}

func TestEngine_New_DefaultRunID(t *testing.T) {
	st := store.NewMemory()
	e := New(st, io.Discard, WithLogger(quietLogger()))
	assert.Len(t, e.RunID(), 36)
	assert.IsType(t, SlogReporter{}, e.reporter)
}

func TestEngine_SingleRemoteDelivery(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)

	ingestAll(t, e,
		"new msg 123",
		"info msg 123: bytes 4500 from <alice@example.com>",
		"starting delivery 1: msg 123 to remote bob@example.org",
		"1700000000.123456 delivery 1: deferred: connection timed out",
		"end msg 123",
	)

	assert.Equal(t, []string{
		"2023-11-14 22:13:20.123456 alice@example.com ==> bob@example.org (ds: deferred)",
	}, outputLines(out))
	assert.Empty(t, rec.warnings)

	_, live, err := e.store.GetMessage(context.Background(), "123")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestEngine_ResultTimeRoundsToMicrosecond(t *testing.T) {
	e, out, _ := newTestEngine(t, nil)

	ingestAll(t, e,
		"starting delivery 1: msg 2 to remote x@example.org",
		"1700000000.1234567 delivery 1: success: ok/",
	)

	assert.Equal(t, []string{
		"2023-11-14 22:13:20.123457 (Unknown) ==> x@example.org (ds: success)",
	}, outputLines(out))
}

func TestEngine_FullLifecycleRemovesMessage(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(123).
		Info(123, 4500, "alice@example.com").
		Start(1, 123, "remote", "bob@example.org").
		Delivery(1, "deferred", "connection timed out").
		End(123)

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	lines := outputLines(out)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "alice@example.com ==> bob@example.org")
	assert.Contains(t, lines[0], "(ds: deferred)")
	assert.Empty(t, rec.warnings)

	_, live, err := e.store.GetMessage(context.Background(), "123")
	require.NoError(t, err)
	assert.False(t, live)

	snap, err := e.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Deliveries)
}

func TestEngine_UnboundResultIsDropped(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)

	ingestAll(t, e, "1700000000.5 delivery 42: success: did_0+0+1/")

	assert.Empty(t, out.String())
	assert.Empty(t, rec.warnings)
	assert.Equal(t, int64(1), e.Stats().Dropped)
}

func TestEngine_DuplicateResultIsDropped(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(1).Info(1, 10, "a@b").Start(5, 1, "local", "c").
		Delivery(5, "success", "ok").
		Delivery(5, "success", "ok again")

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Len(t, outputLines(out), 1)
	assert.Empty(t, rec.warnings)
}

func TestEngine_EmptySenderIsRoot(t *testing.T) {
	e, out, _ := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(7).Info(7, 310, "").
		Start(2, 7, "local", "example.com-postmaster@example.com").
		Delivery(2, "success", "did_0+0+1/")

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Equal(t, []string{
		"2023-11-14 22:13:20 example.com-postmaster@example.com <== (root) (ds: success)",
	}, outputLines(out))
}

func TestEngine_PlaceholderForUnseenMessage(t *testing.T) {
	e, out, rec := newTestEngine(t, nil, WithVerbose(true))
	log := testutil.NewLog().
		Start(3, 55, "remote", "late@example.org").
		Delivery(3, "success", "accepted")

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Equal(t, []string{
		"2023-11-14 22:13:20 (Unknown) ==> late@example.org (s: ?, ds: success, dm: accepted)",
	}, outputLines(out))
	assert.Empty(t, rec.warnings)
}

func TestEngine_DuplicateNewMessage(t *testing.T) {
	e, _, rec := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(9).Info(9, 100, "a@b").
		NewMsg(9)

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	require.Equal(t, []WarningCode{WarnDuplicateMessage}, rec.codes())
	w := rec.warnings[0]
	assert.Equal(t, logline.ID("9"), w.MessageID)
	assert.Equal(t, int64(3), w.LineNo)
	assert.Equal(t, "new msg 9", w.Line)
	require.NotNil(t, w.Prior)
	assert.Equal(t, "a@b", w.Prior.Sender)

	got, live, err := e.store.GetMessage(context.Background(), "9")
	require.NoError(t, err)
	require.True(t, live)
	assert.True(t, got.IsEmpty())
}

func TestEngine_VerboseAndTerseSharePrefix(t *testing.T) {
	log := testutil.NewLog().
		NewMsg(1).Info(1, 4500, "alice@example.com").
		Start(1, 1, "local", "bob").
		Delivery(1, "success", "did_0+0+1/")

	terse, terseOut, _ := newTestEngine(t, nil)
	verbose, verboseOut, _ := newTestEngine(t, nil, WithVerbose(true))
	require.NoError(t, terse.Run(context.Background(), log.Reader()))
	require.NoError(t, verbose.Run(context.Background(), log.Reader()))

	prefix := "2023-11-14 22:13:20 bob <== alice@example.com "
	assert.Equal(t, prefix+"(ds: success)\n", terseOut.String())
	assert.Equal(t, prefix+"(s: 4500, ds: success, dm: did_0+0+1/)\n", verboseOut.String())
}

func TestEngine_InfoWarnings(t *testing.T) {
	e, _, rec := newTestEngine(t, nil)

	ingestAll(t, e,
		"info msg 5: bytes 1 from <a@b>",
		"info msg 5: bytes 2 from <c@d>",
	)

	assert.Equal(t, []WarningCode{WarnInfoOnUnseen, WarnInfoOnPopulated}, rec.codes())
	assert.Nil(t, rec.warnings[0].Prior)
	require.NotNil(t, rec.warnings[1].Prior)
	assert.Equal(t, "a@b", rec.warnings[1].Prior.Sender)

	got, _, err := e.store.GetMessage(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "a@b", got.Sender)
}

func TestEngine_EndOfAbsentMessage(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)

	ingestAll(t, e, "1700000000 end msg 77", "1700000000 end msg 77")

	assert.Equal(t, []WarningCode{WarnRemoveAbsent, WarnRemoveAbsent}, rec.codes())
	assert.Empty(t, out.String())
}

func TestEngine_DeliveryRebound(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(1).Info(1, 1, "a@b").
		NewMsg(2).Info(2, 2, "c@d").
		Start(4, 1, "remote", "x@y").
		Start(4, 2, "remote", "z@w").
		Delivery(4, "success", "ok")

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Equal(t, []WarningCode{WarnDeliveryRebound}, rec.codes())
	assert.Equal(t, logline.ID("1"), rec.warnings[0].MessageID)
	assert.Equal(t, []string{"2023-11-14 22:13:20 c@d ==> z@w (ds: success)"}, outputLines(out))
}

// Deliveries to the same message share one record, so the second start
// overwrites the recipient the first result is reported with.
func TestEngine_FanOutLastWriterWins(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(3).Info(3, 12000, "list@example.net").
		Start(20, 3, "remote", "one@example.org").
		Start(21, 3, "local", "two").
		Delivery(20, "failure", "no host").
		Delivery(21, "success", "did_1+0+0/").
		End(3)

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Equal(t, []string{
		"2023-11-14 22:13:20 two <== list@example.net (ds: failure)",
		"2023-11-14 22:13:21 two <== list@example.net (ds: success)",
	}, outputLines(out))
	assert.Empty(t, rec.warnings)
}

func TestEngine_SequentialFanOut(t *testing.T) {
	e, out, _ := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(3).Info(3, 12000, "list@example.net").
		Start(20, 3, "remote", "one@example.org").
		Delivery(20, "success", "ok").
		Start(21, 3, "local", "two").
		Delivery(21, "success", "ok").
		End(3)

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Equal(t, []string{
		"2023-11-14 22:13:20 list@example.net ==> one@example.org (ds: success)",
		"2023-11-14 22:13:21 two <== list@example.net (ds: success)",
	}, outputLines(out))
}

func TestEngine_OrphanDelivery(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(8).Info(8, 1, "a@b").
		Start(6, 8, "remote", "x@y").
		End(8).
		Delivery(6, "success", "late")

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Equal(t, []WarningCode{WarnOrphanDelivery}, rec.codes())
	assert.Equal(t, logline.ID("6"), rec.warnings[0].DeliveryID)
	assert.Equal(t, []string{
		"2023-11-14 22:13:21 (Unknown) ?? (Unknown) (ds: success)",
	}, outputLines(out))

	_, bound, err := e.store.ResolveDelivery(context.Background(), "6")
	require.NoError(t, err)
	assert.False(t, bound)
}

func TestEngine_ResultWithoutStart(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(8).Info(8, 1, "a@b").
		Start(6, 8, "remote", "x@y").
		NewMsg(8).
		Delivery(6, "success", "ok")

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	assert.Equal(t, []WarningCode{WarnDuplicateMessage, WarnResultWithoutStart}, rec.codes())
	assert.Equal(t, []string{
		"2023-11-14 22:13:20 (Unknown) ?? (Unknown) (ds: success)",
	}, outputLines(out))
}

func TestEngine_IgnoresUnrecognizedLines(t *testing.T) {
	e, out, rec := newTestEngine(t, nil)

	ingestAll(t, e,
		"status: local 0/10 remote 0/20",
		"bounce msg 1 qp 2",
		"",
		"garbage \x00\xff",
	)

	assert.Empty(t, out.String())
	assert.Empty(t, rec.warnings)
	stats := e.Stats()
	assert.Equal(t, int64(4), stats.Lines)
	assert.Equal(t, int64(4), stats.Ignored)
}

func TestEngine_Stats(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	log := testutil.NewLog().
		Status(0, 0).
		NewMsg(1).Info(1, 1, "a@b").
		Start(1, 1, "remote", "x@y").
		Delivery(1, "success", "ok").
		Delivery(2, "success", "stray").
		End(1).
		End(1)

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	stats := e.Stats()
	assert.Equal(t, int64(8), stats.Lines)
	assert.Equal(t, int64(1), stats.Ignored)
	assert.Equal(t, int64(1), stats.Results)
	assert.Equal(t, int64(1), stats.Warnings)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, int64(1), stats.Recognized(logline.KindNewMessage))
	assert.Equal(t, int64(1), stats.Recognized(logline.KindMessageInfo))
	assert.Equal(t, int64(1), stats.Recognized(logline.KindDeliveryStart))
	assert.Equal(t, int64(2), stats.Recognized(logline.KindDeliveryResult))
	assert.Equal(t, int64(2), stats.Recognized(logline.KindEndMessage))
	assert.Equal(t, int64(0), stats.Recognized(logline.Kind(42)))
}

func TestEngine_Summary(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	log := testutil.NewLog().
		NewMsg(1).Info(1, 1, "a@b").
		Start(1, 1, "remote", "x@y").
		NewMsg(2)

	require.NoError(t, e.Run(context.Background(), log.Reader()))

	sum, err := e.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Lines)
	assert.Equal(t, int64(0), sum.Results)
	assert.Equal(t, int64(2), sum.Pending)
	assert.Equal(t, int64(1), sum.Deliveries)
}

func TestEngine_Run_ContextCancelled(t *testing.T) {
	e, out, _ := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx, strings.NewReader("new msg 1\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
	assert.Equal(t, int64(0), e.Stats().Lines)
}

func TestEngine_Run_NoTrailingNewline(t *testing.T) {
	e, out, _ := newTestEngine(t, nil)
	input := "starting delivery 1: msg 2 to remote x@y\n1700000000 delivery 1: success: ok"

	require.NoError(t, e.Run(context.Background(), strings.NewReader(input)))
	assert.Equal(t, "2023-11-14 22:13:20 (Unknown) ==> x@y (ds: success)\n", out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestEngine_Run_WriteFailure(t *testing.T) {
	st := store.NewMemory()
	e := New(st, failingWriter{},
		WithLogger(quietLogger()),
		WithRunIDGenerator(FixedGenerator("r")),
	)

	log := testutil.NewLog().Start(1, 2, "remote", "x@y").Delivery(1, "success", "ok")
	err := e.Run(context.Background(), log.Reader())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "disk full")
}

func TestEngine_SQLiteBackendMatchesMemory(t *testing.T) {
	input, err := os.ReadFile(filepath.Join("testdata", "logs", "mixed.log"))
	require.NoError(t, err)

	sqliteStore, err := store.OpenSQLite(store.MemoryPath)
	require.NoError(t, err)

	mem, memOut, memRec := newTestEngine(t, nil, WithVerbose(true))
	sql, sqlOut, sqlRec := newTestEngine(t, sqliteStore, WithVerbose(true))

	require.NoError(t, mem.Run(context.Background(), bytes.NewReader(input)))
	require.NoError(t, sql.Run(context.Background(), bytes.NewReader(input)))

	assert.Equal(t, memOut.String(), sqlOut.String())
	assert.Equal(t, memRec.codes(), sqlRec.codes())

	memSnap, err := mem.Pending(context.Background())
	require.NoError(t, err)
	sqlSnap, err := sql.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, memSnap, sqlSnap)
}

func TestEngine_Golden(t *testing.T) {
	input, err := os.ReadFile(filepath.Join("testdata", "logs", "mixed.log"))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tc := range []struct {
		name    string
		verbose bool
	}{
		{"mixed_terse", false},
		{"mixed_verbose", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e, out, rec := newTestEngine(t, nil, WithVerbose(tc.verbose))
			require.NoError(t, e.Run(context.Background(), bytes.NewReader(input)))
			assert.Empty(t, rec.warnings)

			g.Assert(t, tc.name, out.Bytes())

			snap, err := e.Pending(context.Background())
			require.NoError(t, err)
			require.Len(t, snap.Messages, 1)
			assert.Equal(t, logline.ID("1048800"), snap.Messages[0].ID)
			assert.Equal(t, []store.Binding{{DeliveryID: "23", MessageID: "1048800"}}, snap.Deliveries)
		})
	}
}

func TestSlogReporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	st := store.NewMemory()
	e := New(st, io.Discard,
		WithLogger(logger),
		WithRunIDGenerator(FixedGenerator("run-1")),
	)

	ingestAll(t, e,
		"new msg 9",
		"info msg 9: bytes 100 from <a@b>",
		"new msg 9",
	)

	logged := buf.String()
	assert.Contains(t, logged, "level=WARN")
	assert.Contains(t, logged, "run=run-1")
	assert.Contains(t, logged, "code=duplicate_message")
	assert.Contains(t, logged, "msg_id=9")
	assert.Contains(t, logged, "line_no=3")
	assert.Contains(t, logged, `prior="size=\"100\" from=\"a@b\""`)
}

func TestReporterFunc(t *testing.T) {
	var got []Warning
	r := ReporterFunc(func(w Warning) { got = append(got, w) })
	r.Report(Warning{Code: WarnRemoveAbsent})
	require.Len(t, got, 1)
	assert.Equal(t, WarnRemoveAbsent, got[0].Code)
}
