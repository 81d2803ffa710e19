package smart

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/LouYuanbo1/smartbills/internal/domain/model"
	"github.com/LouYuanbo1/smartbills/internal/errs"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence/memory"
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readVouchers(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, model.Columns, records[0])
	var out []string
	for _, r := range records[1:] {
		out = append(out, r[2])
	}
	return out
}

func outputFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStartBatchedReloadsAndAutoResumes(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	s := newTestService(t, h, nil, nil)

	var atReload *Status
	h.onReload = func() {
		st, err := s.Status(ctx)
		require.NoError(t, err)
		atReload = st
	}

	res, err := s.StartBatched(ctx, &param.Batch{Start: 0, Total: 0, BatchSize: 2, ReloadBetween: true})
	require.NoError(t, err)

	require.NotNil(t, atReload, "page reloaded between batches")
	assert.Equal(t, 2, atReload.State.Next)
	assert.True(t, atReload.State.Active)
	assert.Equal(t, 3, atReload.Rows)
	assert.Equal(t, 1, h.reloads)

	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, "flattrade-smart-bills_0-2.csv", filepath.Base(res.File))
	assert.Equal(t, []string{"A", "B", "B", "C"}, readVouchers(t, res.File))
	assert.Equal(t, []string{"A", "B", "C"}, h.clicks)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.State)
	assert.Zero(t, st.Rows)
	assert.Nil(t, s.ActiveSession())
}

func TestStartBatchedHaltsWithoutAutoResume(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	opts := testOptions(t)
	opts.AutoResume = false
	s := newTestService(t, h, nil, opts)

	res, err := s.StartBatched(ctx, &param.Batch{BatchSize: 2, ReloadBetween: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHalted, res.Outcome)
	assert.Equal(t, 2, res.State.Next)
	assert.Equal(t, 1, h.reloads)
	assert.Empty(t, outputFiles(t, opts.OutputDir))

	res, err = s.Resume(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, []string{"A", "B", "B", "C"}, readVouchers(t, res.File))
}

func TestStartBatchedWithoutReloadHalts(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	s := newTestService(t, h, nil, nil)

	res, err := s.StartBatched(ctx, &param.Batch{Start: 1, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHalted, res.Outcome)
	assert.Equal(t, 1, res.State.Start)
	assert.Equal(t, 2, res.State.Next)
	assert.Zero(t, h.reloads)
	assert.Equal(t, []string{"B"}, h.clicks)

	// 最后一批完成后直接写出文件
	res, err = s.Resume(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, "flattrade-smart-bills_1-2.csv", filepath.Base(res.File))
	assert.Equal(t, []string{"B", "B", "C"}, readVouchers(t, res.File))
}

func TestResumeFinalizesCompletedRun(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	s := newTestService(t, h, nil, nil)

	require.NoError(t, s.repo.SaveState(ctx, &model.RunState{RunID: "r1", Active: true, Start: 0, Next: 3, End: 3, BatchSize: 2}))
	require.NoError(t, s.repo.AppendRows(ctx, []model.PackedRow{{VoucherNo: "A", Scrip: "INFY", RowType: model.RowTypeItem}}))

	res, err := s.Resume(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, 1, res.Rows)
	assert.Zero(t, h.clickCount())
}

func TestResumeWithoutStateIsIdle(t *testing.T) {
	s := newTestService(t, newFakeHost(abcBills()), nil, nil)
	res, err := s.Resume(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, res.Outcome)
}

func TestMissingTriggerIsSkipped(t *testing.T) {
	ctx := context.Background()
	bills := abcBills()
	h := newFakeHost(bills)
	h.beforeClick = func(text string) {
		if text == "A" {
			h.setListing(listingHTML([]fixtureBill{bills[0], bills[2]}))
		}
	}
	s := newTestService(t, h, nil, nil)

	res, err := s.StartBatched(ctx, &param.Batch{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, []string{"A", "C"}, h.clicks)
	assert.Equal(t, []string{"A", "C"}, readVouchers(t, res.File))
}

func TestUnparsedTriggerSkipsHeaderCheck(t *testing.T) {
	ctx := context.Background()
	bills := abcBills()
	bills[1].badTrigger = true
	// 没有期望值时不核对表头,即使表头与列表不符
	bills[1].shownSettle = "2024099"
	h := newFakeHost(bills)
	s := newTestService(t, h, nil, nil)

	res, err := s.StartBatched(ctx, &param.Batch{BatchSize: 2, ReloadBetween: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, []string{"A", "B", "C"}, h.clicks)
	assert.Equal(t, []string{"A", "B", "B", "C"}, readVouchers(t, res.File))
}

func TestDetailFailureDeactivatesRun(t *testing.T) {
	ctx := context.Background()
	bills := abcBills()
	bills[1].shownSettle = "2024099"
	h := newFakeHost(bills)
	s := newTestService(t, h, nil, nil)

	_, err := s.StartBatched(ctx, &param.Batch{BatchSize: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrDetailNotFound)
	assert.Equal(t, errs.CodeDetailNotFound, errs.CodeOf(err))

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.State)
	assert.False(t, st.State.Active)
	assert.Equal(t, 1, st.State.Next)
	assert.Equal(t, 1, st.Rows, "rows of the completed record are kept")

	res, err := s.Resume(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, res.Outcome)

	// 修复页面后刷新,重新激活继续
	h.mu.Lock()
	b := h.bills["B"]
	b.shownSettle = ""
	h.bills["B"] = b
	h.mu.Unlock()
	require.NoError(t, h.Reload(ctx))

	res, err = s.Resume(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, []string{"A", "B", "B", "C"}, readVouchers(t, res.File))
}

// flakyStore 对 key 的第 failAt 次写入返回错误,只失败一次
type flakyStore struct {
	persistence.Store
	key    string
	failAt int
	sets   int
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if key == f.key {
		f.sets++
		if f.sets == f.failAt {
			return fmt.Errorf("write %s: disk full", key)
		}
	}
	return f.Store.Set(ctx, key, value)
}

func TestRowWriteFailureKeepsCursorAtBatchStart(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	// 第一次写入是开始时清空行
	store := &flakyStore{Store: memory.New(), key: RowsKey, failAt: 2}
	s := newTestService(t, h, store, nil)

	_, err := s.StartBatched(ctx, &param.Batch{BatchSize: 3})
	assert.ErrorIs(t, err, errs.ErrStoreFailure)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.State)
	assert.False(t, st.State.Active)
	assert.Equal(t, 0, st.State.Next)
	assert.Zero(t, st.Rows)

	res, err := s.Resume(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, []string{"A", "B", "B", "C"}, readVouchers(t, res.File))
}

func TestStateWriteFailureDoesNotReprocess(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	// 第一次写入是开始时的断点
	store := &flakyStore{Store: memory.New(), key: StateKey, failAt: 2}
	s := newTestService(t, h, store, nil)

	_, err := s.StartBatched(ctx, &param.Batch{BatchSize: 3})
	assert.ErrorIs(t, err, errs.ErrStoreFailure)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.State)
	assert.False(t, st.State.Active)
	assert.Equal(t, 3, st.State.Next)
	assert.Equal(t, 4, st.Rows)

	res, err := s.Resume(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, []string{"A", "B", "C"}, h.clicks)
	assert.Equal(t, []string{"A", "B", "B", "C"}, readVouchers(t, res.File))
}

func TestConcurrentCallsAreRejected(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	s := newTestService(t, h, nil, nil)

	var inner []Outcome
	var active *Session
	h.beforeClick = func(text string) {
		if text != "A" {
			return
		}
		active = s.ActiveSession()
		for _, call := range []func() (*Result, error){
			func() (*Result, error) { return s.StartBatched(ctx, &param.Batch{BatchSize: 1}) },
			func() (*Result, error) { return s.Resume(ctx, true) },
			func() (*Result, error) { return s.ExportRange(ctx, &param.Range{}) },
		} {
			res, err := call()
			require.NoError(t, err)
			inner = append(inner, res.Outcome)
		}
	}

	res, err := s.StartBatched(ctx, &param.Batch{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalized, res.Outcome)
	assert.Equal(t, []Outcome{OutcomeBusy, OutcomeBusy, OutcomeBusy}, inner)
	require.NotNil(t, active)
	assert.Equal(t, "start", active.Kind)
	assert.Equal(t, res.State.RunID, active.ID)
	assert.Equal(t, []string{"A", "B", "C"}, h.clicks)
	assert.Nil(t, s.ActiveSession())
}

func TestStartBatchedValidation(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	s := newTestService(t, h, nil, nil)

	_, err := s.StartBatched(ctx, &param.Batch{BatchSize: 0})
	assert.Error(t, err)

	_, err = s.StartBatched(ctx, &param.Batch{Start: 3, BatchSize: 2})
	assert.Error(t, err)
	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.State, "no checkpoint for a start past the listing")

	h.setContent(detailURL, detailHTML(abcBills()[0]))
	_, err = s.StartBatched(ctx, &param.Batch{BatchSize: 2})
	assert.ErrorIs(t, err, errs.ErrListingNotFound)
	assert.Nil(t, s.ActiveSession())
}

func TestExportRangeRejectsStartPastListing(t *testing.T) {
	h := newFakeHost(abcBills())
	opts := testOptions(t)
	s := newTestService(t, h, nil, opts)

	_, err := s.ExportRange(context.Background(), &param.Range{Start: 10, Count: 2})
	assert.Error(t, err)
	assert.Zero(t, h.clickCount())
	assert.Empty(t, outputFiles(t, opts.OutputDir))
}

func TestExportRangeDryRun(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	opts := testOptions(t)
	s := newTestService(t, h, nil, opts)

	res, err := s.ExportRange(ctx, &param.Range{Start: 1, Count: 1, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDryRun, res.Outcome)
	assert.Equal(t, 2, res.Rows)
	require.Len(t, res.Preview, 2)
	assert.Equal(t, "TCS", res.Preview[0].Scrip)
	assert.Equal(t, []string{"B"}, h.clicks)
	assert.Empty(t, outputFiles(t, opts.OutputDir))
}

func TestExportAllWritesFile(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost(abcBills())
	s := newTestService(t, h, nil, nil)

	res, err := s.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExported, res.Outcome)
	assert.Equal(t, "flattrade-smart-bills_0-2.csv", filepath.Base(res.File))
	assert.Equal(t, []string{"A", "B", "B", "C"}, readVouchers(t, res.File))

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.State, "unbatched export leaves no checkpoint")
}

func TestExportRangeFailureDiscardsRows(t *testing.T) {
	ctx := context.Background()
	bills := abcBills()
	bills[2].shownSettle = "2024099"
	h := newFakeHost(bills)
	opts := testOptions(t)
	s := newTestService(t, h, nil, opts)

	_, err := s.ExportRange(ctx, &param.Range{})
	assert.ErrorIs(t, err, errs.ErrDetailNotFound)
	assert.Empty(t, outputFiles(t, opts.OutputDir))

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Rows)
}

func TestDownloadPartial(t *testing.T) {
	ctx := context.Background()
	bills := abcBills()
	bills[1].shownSettle = "2024099"
	h := newFakeHost(bills)
	s := newTestService(t, h, nil, nil)

	res, err := s.DownloadPartial(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Empty(t, res.File)

	_, err = s.StartBatched(ctx, &param.Batch{BatchSize: 3})
	require.Error(t, err)

	res, err = s.DownloadPartial(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, "flattrade-smart-bills_partial_0-0.csv", filepath.Base(res.File))
	assert.Equal(t, []string{"A"}, readVouchers(t, res.File))

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.State, "checkpoint untouched")
	assert.Equal(t, 1, st.State.Next)

	require.NoError(t, s.ClearState(ctx))
	st, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.State)
	assert.Zero(t, st.Rows)
}

func TestCorruptState(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]string{
		"not json":        `{not json`,
		"cursor past end": `{"runId":"r","active":true,"start":0,"next":5,"end":3,"batchSize":1}`,
		"zero batch":      `{"runId":"r","active":true,"start":0,"next":0,"end":3,"batchSize":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			require.NoError(t, store.Set(ctx, StateKey, []byte(raw)))
			s := newTestService(t, newFakeHost(abcBills()), store, nil)

			_, err := s.Resume(ctx, false)
			assert.ErrorIs(t, err, errs.ErrStateCorrupt)
			_, err = s.Status(ctx)
			assert.ErrorIs(t, err, errs.ErrStateCorrupt)
		})
	}
}

func TestStateRepoRows(t *testing.T) {
	ctx := context.Background()
	repo := &stateRepo{store: memory.New()}

	st, err := repo.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, repo.AppendRows(ctx, []model.PackedRow{{VoucherNo: "A", RowType: model.RowTypeItem}}))
	require.NoError(t, repo.AppendRows(ctx, nil))
	require.NoError(t, repo.AppendRows(ctx, []model.PackedRow{{VoucherNo: "B", Debit: 12.5, RowType: model.RowTypeItem}}))

	rows, err := repo.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].VoucherNo)
	assert.Equal(t, 12.5, rows[1].Debit)

	require.NoError(t, repo.ResetRows(ctx))
	rows, err = repo.LoadRows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, repo.Clear(ctx))
}
