package smart

import (
	"context"
	"errors"
	"fmt"

	"github.com/LouYuanbo1/smartbills/internal/domain/entity"
	"github.com/LouYuanbo1/smartbills/internal/domain/model"
	"github.com/LouYuanbo1/smartbills/internal/errs"
	"github.com/LouYuanbo1/smartbills/internal/infra/export"
	"github.com/LouYuanbo1/smartbills/internal/infra/poll"
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"go.uber.org/zap"
)

// span 计算 [start, end):end = min(n, start+count),count <= 0 表示到末尾。
// start 必须落在列表内
func span(n, start, count int) (int, int, error) {
	if start < 0 {
		return 0, 0, fmt.Errorf("start 不能为负数: %d", start)
	}
	if start >= n {
		return 0, 0, fmt.Errorf("start %d 超出列表范围,共 %d 条", start, n)
	}
	end := n
	if count > 0 && start+count < n {
		end = start + count
	}
	return start, end, nil
}

func (s *smartService) index(l *Listing) []entity.BillRecord {
	records, dupes := s.m.buildIndex(l)
	if len(dupes) > 0 {
		s.logger.Warn("列表中有重复的凭证号,只保留第一条", zap.Strings("vouchers", dupes))
	}
	return records
}

// processRange 严格按下标顺序处理 [from, to)。返回已提取的行和下一条待处理的下标,
// 出错时 processed 之前的记录都已处理完毕
func (s *smartService) processRange(ctx context.Context, records []entity.BillRecord, from, to int) (buf []model.PackedRow, processed int, err error) {
	processed = from
	for i := from; i < to; i++ {
		if i >= len(records) {
			s.logger.Warn("列表中没有该下标的记录,跳过", zap.Int("index", i), zap.Int("total", len(records)))
			processed = i + 1
			continue
		}
		rec := &records[i]

		listing, err := s.relocate(ctx)
		if err != nil {
			return buf, processed, err
		}
		if !s.m.hasTrigger(listing, rec.VoucherNo) {
			s.logger.Warn("凭证单元格不存在,跳过", zap.Int("index", i), zap.String("voucher", rec.VoucherNo))
			processed = i + 1
			continue
		}
		clicked, err := s.crawler.PerformClick(ctx, listing.Frame.Path, s.m.triggerSel, rec.VoucherNo)
		if err != nil {
			return buf, processed, fmt.Errorf("点击凭证 %s 失败: %w", rec.VoucherNo, err)
		}
		if !clicked {
			s.logger.Warn("凭证单元格不存在,跳过", zap.Int("index", i), zap.String("voucher", rec.VoucherNo),
				zap.Error(errs.ErrSelectionTriggerMissing))
			processed = i + 1
			continue
		}
		s.logger.Info(fmt.Sprintf("(%d/%d) 已点击凭证", i+1, len(records)), zap.String("voucher", rec.VoucherNo))

		view, err := s.WaitDetail(ctx, rec.Expectation())
		if err != nil {
			return buf, processed, err
		}
		items := ParseItems(view)
		s.logger.Info("解析明细", zap.String("voucher", rec.VoucherNo), zap.String("view", string(view.Kind)), zap.Int("rows", len(items)))
		for _, it := range items {
			buf = append(buf, model.Pack(rec, it))
		}
		processed = i + 1

		if l, err := s.FindListing(ctx); err != nil || l == nil {
			if _, err := s.Restore(ctx, view.Path); err != nil {
				return buf, processed, err
			}
		}
		if err := poll.Sleep(ctx, s.opts.InterRecordDelay); err != nil {
			return buf, processed, err
		}
	}
	return buf, processed, nil
}

// runBatch 处理一批记录,成功后先合并行再推进断点
func (s *smartService) runBatch(ctx context.Context, st *model.RunState) error {
	listing, err := s.WaitListing(ctx, s.opts.ListingWait)
	if err != nil {
		return s.fail(ctx, st, nil, st.Next, err)
	}
	records := s.index(listing)
	from, to := st.Next, st.Next+st.NextBatch()
	s.logger.Info("开始处理批次",
		zap.String("run", st.RunID),
		zap.Int("from", from),
		zap.Int("to", to-1),
		zap.Int("end", st.End))

	buf, processed, err := s.processRange(ctx, records, from, to)
	if err != nil {
		return s.fail(ctx, st, buf, processed, err)
	}
	// 行写入失败时断点停在批次开头;行已合并而断点写入失败时,
	// fail 不再追加行,只重试写入推进后的断点
	if err := s.repo.AppendRows(ctx, buf); err != nil {
		return s.fail(ctx, st, nil, from, err)
	}
	if err := st.Advance(processed); err != nil {
		return errs.New(errs.CodeStateCorrupt, "无法推进断点").WithCause(err)
	}
	if err := s.repo.SaveState(ctx, st); err != nil {
		return s.fail(ctx, st, nil, processed, err)
	}
	s.logger.Info("批次完成", zap.Int("next", st.Next), zap.Int("end", st.End), zap.Int("rows", len(buf)))
	return nil
}

// fail 保存已提取的行,把断点推进到失败记录之前并停用,之后需要手动 resume --reactivate
func (s *smartService) fail(ctx context.Context, st *model.RunState, buf []model.PackedRow, processed int, cause error) error {
	s.logger.Error("批次失败,断点已停用",
		zap.String("code", string(errs.CodeOf(cause))),
		zap.Int("next", processed),
		zap.Int("saved_rows", len(buf)),
		zap.Error(cause))

	ctx = context.WithoutCancel(ctx)
	all := []error{cause}
	if err := s.repo.AppendRows(ctx, buf); err != nil {
		all = append(all, err)
	}
	if err := st.Advance(processed); err != nil {
		all = append(all, err)
	}
	st.Active = false
	if err := s.repo.SaveState(ctx, st); err != nil {
		all = append(all, err)
	}
	return errors.Join(all...)
}

func (s *smartService) resumeLoop(ctx context.Context) (*Result, error) {
	for {
		st, err := s.repo.LoadState(ctx)
		if err != nil {
			return nil, err
		}
		if st == nil || !st.Active {
			s.logger.Info("没有可继续的断点")
			return &Result{Outcome: OutcomeIdle, State: st}, nil
		}
		if st.Done() {
			return s.finalize(ctx, st)
		}
		if err := s.runBatch(ctx, st); err != nil {
			return nil, err
		}
		if st.Done() {
			continue
		}
		if !st.ReloadBetween {
			s.logger.Info("批次已保存,等待手动继续", zap.Int("next", st.Next), zap.Int("end", st.End))
			return &Result{Outcome: OutcomeHalted, State: st}, nil
		}
		// 断点写入完成之后才刷新
		if err := s.crawler.Reload(ctx); err != nil {
			return nil, fmt.Errorf("刷新页面失败: %w", err)
		}
		if !s.opts.AutoResume {
			s.logger.Info("页面已刷新,等待手动继续", zap.Int("next", st.Next))
			return &Result{Outcome: OutcomeHalted, State: st}, nil
		}
		s.logger.Info("页面已刷新,自动继续", zap.Int("next", st.Next))
	}
}

// finalize 写出全部已累积的行并清除断点
func (s *smartService) finalize(ctx context.Context, st *model.RunState) (*Result, error) {
	rows, err := s.repo.LoadRows(ctx)
	if err != nil {
		return nil, err
	}
	path, err := export.Download(s.opts.OutputDir, export.FileName(s.opts.FilePrefix, st.Start, st.End), rows)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Clear(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("导出完成", zap.Int("rows", len(rows)), zap.String("file", path))
	return &Result{Outcome: OutcomeFinalized, Rows: len(rows), File: path, State: st}, nil
}

func (s *smartService) StartBatched(ctx context.Context, b *param.Batch) (*Result, error) {
	sess, ok := s.acquire("start")
	if !ok {
		return &Result{Outcome: OutcomeBusy}, nil
	}
	defer s.release(sess)

	if b.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size 必须大于 0: %d", b.BatchSize)
	}
	listing, err := s.FindListing(ctx)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, errs.ErrListingNotFound
	}
	records := s.index(listing)
	start, end, err := span(len(records), b.Start, b.Total)
	if err != nil {
		return nil, err
	}

	st := &model.RunState{
		RunID:         sess.ID,
		Active:        true,
		Start:         start,
		Next:          start,
		End:           end,
		BatchSize:     b.BatchSize,
		ReloadBetween: b.ReloadBetween,
	}
	if err := s.repo.ResetRows(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.SaveState(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info("分批导出开始",
		zap.String("run", st.RunID),
		zap.Int("bills", len(records)),
		zap.Int("start", start),
		zap.Int("end", end-1),
		zap.Int("batch_size", b.BatchSize),
		zap.Bool("reload", b.ReloadBetween))
	return s.resumeLoop(ctx)
}

func (s *smartService) Resume(ctx context.Context, reactivate bool) (*Result, error) {
	sess, ok := s.acquire("resume")
	if !ok {
		return &Result{Outcome: OutcomeBusy}, nil
	}
	defer s.release(sess)

	if reactivate {
		st, err := s.repo.LoadState(ctx)
		if err != nil {
			return nil, err
		}
		if st != nil && !st.Active {
			st.Active = true
			if err := s.repo.SaveState(ctx, st); err != nil {
				return nil, err
			}
			s.logger.Info("断点已重新激活", zap.Int("next", st.Next), zap.Int("end", st.End))
		}
	}
	return s.resumeLoop(ctx)
}

func (s *smartService) ExportRange(ctx context.Context, r *param.Range) (*Result, error) {
	sess, ok := s.acquire("export")
	if !ok {
		return &Result{Outcome: OutcomeBusy}, nil
	}
	defer s.release(sess)

	listing, err := s.FindListing(ctx)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, errs.ErrListingNotFound
	}
	records := s.index(listing)
	start, end, err := span(len(records), r.Start, r.Count)
	if err != nil {
		return nil, err
	}
	s.logger.Info(fmt.Sprintf("Bills: %d | running [%d..%d]", len(records), start, end-1), zap.Bool("dry_run", r.DryRun))

	rows, _, err := s.processRange(ctx, records, start, end)
	if err != nil {
		s.logger.Error("导出失败", zap.String("code", string(errs.CodeOf(err))), zap.Int("discarded_rows", len(rows)), zap.Error(err))
		return nil, err
	}

	if r.DryRun {
		preview := rows[:min(3, len(rows))]
		s.logger.Info("DRY-RUN", zap.Int("rows", len(rows)), zap.Any("preview", preview))
		return &Result{Outcome: OutcomeDryRun, Rows: len(rows), Preview: preview}, nil
	}
	path, err := export.Download(s.opts.OutputDir, export.FileName(s.opts.FilePrefix, start, end), rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("导出完成", zap.Int("rows", len(rows)), zap.String("file", path))
	return &Result{Outcome: OutcomeExported, Rows: len(rows), File: path}, nil
}

func (s *smartService) ExportAll(ctx context.Context) (*Result, error) {
	return s.ExportRange(ctx, &param.Range{Start: 0})
}

// DownloadPartial 写出目前已累积的行,不改动断点
func (s *smartService) DownloadPartial(ctx context.Context) (*Result, error) {
	st, err := s.repo.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.LoadRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.logger.Info("没有已累积的行")
		return &Result{Outcome: OutcomePartial, State: st}, nil
	}
	name := s.opts.FilePrefix + "_partial.csv"
	if st != nil {
		name = export.PartialFileName(s.opts.FilePrefix, st.Start, st.Next)
	}
	path, err := export.Download(s.opts.OutputDir, name, rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("已写出部分结果", zap.Int("rows", len(rows)), zap.String("file", path))
	return &Result{Outcome: OutcomePartial, Rows: len(rows), File: path, State: st}, nil
}

// ClearState 删除断点与已累积的行;正在运行的批次不会被中断
func (s *smartService) ClearState(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("断点已清除")
	return nil
}

func (s *smartService) Status(ctx context.Context) (*Status, error) {
	st, err := s.repo.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.LoadRows(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{State: st, Rows: len(rows)}, nil
}
