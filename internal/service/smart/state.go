package smart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LouYuanbo1/smartbills/internal/domain/model"
	"github.com/LouYuanbo1/smartbills/internal/errs"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence"
)

const (
	StateKey = "smart_bills_state"
	RowsKey  = "smart_bills_rows"
)

// stateRepo 在 Store 之上读写断点与已累积的行
type stateRepo struct {
	store persistence.Store
}

func storeErr(op string, err error) error {
	return errs.New(errs.CodeStoreFailure, op).WithCause(err)
}

// LoadState 没有断点时返回 nil, nil
func (r *stateRepo) LoadState(ctx context.Context) (*model.RunState, error) {
	raw, ok, err := r.store.Get(ctx, StateKey)
	if err != nil {
		return nil, storeErr("读取断点失败", err)
	}
	if !ok {
		return nil, nil
	}
	var st model.RunState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, errs.New(errs.CodeStateCorrupt, "断点无法解析").WithCause(err)
	}
	if err := st.Validate(); err != nil {
		return nil, errs.New(errs.CodeStateCorrupt, "断点不合法").WithCause(err)
	}
	return &st, nil
}

func (r *stateRepo) SaveState(ctx context.Context, st *model.RunState) error {
	st.UpdatedAt = time.Now()
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, StateKey, raw); err != nil {
		return storeErr("写入断点失败", err)
	}
	return nil
}

func (r *stateRepo) LoadRows(ctx context.Context) ([]model.PackedRow, error) {
	raw, ok, err := r.store.Get(ctx, RowsKey)
	if err != nil {
		return nil, storeErr("读取已累积的行失败", err)
	}
	if !ok {
		return nil, nil
	}
	var tuples [][]string
	if err := json.Unmarshal(raw, &tuples); err != nil {
		return nil, errs.New(errs.CodeStateCorrupt, "已累积的行无法解析").WithCause(err)
	}
	rows := make([]model.PackedRow, 0, len(tuples))
	for i, t := range tuples {
		row, err := model.RowFromTuple(t)
		if err != nil {
			return nil, errs.New(errs.CodeStateCorrupt, "已累积的行无法解析").WithDetails("row %d", i).WithCause(err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *stateRepo) saveRows(ctx context.Context, rows []model.PackedRow) error {
	tuples := make([][]string, 0, len(rows))
	for _, row := range rows {
		tuples = append(tuples, row.Tuple())
	}
	raw, err := json.Marshal(tuples)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, RowsKey, raw); err != nil {
		return storeErr("写入已累积的行失败", err)
	}
	return nil
}

// AppendRows 读出已有的行,追加后整体写回
func (r *stateRepo) AppendRows(ctx context.Context, rows []model.PackedRow) error {
	if len(rows) == 0 {
		return nil
	}
	existing, err := r.LoadRows(ctx)
	if err != nil {
		return err
	}
	return r.saveRows(ctx, append(existing, rows...))
}

func (r *stateRepo) ResetRows(ctx context.Context) error {
	return r.saveRows(ctx, nil)
}

func (r *stateRepo) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, StateKey); err != nil {
		return storeErr("删除断点失败", err)
	}
	if err := r.store.Delete(ctx, RowsKey); err != nil {
		return storeErr("删除已累积的行失败", err)
	}
	return nil
}
