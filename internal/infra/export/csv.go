package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/LouYuanbo1/smartbills/internal/domain/model"
)

// FileName 使用左闭右闭的记录范围命名,与浏览器下载的文件名一致
func FileName(prefix string, start, end int) string {
	return fmt.Sprintf("%s_%d-%d.csv", prefix, start, end-1)
}

// PartialFileName 用于尚未完成的分批导出,范围截止到断点前一条
func PartialFileName(prefix string, start, next int) string {
	return fmt.Sprintf("%s_partial_%d-%d.csv", prefix, start, next-1)
}

// WriteCSV 先写表头,再按 model.Columns 的顺序写每一行
func WriteCSV(w io.Writer, rows []model.PackedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Tuple()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Download 把行写入 dir/name,返回文件路径
func Download(dir, name string, rows []model.PackedRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		return "", fmt.Errorf("写入CSV失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("保存文件失败: %w", err)
	}
	return path, nil
}
