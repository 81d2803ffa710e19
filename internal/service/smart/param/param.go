package param

import (
	"time"

	"github.com/LouYuanbo1/smartbills/internal/config"
)

// Options 是提取引擎的可调参数,默认值来自 appconfig.json 的 smart 与 export 段
type Options struct {
	// 可以是绝对地址,也可以是相对顶层页面的路径
	ListingURL     string
	RecordMarker   string
	TriggerPrefix  string
	HeaderSelector string

	PollInterval     time.Duration
	DetailPoll       time.Duration
	ListingWait      time.Duration
	DetailWait       time.Duration
	RestoreWait      time.Duration
	RestoreRootWait  time.Duration
	InterRecordDelay time.Duration

	// 整页刷新后在同一进程内继续下一批
	AutoResume bool

	OutputDir  string
	FilePrefix string
}

func FromConfig(cfg *config.Config) *Options {
	return &Options{
		ListingURL:       cfg.Smart.ListingURL,
		RecordMarker:     cfg.Smart.RecordMarker,
		TriggerPrefix:    cfg.Smart.TriggerPrefix,
		HeaderSelector:   cfg.Smart.HeaderSelector,
		PollInterval:     cfg.Smart.PollInterval,
		DetailPoll:       cfg.Smart.DetailPoll,
		ListingWait:      cfg.Smart.ListingWait,
		DetailWait:       cfg.Smart.DetailWait,
		RestoreWait:      cfg.Smart.RestoreWait,
		RestoreRootWait:  cfg.Smart.RestoreRootWait,
		InterRecordDelay: cfg.Smart.InterRecordDelay,
		AutoResume:       cfg.Smart.AutoResume,
		OutputDir:        cfg.Export.OutputDir,
		FilePrefix:       cfg.Export.FilePrefix,
	}
}

// Range 对应一次不分批的导出;Count <= 0 表示导出到列表末尾
type Range struct {
	Start  int  `json:"start"`
	Count  int  `json:"count"`
	DryRun bool `json:"dry_run"`
}

// Batch 对应一次分批导出;Total <= 0 表示导出到列表末尾
type Batch struct {
	Start         int  `json:"start"`
	Total         int  `json:"total"`
	BatchSize     int  `json:"batch_size"`
	ReloadBetween bool `json:"reload_between"`
}
