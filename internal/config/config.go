package config

import "time"

type Config struct {
	// rod 或 chromedp
	Browser string `json:"browser" mapstructure:"browser"`

	Elasticsearch struct {
		Username string `json:"username" mapstructure:"username"`
		Password string `json:"password" mapstructure:"password"`
		Address  string `json:"address" mapstructure:"address"`
	} `json:"elasticsearch" mapstructure:"elasticsearch"`

	Rod struct {
		UserMode             bool   `json:"user_mode" mapstructure:"user_mode"`
		ControlURL           string `json:"control_url" mapstructure:"control_url"`
		UserDataDir          string `json:"user_data_dir" mapstructure:"user_data_dir"`
		Headless             bool   `json:"headless" mapstructure:"headless"`
		DisableBlinkFeatures string `json:"disable_blink_features" mapstructure:"disable_blink_features"`
		Incognito            bool   `json:"incognito" mapstructure:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage" mapstructure:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
		UserAgent            string `json:"user_agent" mapstructure:"user_agent"`
		Leakless             bool   `json:"leakless" mapstructure:"leakless"`
		Bin                  string `json:"bin" mapstructure:"bin"`
		RemoteDebuggingPort  int    `json:"remote_debugging_port" mapstructure:"remote_debugging_port"`
		Stealth              bool   `json:"stealth" mapstructure:"stealth"`
		Trace                bool   `json:"trace" mapstructure:"trace"`
	} `json:"rod" mapstructure:"rod"`

	Chromedp struct {
		LifeTime             int    `json:"life_time" mapstructure:"life_time"`
		UserDataDir          string `json:"user_data_dir" mapstructure:"user_data_dir"`
		Headless             bool   `json:"headless" mapstructure:"headless"`
		DisableBlinkFeatures string `json:"disable_blink_features" mapstructure:"disable_blink_features"`
		Incognito            bool   `json:"incognito" mapstructure:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage" mapstructure:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
		UserAgent            string `json:"user_agent" mapstructure:"user_agent"`
	} `json:"chromedp" mapstructure:"chromedp"`

	// inspect 命令离线读取保存的页面时使用
	Inspect struct {
		UserAgent     string `json:"user_agent" mapstructure:"user_agent"`
		MaxFrameDepth int    `json:"max_frame_depth" mapstructure:"max_frame_depth"`
	} `json:"inspect" mapstructure:"inspect"`

	Smart struct {
		// 启动后打开的页面,为空时使用浏览器当前页面
		EntryURL         string        `json:"entry_url" mapstructure:"entry_url"`
		ListingURL       string        `json:"listing_url" mapstructure:"listing_url"`
		RecordMarker     string        `json:"record_marker" mapstructure:"record_marker"`
		TriggerPrefix    string        `json:"trigger_prefix" mapstructure:"trigger_prefix"`
		HeaderSelector   string        `json:"header_selector" mapstructure:"header_selector"`
		PollInterval     time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
		DetailPoll       time.Duration `json:"detail_poll_interval" mapstructure:"detail_poll_interval"`
		ListingWait      time.Duration `json:"listing_wait" mapstructure:"listing_wait"`
		DetailWait       time.Duration `json:"detail_wait" mapstructure:"detail_wait"`
		RestoreWait      time.Duration `json:"restore_wait" mapstructure:"restore_wait"`
		RestoreRootWait  time.Duration `json:"restore_root_wait" mapstructure:"restore_root_wait"`
		InterRecordDelay time.Duration `json:"inter_record_delay" mapstructure:"inter_record_delay"`
		AutoResume       bool          `json:"auto_resume" mapstructure:"auto_resume"`
	} `json:"smart" mapstructure:"smart"`

	Store struct {
		// 可选 badger、elasticsearch、postgres、memory
		Backend     string `json:"backend" mapstructure:"backend"`
		Dir         string `json:"dir" mapstructure:"dir"`
		Index       string `json:"index" mapstructure:"index"`
		PostgresDSN string `json:"postgres_dsn" mapstructure:"postgres_dsn"`
	} `json:"store" mapstructure:"store"`

	Export struct {
		OutputDir  string `json:"output_dir" mapstructure:"output_dir"`
		FilePrefix string `json:"file_prefix" mapstructure:"file_prefix"`
	} `json:"export" mapstructure:"export"`

	Log struct {
		Level string `json:"level" mapstructure:"level"`
		File  string `json:"file" mapstructure:"file"`
	} `json:"log" mapstructure:"log"`
}
