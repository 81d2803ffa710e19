package smart

import (
	"context"
	"sync"
	"time"

	"github.com/LouYuanbo1/smartbills/internal/domain/model"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence"
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SmartService interface {
	// ExportRange 不分批导出 [start, start+count),dry run 只打印不写文件
	ExportRange(ctx context.Context, r *param.Range) (*Result, error)
	ExportAll(ctx context.Context) (*Result, error)
	// StartBatched 写入新的断点并清空已累积的行,然后开始第一批
	StartBatched(ctx context.Context, b *param.Batch) (*Result, error)
	// Resume 从断点继续;reactivate 为 true 时先把失败后停用的断点重新激活
	Resume(ctx context.Context, reactivate bool) (*Result, error)
	DownloadPartial(ctx context.Context) (*Result, error)
	ClearState(ctx context.Context) error
	Status(ctx context.Context) (*Status, error)
	// ActiveSession 空闲时返回 nil
	ActiveSession() *Session
}

type Outcome string

const (
	OutcomeExported  Outcome = "exported"
	OutcomeDryRun    Outcome = "dry_run"
	OutcomeFinalized Outcome = "finalized"
	// 本批已写入断点,等待手动 resume
	OutcomeHalted Outcome = "halted"
	// 没有可继续的断点
	OutcomeIdle Outcome = "idle"
	// 已有会话在运行,本次调用没有任何副作用
	OutcomeBusy    Outcome = "busy"
	OutcomePartial Outcome = "partial"
)

type Result struct {
	Outcome Outcome
	Rows    int
	File    string
	State   *model.RunState
	// 仅 dry run 时填充前三行
	Preview []model.PackedRow
}

type Status struct {
	State *model.RunState
	Rows  int
}

// Session 标识正在运行的一次导出,同一时间最多一个
type Session struct {
	ID        string
	Kind      string
	StartedAt time.Time
}

type smartService struct {
	crawler chrome.ChromeCrawler
	repo    *stateRepo
	opts    *param.Options
	m       *matcher
	logger  *zap.Logger

	mu      sync.Mutex
	session *Session
}

func InitSmartService(
	crawler chrome.ChromeCrawler,
	store persistence.Store,
	opts *param.Options,
	logger *zap.Logger,
) (SmartService, error) {
	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}
	return &smartService{
		crawler: crawler,
		repo:    &stateRepo{store: store},
		opts:    opts,
		m:       m,
		logger:  logger,
	}, nil
}

// acquire 已有会话时返回 false
func (s *smartService) acquire(kind string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.logger.Warn("已有导出在运行,忽略本次调用",
			zap.String("running", s.session.Kind),
			zap.String("session", s.session.ID),
			zap.String("requested", kind))
		return nil, false
	}
	s.session = &Session{ID: uuid.NewString(), Kind: kind, StartedAt: time.Now()}
	return s.session, true
}

func (s *smartService) release(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == sess {
		s.session = nil
	}
}

func (s *smartService) ActiveSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}
