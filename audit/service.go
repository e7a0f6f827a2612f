package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/npctalk/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TurnEntry holds one conversation turn to be logged.
type TurnEntry struct {
	TraceID   string
	SessionID string
	NPC       string
	Player    string
	Mode      string
	Typed     string
	Outcome   string
	Keys      []string
	Lines     []string
	StartPC   int
	NextPC    int
	Error     string
	Duration  time.Duration
}

// Recorder is what the conversation controller needs from the audit
// service; tests substitute a fake.
type Recorder interface {
	Log(entry TurnEntry)
}

// Service logs turn entries asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.TalkLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.TalkLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues a turn entry for async DB write. A full queue drops the entry.
func (svc *Service) Log(entry TurnEntry) {
	keysJSON, _ := json.Marshal(entry.Keys)
	linesJSON, _ := json.Marshal(entry.Lines)
	record := &model.TalkLog{
		TraceID:    entry.TraceID,
		SessionID:  entry.SessionID,
		NPC:        entry.NPC,
		Player:     entry.Player,
		Mode:       entry.Mode,
		Typed:      entry.Typed,
		Outcome:    entry.Outcome,
		Keys:       datatypes.JSON(keysJSON),
		Lines:      datatypes.JSON(linesJSON),
		StartPC:    entry.StartPC,
		NextPC:     entry.NextPC,
		Error:      entry.Error,
		DurationUs: entry.Duration.Microseconds(),
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping turn",
			zap.String("npc", entry.NPC), zap.String("session", entry.SessionID))
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.TalkLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
