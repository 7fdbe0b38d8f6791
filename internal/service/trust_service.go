package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	rediscache "github.com/ignatzorin/tradehub-backend/internal/cache/redis"
	"github.com/ignatzorin/tradehub-backend/internal/engine/trust"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

const (
	maxBatchSize     = 100
	batchConcurrency = 8
)

type TrustProfileSource interface {
	GetProfile(ctx context.Context, companyID uuid.UUID) (trust.Profile, error)
}

type TrustSnapshotStore interface {
	Get(ctx context.Context, companyID uuid.UUID) (rediscache.TrustSnapshot, error)
	Set(ctx context.Context, snap rediscache.TrustSnapshot) error
}

// TrustResult: оценка компании и её источник.
type TrustResult struct {
	CompanyID  uuid.UUID        `json:"company_id"`
	Assessment trust.Assessment `json:"assessment"`
	ComputedAt time.Time        `json:"computed_at"`
	Cached     bool             `json:"cached"`
}

// BatchItem: результат по одной компании в пакетной оценке.
type BatchItem struct {
	CompanyID uuid.UUID    `json:"company_id"`
	Result    *TrustResult `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// TrustService считает оценки доверия по агрегатам из БД и кэширует снимки.
type TrustService struct {
	profiles  TrustProfileSource
	snapshots TrustSnapshotStore
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewTrustService создаёт сервис. snapshots может быть nil, тогда оценка всегда считается заново.
func NewTrustService(profiles TrustProfileSource, snapshots TrustSnapshotStore, log logrus.FieldLogger) *TrustService {
	return &TrustService{
		profiles:  profiles,
		snapshots: snapshots,
		log:       log,
		now:       time.Now,
	}
}

// ScoreCompany возвращает оценку компании. refresh игнорирует кэш.
func (s *TrustService) ScoreCompany(ctx context.Context, companyID uuid.UUID, refresh bool) (*TrustResult, error) {
	if !refresh && s.snapshots != nil {
		snap, err := s.snapshots.Get(ctx, companyID)
		switch {
		case err == nil:
			return &TrustResult{CompanyID: companyID, Assessment: snap.Assessment, ComputedAt: snap.ComputedAt, Cached: true}, nil
		case !errors.Is(err, rediscache.ErrMiss):
			s.log.WithError(err).WithField("company_id", companyID).Warn("trust: кэш недоступен, считаем заново")
		}
	}

	profile, err := s.profiles.GetProfile(ctx, companyID)
	if err != nil {
		return nil, err
	}
	assessment, err := trust.Score(profile)
	if err != nil {
		return nil, err
	}

	result := &TrustResult{CompanyID: companyID, Assessment: assessment, ComputedAt: s.now().UTC()}
	if s.snapshots != nil {
		if err := s.snapshots.Set(ctx, rediscache.TrustSnapshot{
			CompanyID:  companyID,
			Assessment: assessment,
			ComputedAt: result.ComputedAt,
		}); err != nil {
			s.log.WithError(err).WithField("company_id", companyID).Warn("trust: не удалось сохранить снимок")
		}
	}

	s.log.WithFields(logrus.Fields{
		"company_id": companyID,
		"score":      assessment.TrustScore,
		"risk":       assessment.RiskLevel,
	}).Debug("trust: оценка пересчитана")

	return result, nil
}

// ScoreProfile оценивает произвольный профиль без обращения к БД.
func (s *TrustService) ScoreProfile(profile trust.Profile) (trust.Assessment, error) {
	return trust.Score(profile)
}

// ScoreBatch оценивает компании параллельно. Ошибка по одной компании не прерывает остальные.
// Порядок результатов совпадает с порядком ids.
func (s *TrustService) ScoreBatch(ctx context.Context, ids []uuid.UUID, refresh bool) ([]BatchItem, error) {
	if len(ids) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "список компаний пуст")
	}
	if len(ids) > maxBatchSize {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "не более %d компаний за запрос", maxBatchSize)
	}

	items := make([]BatchItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			items[i].CompanyID = id
			res, err := s.ScoreCompany(gctx, id, refresh)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
