package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/repository"
)

// GetRecord reads through the snapshot cache.
func (s *RegistryServiceImpl) GetRecord(ctx context.Context, addr model.Address) (model.Record, error) {
	data, ok, err := s.cache.Get(ctx, addr)
	switch {
	case err != nil:
		s.metrics.CacheResult("error")
		s.log.Warn("cache get", zap.Stringer("address", addr), zap.Error(err))
	case ok:
		if rec, derr := model.Decode(data); derr == nil {
			s.metrics.CacheResult("hit")
			return rec, nil
		}
		s.metrics.CacheResult("error")
	default:
		s.metrics.CacheResult("miss")
	}

	gen := s.gen.Load()
	rec, err := s.store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, addr, rec, gen)
	return rec, nil
}

// fill caches rec unless a commit landed after it was read at generation gen.
// A commit racing the Set is caught by the second check, which drops the entry
// again; the commit's own Invalidate covers a Set that lands after it. Commits
// made by other replicas are only bounded by the cache TTL.
func (s *RegistryServiceImpl) fill(ctx context.Context, addr model.Address, rec model.Record, gen uint64) {
	if s.gen.Load() != gen {
		return
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, addr, data); err != nil {
		s.log.Warn("cache set", zap.Stringer("address", addr), zap.Error(err))
		return
	}
	if s.gen.Load() != gen {
		if err := s.cache.Invalidate(ctx, addr); err != nil {
			s.log.Warn("cache invalidate", zap.Stringer("address", addr), zap.Error(err))
		}
	}
}

func (s *RegistryServiceImpl) ListCarsByOwner(ctx context.Context, owner model.Pubkey) ([]repository.Entry, error) {
	return s.filter(ctx, model.KindCar, func(r model.Record) bool {
		return r.(*model.Car).Owner == owner
	})
}

func (s *RegistryServiceImpl) ListBuyRequests(ctx context.Context, car model.Address) ([]repository.Entry, error) {
	return s.filter(ctx, model.KindBuyRequest, func(r model.Record) bool {
		return r.(*model.BuyRequest).Car == car
	})
}

func (s *RegistryServiceImpl) ListCarReports(ctx context.Context, car model.Address) ([]repository.Entry, error) {
	return s.filter(ctx, model.KindCarReport, func(r model.Record) bool {
		return r.(*model.CarReport).Car == car
	})
}

func (s *RegistryServiceImpl) ListConformityReports(ctx context.Context, car model.Address) ([]repository.Entry, error) {
	return s.filter(ctx, model.KindConformityReport, func(r model.Record) bool {
		return r.(*model.ConformityReport).Car == car
	})
}

func (s *RegistryServiceImpl) InspectionStatus(car *model.Car) model.InspectionStatus {
	return car.EffectiveInspectionStatus(s.now().Unix(), int64(s.validity/time.Second))
}

func (s *RegistryServiceImpl) filter(ctx context.Context, kind model.Kind, keep func(model.Record) bool) ([]repository.Entry, error) {
	all, err := s.store.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Entry, 0, len(all))
	for _, e := range all {
		if keep(e.Record) {
			out = append(out, e)
		}
	}
	return out, nil
}
