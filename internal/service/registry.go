// Package service runs registry transitions against the record store and publishes their effects.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/car-registry/internal/cache"
	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/events"
	"github.com/and161185/car-registry/internal/limiter"
	"github.com/and161185/car-registry/internal/metrics"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/registry"
	"github.com/and161185/car-registry/internal/repository"
)

// RegistryService defines every registry transition and the snapshot queries.
type RegistryService interface {
	RegisterUser(ctx context.Context, call registry.Call, in registry.RegisterUserInput) (registry.Effects, error)
	VerifyUser(ctx context.Context, call registry.Call, in registry.VerifyUserInput) (registry.Effects, error)
	RegisterCar(ctx context.Context, call registry.Call, in registry.RegisterCarInput) (registry.Effects, error)
	SetForSale(ctx context.Context, call registry.Call, in registry.SetForSaleInput) (registry.Effects, error)
	CancelForSale(ctx context.Context, call registry.Call, in registry.CancelForSaleInput) (registry.Effects, error)
	RequestBuy(ctx context.Context, call registry.Call, in registry.RequestBuyInput) (registry.Effects, error)
	AcceptBuyRequest(ctx context.Context, call registry.Call, in registry.DecideBuyInput) (registry.Effects, error)
	RejectBuyRequest(ctx context.Context, call registry.Call, in registry.DecideBuyInput) (registry.Effects, error)
	TransferCar(ctx context.Context, call registry.Call, in registry.TransferCarInput) (registry.Effects, error)
	IssueCarReport(ctx context.Context, call registry.Call, in registry.IssueCarReportInput) (registry.Effects, error)
	AcceptReport(ctx context.Context, call registry.Call, in registry.AcceptReportInput) (registry.Effects, error)
	IssueConformityReport(ctx context.Context, call registry.Call, in registry.IssueConformityReportInput) (registry.Effects, error)
	AcceptConformityReport(ctx context.Context, call registry.Call, in registry.AcceptConformityReportInput) (registry.Effects, error)

	// GetRecord returns the committed record at addr.
	GetRecord(ctx context.Context, addr model.Address) (model.Record, error)
	// ListCarsByOwner returns the cars currently owned by owner.
	ListCarsByOwner(ctx context.Context, owner model.Pubkey) ([]repository.Entry, error)
	// ListBuyRequests returns the buy requests filed against car.
	ListBuyRequests(ctx context.Context, car model.Address) ([]repository.Entry, error)
	// ListCarReports returns the inspection reports of car.
	ListCarReports(ctx context.Context, car model.Address) ([]repository.Entry, error)
	// ListConformityReports returns the conformity reports of car.
	ListConformityReports(ctx context.Context, car model.Address) ([]repository.Entry, error)
	// InspectionStatus is the car's inspection status with expiry applied.
	InspectionStatus(car *model.Car) model.InspectionStatus
}

type RegistryServiceImpl struct {
	store    repository.Store
	machine  *registry.Machine
	log      *zap.Logger
	pub      events.Publisher
	cache    cache.Cache
	metrics  *metrics.Metrics
	lim      limiter.Limiter
	now      func() time.Time
	validity time.Duration

	// gen counts commits; GetRecord uses it to drop snapshots read before one.
	gen atomic.Uint64
}

var _ RegistryService = (*RegistryServiceImpl)(nil)

// Option configures optional collaborators.
type Option func(*RegistryServiceImpl)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option { return func(s *RegistryServiceImpl) { s.pub = p } }

// WithCache sets the snapshot cache.
func WithCache(c cache.Cache) Option { return func(s *RegistryServiceImpl) { s.cache = c } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *RegistryServiceImpl) { s.metrics = m } }

// WithLimiter sets the submission limiter.
func WithLimiter(l limiter.Limiter) Option { return func(s *RegistryServiceImpl) { s.lim = l } }

// WithClock overrides the platform clock.
func WithClock(now func() time.Time) Option { return func(s *RegistryServiceImpl) { s.now = now } }

// WithInspectionValidity sets how long a Passed inspection stays current.
func WithInspectionValidity(d time.Duration) Option {
	return func(s *RegistryServiceImpl) { s.validity = d }
}

// NewRegistryService constructs RegistryService with required dependencies.
func NewRegistryService(store repository.Store, machine *registry.Machine, log *zap.Logger, opts ...Option) *RegistryServiceImpl {
	s := &RegistryServiceImpl{
		store:   store,
		machine: machine,
		log:     log,
		pub:     events.Nop{},
		cache:   cache.Nop{},
		lim:     limiter.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s
}

type transitionFunc func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error)

// run applies one transition atomically and, once committed, invalidates and announces it.
func (s *RegistryServiceImpl) run(ctx context.Context, name string, call registry.Call, fn transitionFunc) (registry.Effects, error) {
	start := s.now()
	call.Now = start.Unix()
	caller := call.Caller.String()
	ipHash := limiter.HashIP(PeerIP(ctx))

	allowed, retry, err := s.lim.Allow(ctx, caller, ipHash)
	if err != nil {
		return registry.Effects{}, err
	}
	if !allowed {
		s.metrics.ObserveTransition(name, errs.Code(errs.ErrRateLimited), start)
		return registry.Effects{}, fmt.Errorf("retry in %s: %w", retry.Round(time.Second), errs.ErrRateLimited)
	}

	var eff registry.Effects
	err = s.store.Atomically(ctx, func(ctx context.Context, tx repository.Tx) error {
		e, err := fn(ctx, tx, call)
		if err != nil {
			return err
		}
		for _, w := range e.Writes {
			if w.Create {
				err = tx.Create(ctx, w.Address, w.Record)
			} else {
				err = tx.Update(ctx, w.Address, w.Record)
			}
			if err != nil {
				return err
			}
		}
		eff = e
		return nil
	})
	s.metrics.ObserveTransition(name, errs.Code(err), start)
	if err != nil {
		s.noteFailure(ctx, name, caller, ipHash, err)
		return registry.Effects{}, err
	}
	_ = s.lim.Success(ctx, caller, ipHash)

	addrs := eff.Addresses()
	s.log.Info("transition committed",
		zap.String("transition", name),
		zap.String("caller", caller),
		zap.Stringers("addresses", addrs),
	)
	s.gen.Add(1)
	if err := s.cache.Invalidate(ctx, addrs...); err != nil {
		s.log.Warn("cache invalidate", zap.String("transition", name), zap.Error(err))
	}
	s.publish(ctx, name, call.Caller, addrs, start)
	return eff, nil
}

func (s *RegistryServiceImpl) noteFailure(ctx context.Context, name, caller string, ipHash []byte, err error) {
	s.log.Debug("transition rejected",
		zap.String("transition", name),
		zap.String("caller", caller),
		zap.String("code", errs.Code(err)),
		zap.Error(err),
	)
	if !errors.Is(err, errs.ErrUnauthorized) && !errors.Is(err, errs.ErrRelationMismatch) {
		return
	}
	blocked, blockFor, ferr := s.lim.Failure(ctx, caller, ipHash)
	if ferr != nil {
		s.log.Warn("limiter failure record", zap.Error(ferr))
		return
	}
	if blocked {
		s.log.Warn("caller blocked", zap.String("caller", caller), zap.Duration("for", blockFor))
	}
}

func (s *RegistryServiceImpl) publish(ctx context.Context, name string, actor model.Pubkey, addrs []model.Address, at time.Time) {
	ev, err := events.NewTransitionCommitted(name, actor, addrs, at)
	if err == nil {
		err = s.pub.Publish(ctx, ev)
	}
	if err != nil {
		s.metrics.PublishFailures.Inc()
		s.log.Error("publish event", zap.String("transition", name), zap.Error(err))
	}
}

func (s *RegistryServiceImpl) RegisterUser(ctx context.Context, call registry.Call, in registry.RegisterUserInput) (registry.Effects, error) {
	return s.run(ctx, "RegisterUser", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		occupied, err := tx.Exists(ctx, in.User)
		if err != nil {
			return registry.Effects{}, err
		}
		return s.machine.RegisterUser(call, in, occupied)
	})
}

func (s *RegistryServiceImpl) VerifyUser(ctx context.Context, call registry.Call, in registry.VerifyUserInput) (registry.Effects, error) {
	return s.run(ctx, "VerifyUser", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var verifier, target model.User
		if err := tx.Read(ctx, in.Verifier, &verifier); err != nil {
			return registry.Effects{}, err
		}
		if err := tx.Read(ctx, in.Target, &target); err != nil {
			return registry.Effects{}, err
		}
		return s.machine.VerifyUser(call, in, &verifier, &target)
	})
}

func (s *RegistryServiceImpl) RegisterCar(ctx context.Context, call registry.Call, in registry.RegisterCarInput) (registry.Effects, error) {
	return s.run(ctx, "RegisterCar", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var gov model.User
		if err := tx.Read(ctx, in.Government, &gov); err != nil {
			return registry.Effects{}, err
		}
		occupied, err := tx.Exists(ctx, in.Car)
		if err != nil {
			return registry.Effects{}, err
		}
		return s.machine.RegisterCar(call, in, &gov, occupied)
	})
}

func (s *RegistryServiceImpl) SetForSale(ctx context.Context, call registry.Call, in registry.SetForSaleInput) (registry.Effects, error) {
	return s.run(ctx, "SetForSale", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var car model.Car
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		return s.machine.SetForSale(call, in, &car)
	})
}

func (s *RegistryServiceImpl) CancelForSale(ctx context.Context, call registry.Call, in registry.CancelForSaleInput) (registry.Effects, error) {
	return s.run(ctx, "CancelForSale", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var car model.Car
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		return s.machine.CancelForSale(call, in, &car)
	})
}

func (s *RegistryServiceImpl) RequestBuy(ctx context.Context, call registry.Call, in registry.RequestBuyInput) (registry.Effects, error) {
	return s.run(ctx, "RequestBuy", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var car model.Car
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		existing, err := readOptional(ctx, tx, in.BuyRequest, &model.BuyRequest{})
		if err != nil {
			return registry.Effects{}, err
		}
		return s.machine.RequestBuy(call, in, &car, existing)
	})
}

func (s *RegistryServiceImpl) AcceptBuyRequest(ctx context.Context, call registry.Call, in registry.DecideBuyInput) (registry.Effects, error) {
	return s.decideBuy(ctx, "AcceptBuyRequest", call, in, s.machine.AcceptBuyRequest)
}

func (s *RegistryServiceImpl) RejectBuyRequest(ctx context.Context, call registry.Call, in registry.DecideBuyInput) (registry.Effects, error) {
	return s.decideBuy(ctx, "RejectBuyRequest", call, in, s.machine.RejectBuyRequest)
}

type decideFunc func(registry.Call, registry.DecideBuyInput, *model.Car, *model.BuyRequest) (registry.Effects, error)

func (s *RegistryServiceImpl) decideBuy(ctx context.Context, name string, call registry.Call, in registry.DecideBuyInput, decide decideFunc) (registry.Effects, error) {
	return s.run(ctx, name, call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var car model.Car
		var req model.BuyRequest
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		if err := tx.Read(ctx, in.BuyRequest, &req); err != nil {
			return registry.Effects{}, err
		}
		return decide(call, in, &car, &req)
	})
}

func (s *RegistryServiceImpl) TransferCar(ctx context.Context, call registry.Call, in registry.TransferCarInput) (registry.Effects, error) {
	return s.run(ctx, "TransferCar", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var car model.Car
		var newOwner model.User
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		if err := tx.Read(ctx, in.NewOwnerUser, &newOwner); err != nil {
			return registry.Effects{}, err
		}
		var req *model.BuyRequest
		if in.BuyRequest != nil {
			req = &model.BuyRequest{}
			if err := tx.Read(ctx, *in.BuyRequest, req); err != nil {
				return registry.Effects{}, err
			}
		}
		return s.machine.TransferCar(call, in, &car, &newOwner, req)
	})
}

func (s *RegistryServiceImpl) IssueCarReport(ctx context.Context, call registry.Call, in registry.IssueCarReportInput) (registry.Effects, error) {
	return s.run(ctx, "IssueCarReport", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var inspector model.User
		var car model.Car
		if err := tx.Read(ctx, in.Inspector, &inspector); err != nil {
			return registry.Effects{}, err
		}
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		occupied, err := tx.Exists(ctx, in.Report)
		if err != nil {
			return registry.Effects{}, err
		}
		return s.machine.IssueCarReport(call, in, &inspector, &car, occupied)
	})
}

func (s *RegistryServiceImpl) AcceptReport(ctx context.Context, call registry.Call, in registry.AcceptReportInput) (registry.Effects, error) {
	return s.run(ctx, "AcceptReport", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var car model.Car
		var report model.CarReport
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		if err := tx.Read(ctx, in.Report, &report); err != nil {
			return registry.Effects{}, err
		}
		return s.machine.AcceptReport(call, in, &car, &report)
	})
}

func (s *RegistryServiceImpl) IssueConformityReport(ctx context.Context, call registry.Call, in registry.IssueConformityReportInput) (registry.Effects, error) {
	return s.run(ctx, "IssueConformityReport", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var expert model.User
		var car model.Car
		if err := tx.Read(ctx, in.Expert, &expert); err != nil {
			return registry.Effects{}, err
		}
		if err := tx.Read(ctx, in.Car, &car); err != nil {
			return registry.Effects{}, err
		}
		occupied, err := tx.Exists(ctx, in.Report)
		if err != nil {
			return registry.Effects{}, err
		}
		return s.machine.IssueConformityReport(call, in, &expert, &car, occupied)
	})
}

func (s *RegistryServiceImpl) AcceptConformityReport(ctx context.Context, call registry.Call, in registry.AcceptConformityReportInput) (registry.Effects, error) {
	return s.run(ctx, "AcceptConformityReport", call, func(ctx context.Context, tx repository.Tx, call registry.Call) (registry.Effects, error) {
		var report model.ConformityReport
		if err := tx.Read(ctx, in.Report, &report); err != nil {
			return registry.Effects{}, err
		}
		return s.machine.AcceptConformityReport(call, in, &report)
	})
}

// readOptional reads addr into rec, returning nil when addr is free.
func readOptional[T model.Record](ctx context.Context, tx repository.Tx, addr model.Address, rec T) (T, error) {
	var zero T
	ok, err := tx.Exists(ctx, addr)
	if err != nil || !ok {
		return zero, err
	}
	if err := tx.Read(ctx, addr, rec); err != nil {
		return zero, err
	}
	return rec, nil
}
