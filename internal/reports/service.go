package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort exposes the aggregation queries the generator relies on.
type RepositoryPort interface {
	AccountActivity(ctx context.Context, companyID int64, from, to *time.Time) ([]AccountActivity, error)
	GeneralLedgerLines(ctx context.Context, companyID int64, from, to time.Time) ([]GeneralLedgerLine, error)
	CompanyIDs(ctx context.Context) ([]int64, error)
}

// Service coordinates statement generation with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
}

// NewService wires a Repository with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Invalidate drops every cached statement. Called after each posting.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// CompanyIDs lists companies with ledger activity, for the nightly
// integrity scan.
func (s *Service) CompanyIDs(ctx context.Context) ([]int64, error) {
	return s.repo.CompanyIDs(ctx)
}

// GetTrialBalance builds the trial balance from entries dated on or before
// asOf, or all entries when asOf is nil.
func (s *Service) GetTrialBalance(ctx context.Context, companyID int64, asOf *time.Time) (TrialBalance, error) {
	var tb TrialBalance
	key := s.key("tb", companyID, asOf)
	err := s.fetch(ctx, key, &tb, func(ctx context.Context) (interface{}, error) {
		var to *time.Time
		if asOf != nil {
			// asOf is inclusive; the repository upper bound is exclusive.
			end := asOf.AddDate(0, 0, 1)
			to = &end
		}
		activity, err := s.repo.AccountActivity(ctx, companyID, nil, to)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(activity, asOf), nil
	})
	return tb, err
}

// GetGeneralLedger returns the chronological entry listing for [from, to).
func (s *Service) GetGeneralLedger(ctx context.Context, companyID int64, from, to time.Time) (GeneralLedger, error) {
	var gl GeneralLedger
	key := s.key("gl", companyID, &from, &to)
	err := s.fetch(ctx, key, &gl, func(ctx context.Context) (interface{}, error) {
		lines, err := s.repo.GeneralLedgerLines(ctx, companyID, from, to)
		if err != nil {
			return nil, err
		}
		return BuildGeneralLedger(lines, from, to), nil
	})
	return gl, err
}

// GetProfitAndLoss builds the income statement for [from, to).
func (s *Service) GetProfitAndLoss(ctx context.Context, companyID int64, from, to time.Time) (ProfitAndLoss, error) {
	var pl ProfitAndLoss
	key := s.key("pl", companyID, &from, &to)
	err := s.fetch(ctx, key, &pl, func(ctx context.Context) (interface{}, error) {
		activity, err := s.repo.AccountActivity(ctx, companyID, &from, &to)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(activity, from, to), nil
	})
	return pl, err
}

// GetBalanceSheet builds the balance sheet cumulative through asOf inclusive.
func (s *Service) GetBalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (BalanceSheet, error) {
	var bs BalanceSheet
	key := s.key("bs", companyID, &asOf)
	err := s.fetch(ctx, key, &bs, func(ctx context.Context) (interface{}, error) {
		end := asOf.AddDate(0, 0, 1)
		activity, err := s.repo.AccountActivity(ctx, companyID, nil, &end)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(activity, asOf), nil
	})
	return bs, err
}

// fetch de-duplicates concurrent builds of the same statement before asking
// the cache. The flight hands its result back as marshalled bytes; nothing
// inside it touches caller-owned memory, so a caller that gives up on
// ctx.Done() leaves the shared build unaffected.
func (s *Service) fetch(ctx context.Context, base string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, base)
	if err != nil {
		return err
	}
	// The build outlives any single caller once shared.
	flightCtx := context.WithoutCancel(ctx)
	resultCh := s.group.DoChan(key, func() (interface{}, error) {
		return s.cache.FetchRaw(flightCtx, key, loader)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return res.Err
		}
		raw, ok := res.Val.([]byte)
		if !ok {
			return fmt.Errorf("reports: unexpected flight payload %T", res.Val)
		}
		return json.Unmarshal(raw, dest)
	}
}

func (s *Service) key(kind string, companyID int64, dates ...*time.Time) string {
	key := fmt.Sprintf("reports:%s:%s", kind, strconv.FormatInt(companyID, 10))
	for _, d := range dates {
		if d == nil {
			key += ":-"
			continue
		}
		key += ":" + d.Format("20060102")
	}
	return key
}
