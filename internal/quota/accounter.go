// Package quota implements component G: per-application, per-billing-
// cycle request and token accounting, with atomic Redis reservation on
// the hot path and Postgres snapshots for history (§4.G).
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/redis/go-redis/v9"
)

func counterKey(appID uuid.UUID) string { return fmt.Sprintf("quota_counter:%s", appID) }

// reserveScript atomically checks-and-increments a single field,
// refusing the increment when it would exceed a limit (-1 = unlimited).
// This is the single atomicity primitive §5 requires for quota
// concurrency: INCR+compare on one key, linearizable by Redis's
// single-threaded command execution.
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local limit = tonumber(ARGV[2])
local amount = tonumber(ARGV[3])
if limit >= 0 and used + amount > limit then
  return {0, used}
end
local newUsed = redis.call('HINCRBY', KEYS[1], ARGV[1], amount)
return {1, newUsed}
`)

// Usage is the point-in-time view returned to callers and rendered as
// response headers / the usage endpoint.
type Usage struct {
	RequestLimit     int64
	RequestUsed      int64
	RequestRemaining int64
	TokenLimit       int64
	TokenUsed        int64
	TokenRemaining   int64
	CycleStart       time.Time
	CycleEnd         time.Time
}

// Accounter is component G.
type Accounter struct {
	rdb       *redis.Client
	snapshots *storage.QuotaSnapshotRepo
	plans     *storage.SubscriptionRepo
}

func NewAccounter(rdb *redis.Client, snapshots *storage.QuotaSnapshotRepo, plans *storage.SubscriptionRepo) *Accounter {
	return &Accounter{rdb: rdb, snapshots: snapshots, plans: plans}
}

type counterState struct {
	cycleStart           time.Time
	cycleEnd             time.Time
	requestUsed          int64
	tokenUsed            int64
	overrideRequestLimit *int64
	overrideTokenLimit   *int64
}

func (a *Accounter) readCounter(ctx context.Context, appID uuid.UUID) (*counterState, bool, error) {
	vals, err := a.rdb.HGetAll(ctx, counterKey(appID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	cs := &counterState{}
	cs.cycleStart, _ = time.Parse(time.RFC3339, vals["cycle_start"])
	cs.cycleEnd, _ = time.Parse(time.RFC3339, vals["cycle_end"])
	fmt.Sscanf(vals["request_used"], "%d", &cs.requestUsed)
	fmt.Sscanf(vals["token_used"], "%d", &cs.tokenUsed)
	if v, ok := vals["override_request_limit"]; ok && v != "" {
		var n int64
		fmt.Sscanf(v, "%d", &n)
		cs.overrideRequestLimit = &n
	}
	if v, ok := vals["override_token_limit"]; ok && v != "" {
		var n int64
		fmt.Sscanf(v, "%d", &n)
		cs.overrideTokenLimit = &n
	}
	return cs, true, nil
}

func (a *Accounter) writeCounter(ctx context.Context, appID uuid.UUID, cs *counterState) error {
	fields := map[string]interface{}{
		"cycle_start":   cs.cycleStart.Format(time.RFC3339),
		"cycle_end":     cs.cycleEnd.Format(time.RFC3339),
		"request_used":  cs.requestUsed,
		"token_used":    cs.tokenUsed,
	}
	if cs.overrideRequestLimit != nil {
		fields["override_request_limit"] = *cs.overrideRequestLimit
	}
	if cs.overrideTokenLimit != nil {
		fields["override_token_limit"] = *cs.overrideTokenLimit
	}
	return a.rdb.HSet(ctx, counterKey(appID), fields).Err()
}

// ensureCurrentCycle opens the counter lazily on first use and rolls it
// over to a QuotaSnapshot whenever now >= cycle_end (§4.G step 1,
// §8 invariant 13: continuity of cycle_start across rollovers).
func (a *Accounter) ensureCurrentCycle(ctx context.Context, appID uuid.UUID, plan *storage.SubscriptionPlan) (*counterState, error) {
	cs, exists, err := a.readCounter(ctx, appID)
	if err != nil {
		return nil, err
	}
	period := time.Duration(plan.QuotaPeriodDays) * 24 * time.Hour

	if !exists {
		start := time.Now()
		if last, err := a.snapshots.LatestForApp(ctx, appID); err == nil {
			start = last.CycleEnd
		}
		cs = &counterState{cycleStart: start, cycleEnd: start.Add(period)}
		if err := a.writeCounter(ctx, appID, cs); err != nil {
			return nil, err
		}
		return cs, nil
	}

	if time.Now().Before(cs.cycleEnd) {
		return cs, nil
	}

	if err := a.rollover(ctx, appID, cs, plan, storage.QuotaResetAuto); err != nil {
		return nil, err
	}
	return a.readCounterOrInit(ctx, appID, cs.cycleEnd, period)
}

func (a *Accounter) readCounterOrInit(ctx context.Context, appID uuid.UUID, newStart time.Time, period time.Duration) (*counterState, error) {
	cs := &counterState{cycleStart: newStart, cycleEnd: newStart.Add(period)}
	if err := a.writeCounter(ctx, appID, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (a *Accounter) rollover(ctx context.Context, appID uuid.UUID, cs *counterState, plan *storage.SubscriptionPlan, resetType storage.QuotaResetType) error {
	reqLimit, tokLimit := effectiveLimits(cs, plan)
	if err := a.snapshots.Create(ctx, &storage.QuotaSnapshot{
		AppID:        appID,
		CycleStart:   cs.cycleStart,
		CycleEnd:     cs.cycleEnd,
		RequestLimit: reqLimit,
		RequestUsed:  cs.requestUsed,
		TokenLimit:   tokLimit,
		TokenUsed:    cs.tokenUsed,
		ResetType:    resetType,
	}); err != nil {
		return err
	}
	return a.rdb.Del(ctx, counterKey(appID)).Err()
}

func effectiveLimits(cs *counterState, plan *storage.SubscriptionPlan) (requestLimit, tokenLimit int64) {
	requestLimit = plan.RequestQuota
	if cs.overrideRequestLimit != nil {
		requestLimit = *cs.overrideRequestLimit
	}
	tokenLimit = plan.TokenQuota
	if cs.overrideTokenLimit != nil {
		tokenLimit = *cs.overrideTokenLimit
	}
	return
}

// ReserveRequest implements §4.G step 2 for a non-LLM call: +1 to
// request_used if under limit, otherwise request_quota_exceeded without
// mutating state (§8 invariant 9).
func (a *Accounter) ReserveRequest(ctx context.Context, appID, planID uuid.UUID) error {
	plan, err := a.plans.GetPlanByID(ctx, planID)
	if err != nil {
		return errs.New(errs.KindQuotaNotConfigured, "application has no bound subscription plan")
	}
	cs, err := a.ensureCurrentCycle(ctx, appID, plan)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to open quota cycle", err)
	}
	reqLimit, _ := effectiveLimits(cs, plan)

	res, err := reserveScript.Run(ctx, a.rdb, []string{counterKey(appID)}, "request_used", reqLimit, 1).Result()
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to reserve request quota", err)
	}
	ok := res.([]interface{})[0].(int64) == 1
	if !ok {
		return errs.New(errs.KindRequestQuotaExceeded, "request quota exceeded")
	}
	return nil
}

// ReserveTokens implements §4.G step 2 for an LLM call's token estimate.
func (a *Accounter) ReserveTokens(ctx context.Context, appID, planID uuid.UUID, estimated int64) error {
	plan, err := a.plans.GetPlanByID(ctx, planID)
	if err != nil {
		return errs.New(errs.KindQuotaNotConfigured, "application has no bound subscription plan")
	}
	cs, err := a.ensureCurrentCycle(ctx, appID, plan)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to open quota cycle", err)
	}
	_, tokLimit := effectiveLimits(cs, plan)

	res, err := reserveScript.Run(ctx, a.rdb, []string{counterKey(appID)}, "token_used", tokLimit, estimated).Result()
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to reserve token quota", err)
	}
	ok := res.([]interface{})[0].(int64) == 1
	if !ok {
		return errs.New(errs.KindTokenQuotaExceeded, "token quota exceeded")
	}
	return nil
}

// CommitTokens replaces a reservation with the actual usage an upstream
// LLM call reported (§4.G step 3): the delta (positive or negative) is
// applied directly, never re-checked against the limit — the
// reservation already gated admission.
func (a *Accounter) CommitTokens(ctx context.Context, appID uuid.UUID, reserved, actual int64) error {
	delta := actual - reserved
	if delta == 0 {
		return nil
	}
	return a.rdb.HIncrBy(ctx, counterKey(appID), "token_used", delta).Err()
}

// Usage implements the `usage(app_id)` admin operation.
func (a *Accounter) Usage(ctx context.Context, appID, planID uuid.UUID) (*Usage, error) {
	plan, err := a.plans.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, errs.New(errs.KindQuotaNotConfigured, "application has no bound subscription plan")
	}
	cs, err := a.ensureCurrentCycle(ctx, appID, plan)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to open quota cycle", err)
	}
	reqLimit, tokLimit := effectiveLimits(cs, plan)
	return &Usage{
		RequestLimit:     reqLimit,
		RequestUsed:      cs.requestUsed,
		RequestRemaining: remaining(reqLimit, cs.requestUsed),
		TokenLimit:       tokLimit,
		TokenUsed:        cs.tokenUsed,
		TokenRemaining:   remaining(tokLimit, cs.tokenUsed),
		CycleStart:       cs.cycleStart,
		CycleEnd:         cs.cycleEnd,
	}, nil
}

func remaining(limit, used int64) int64 {
	if limit < 0 {
		return -1
	}
	r := limit - used
	if r < 0 {
		return 0
	}
	return r
}

// Override sets admin-controlled override limits, immediately active
// (§4.G admin operations).
func (a *Accounter) Override(ctx context.Context, appID, planID uuid.UUID, requestLimit, tokenLimit *int64) error {
	plan, err := a.plans.GetPlanByID(ctx, planID)
	if err != nil {
		return errs.New(errs.KindQuotaNotConfigured, "application has no bound subscription plan")
	}
	cs, err := a.ensureCurrentCycle(ctx, appID, plan)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to open quota cycle", err)
	}
	if requestLimit != nil {
		cs.overrideRequestLimit = requestLimit
	}
	if tokenLimit != nil {
		cs.overrideTokenLimit = tokenLimit
	}
	return a.writeCounter(ctx, appID, cs)
}

// Reset forces an immediate rollover, emitting a manual snapshot
// (§4.G admin operations).
func (a *Accounter) Reset(ctx context.Context, appID, planID uuid.UUID) error {
	plan, err := a.plans.GetPlanByID(ctx, planID)
	if err != nil {
		return errs.New(errs.KindQuotaNotConfigured, "application has no bound subscription plan")
	}
	cs, exists, err := a.readCounter(ctx, appID)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to read quota counter", err)
	}
	if !exists {
		return nil
	}
	cs.cycleEnd = time.Now()
	return a.rollover(ctx, appID, cs, plan, storage.QuotaResetManual)
}
