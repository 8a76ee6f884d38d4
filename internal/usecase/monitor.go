// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-monitor/internal/domain"
	"github.com/naka-gawa/repo-monitor/internal/evaluator"
	"github.com/naka-gawa/repo-monitor/internal/gateway"
	"github.com/naka-gawa/repo-monitor/internal/notify"
)

// Stage names, in the order a full cycle can execute them.
const (
	StageFetchData          = "fetch_data"
	StageAnalyzeIssues      = "analyze_issues"
	StageAnalyzePRs         = "analyze_prs"
	StageSendIssueAlert     = "send_issue_alert"
	StageSendPRNotification = "send_pr_notification"
	StageUpdateState        = "update_state"
)

// Decision routes an analysis either to its send stage or straight to finalization.
type Decision int

const (
	Skip Decision = iota
	Alert
)

func (d Decision) String() string {
	if d == Alert {
		return "alert"
	}
	return "skip"
}

func decide(n int) Decision {
	if n > 0 {
		return Alert
	}
	return Skip
}

// IssueAnalysis is the output of analyze_issues.
type IssueAnalysis struct {
	Issues   []domain.Issue
	Decision Decision
}

// PRAnalysis is the output of analyze_prs.
type PRAnalysis struct {
	PullRequests []domain.PullRequest
	Decision     Decision
}

// Delta is what one branch contributes to the cross-cycle memory.
type Delta struct {
	Sent     []string
	Failures int
}

// CycleResult is the finalized state of one cycle plus what happened during it.
type CycleResult struct {
	State             *domain.MonitorState
	IssuesFetched     int
	PRsFetched        int
	StaleIssues       int
	ReportablePRs     int
	NotificationsSent int
	SendFailures      int
	Stages            []string
}

// Monitor runs the monitoring workflow for a single cycle.
// It orchestrates fetching, evaluation, notification and state finalization.
type Monitor struct {
	fetcher       gateway.Fetcher
	sink          notify.Sink
	lookbackHours int
	logger        *log.Logger
	now           func() time.Time
}

// NewMonitor creates a new Monitor instance.
func NewMonitor(fetcher gateway.Fetcher, sink notify.Sink, lookbackHours int, logger *log.Logger) *Monitor {
	return &Monitor{
		fetcher:       fetcher,
		sink:          sink,
		lookbackHours: lookbackHours,
		logger:        logger,
		now:           time.Now,
	}
}

type snapshot struct {
	issues []domain.Issue
	prs    []domain.PullRequest
}

type branchResult struct {
	stages []string
	delta  Delta
}

// Run executes one cycle against a copy of state and returns the finalized copy.
// A fetch failure aborts the cycle before any analysis or send stage runs;
// send failures are logged and the cycle still finalizes.
func (m *Monitor) Run(ctx context.Context, state *domain.MonitorState) (*CycleResult, error) {
	m.logger.Printf("Usecase: Starting monitoring cycle for %s...", state.FullName())
	working := state.Clone()

	snap, err := m.fetchData(ctx, working)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageFetchData, err)
	}
	working.Issues = snap.issues
	working.PullRequests = snap.prs

	now := m.now()
	var (
		issueAnalysis IssueAnalysis
		prAnalysis    PRAnalysis
		issueBranch   branchResult
		prBranch      branchResult
	)

	// The two branches read the immutable snapshot and write disjoint variables.
	var eg errgroup.Group
	eg.Go(func() error {
		issueAnalysis = AnalyzeIssues(snap.issues, working.ThresholdDays, now)
		m.logger.Printf("[%s] %d issue(s) at or beyond the %d-day threshold", StageAnalyzeIssues, len(issueAnalysis.Issues), working.ThresholdDays)
		issueBranch = m.runIssueBranch(ctx, working, issueAnalysis)
		return nil
	})
	eg.Go(func() error {
		prAnalysis = AnalyzePullRequests(snap.prs)
		m.logger.Printf("[%s] %d pull request(s) merged or closed", StageAnalyzePRs, len(prAnalysis.PullRequests))
		prBranch = m.runPRBranch(ctx, working, prAnalysis)
		return nil
	})
	_ = eg.Wait()

	working.AlertIssues = issueAnalysis.Issues
	working.ShouldAlert = issueAnalysis.Decision == Alert
	working.NotificationPRs = prAnalysis.PullRequests
	working.ShouldNotify = prAnalysis.Decision == Alert

	UpdateState(working, m.now(), issueBranch.delta, prBranch.delta)
	m.logger.Printf("[%s] %d notification(s) recorded in total", StageUpdateState, len(working.SentNotifications))

	stages := []string{StageFetchData}
	stages = append(stages, issueBranch.stages...)
	stages = append(stages, prBranch.stages...)
	stages = append(stages, StageUpdateState)

	result := &CycleResult{
		State:             working,
		IssuesFetched:     len(snap.issues),
		PRsFetched:        len(snap.prs),
		StaleIssues:       len(issueAnalysis.Issues),
		ReportablePRs:     len(prAnalysis.PullRequests),
		NotificationsSent: len(issueBranch.delta.Sent) + len(prBranch.delta.Sent),
		SendFailures:      issueBranch.delta.Failures + prBranch.delta.Failures,
		Stages:            stages,
	}
	m.logger.Println("Usecase: Monitoring cycle complete.")
	return result, nil
}

// fetchData loads open issues and recent pull requests concurrently. Both must succeed.
func (m *Monitor) fetchData(ctx context.Context, state *domain.MonitorState) (*snapshot, error) {
	if err := domain.ValidateRepository(state.Owner, state.Name); err != nil {
		return nil, err
	}
	m.logger.Printf("[%s] Fetching data for %s...", StageFetchData, state.FullName())

	snap := &snapshot{}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		snap.issues, err = m.fetcher.FetchOpenIssues(egCtx, state.Owner, state.Name)
		return err
	})
	eg.Go(func() error {
		var err error
		snap.prs, err = m.fetcher.FetchRecentPullRequests(egCtx, state.Owner, state.Name, m.lookbackHours)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	m.logger.Printf("[%s] Found %d open issue(s) and %d recent pull request(s)", StageFetchData, len(snap.issues), len(snap.prs))
	return snap, nil
}

func (m *Monitor) runIssueBranch(ctx context.Context, state *domain.MonitorState, analysis IssueAnalysis) branchResult {
	res := branchResult{stages: []string{StageAnalyzeIssues}}
	switch analysis.Decision {
	case Alert:
		res.stages = append(res.stages, StageSendIssueAlert)
		res.delta = m.sendIssueAlert(ctx, state, analysis.Issues)
	case Skip:
	}
	return res
}

func (m *Monitor) runPRBranch(ctx context.Context, state *domain.MonitorState, analysis PRAnalysis) branchResult {
	res := branchResult{stages: []string{StageAnalyzePRs}}
	switch analysis.Decision {
	case Alert:
		res.stages = append(res.stages, StageSendPRNotification)
		res.delta = m.sendPRNotification(ctx, state, analysis.PullRequests)
	case Skip:
	}
	return res
}

func (m *Monitor) sendIssueAlert(ctx context.Context, state *domain.MonitorState, issues []domain.Issue) Delta {
	m.logger.Printf("[%s] Sending issue alert for %d issue(s)...", StageSendIssueAlert, len(issues))
	subject, body, err := notify.ComposeIssueAlert(state.Name, state.RepositoryURL(), state.ThresholdDays, issues, m.now())
	if err != nil {
		m.logger.Printf("[%s] Failed to compose issue alert: %v", StageSendIssueAlert, err)
		return Delta{Failures: 1}
	}
	return m.deliver(ctx, StageSendIssueAlert, domain.NotificationIssueAlert, state.Recipients, subject, body)
}

func (m *Monitor) sendPRNotification(ctx context.Context, state *domain.MonitorState, prs []domain.PullRequest) Delta {
	m.logger.Printf("[%s] Sending pull request notification for %d pull request(s)...", StageSendPRNotification, len(prs))
	subject, body, err := notify.ComposePRNotification(state.Name, state.RepositoryURL(), prs, m.now())
	if err != nil {
		m.logger.Printf("[%s] Failed to compose pull request notification: %v", StageSendPRNotification, err)
		return Delta{Failures: 1}
	}
	return m.deliver(ctx, StageSendPRNotification, domain.NotificationPRUpdate, state.Recipients, subject, body)
}

// deliver makes exactly one send attempt. Nothing is recorded unless it succeeds.
func (m *Monitor) deliver(ctx context.Context, stage, kind string, recipients []string, subject, body string) Delta {
	ok, err := m.sink.Send(ctx, recipients, subject, body)
	if err != nil {
		m.logger.Printf("[%s] Notification rejected: %v", stage, err)
		return Delta{Failures: 1}
	}
	if !ok {
		m.logger.Printf("[%s] Notification delivery failed", stage)
		return Delta{Failures: 1}
	}
	id := domain.NotificationID(kind, m.now())
	m.logger.Printf("[%s] Notification sent: %s", stage, id)
	return Delta{Sent: []string{id}}
}

// AnalyzeIssues selects stale issues and decides whether to alert.
func AnalyzeIssues(issues []domain.Issue, thresholdDays int, now time.Time) IssueAnalysis {
	stale := evaluator.SelectStaleIssues(issues, thresholdDays, now)
	return IssueAnalysis{Issues: stale, Decision: decide(len(stale))}
}

// AnalyzePullRequests selects reportable pull requests and decides whether to notify.
func AnalyzePullRequests(prs []domain.PullRequest) PRAnalysis {
	reportable := evaluator.SelectReportablePullRequests(prs)
	return PRAnalysis{PullRequests: reportable, Decision: decide(len(reportable))}
}

// UpdateState finalizes a cycle: it appends the deltas' identifiers in order,
// stamps LastNotifiedAt only when something new was sent, and clears the scratch fields.
func UpdateState(state *domain.MonitorState, now time.Time, deltas ...Delta) {
	gained := 0
	for _, d := range deltas {
		state.SentNotifications = append(state.SentNotifications, d.Sent...)
		gained += len(d.Sent)
	}
	if gained > 0 {
		t := now
		state.LastNotifiedAt = &t
	}
	state.ResetScratch()
}
