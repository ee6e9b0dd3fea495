// Package autopilot is a small chromedp-driven collaborator demonstrating
// the intended consult-act-record loop: before acting on an uncertain
// selector it asks the store for the best-ranked candidate, performs the
// action, and records the outcome either way. Browser mechanics live here;
// the store knows nothing about browsers.
package autopilot

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/agentdb/api/schemas"
	"github.com/xkilldash9x/agentdb/internal/agentdb"
	"github.com/xkilldash9x/agentdb/internal/config"
	"github.com/xkilldash9x/agentdb/internal/recorder"
)

// Action is one step of a replay plan.
type Action struct {
	// Type is "click", "fill", or "submit".
	Type string `json:"type"`
	// Selector may be empty, in which case the store is consulted for the
	// best-ranked selector matching (Type, URL).
	Selector string `json:"selector,omitempty"`
	URL      string `json:"url"`
	Value    string `json:"value,omitempty"`
	// FieldType feeds the recorder's redaction (e.g. "password").
	FieldType string `json:"field_type,omitempty"`
}

// Autopilot executes replay plans against a headless browser.
type Autopilot struct {
	session *recorder.Session
	cfg     config.AutopilotConfig
	logger  *zap.Logger
	limiter *rate.Limiter
}

// New creates an Autopilot recording into the given database.
func New(cfg config.AutopilotConfig, db *agentdb.Database, logger *zap.Logger) *Autopilot {
	return &Autopilot{
		session: recorder.NewSession(db, "autopilot", logger),
		cfg:     cfg,
		logger:  logger.Named("autopilot"),
		limiter: rate.NewLimiter(rate.Limit(cfg.ActionsPerSecond), 1),
	}
}

// Run opens a browser, navigates to the first action's URL, and executes
// the plan in order. Failed actions are recorded and do not abort the run;
// the next step may well not depend on them.
func (a *Autopilot) Run(ctx context.Context, actions []Action) error {
	if len(actions) == 0 {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.cfg.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := a.navigate(browserCtx, actions[0].URL); err != nil {
		return err
	}

	for i, action := range actions {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := a.step(browserCtx, action); err != nil {
			a.logger.Warn("Replay step failed.",
				zap.Int("step", i),
				zap.String("type", action.Type),
				zap.Error(err))
		}
	}
	return nil
}

// navigate loads the starting page with the network domain enabled, within
// the configured navigation timeout.
func (a *Autopilot) navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, a.cfg.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(url),
	); err != nil {
		return fmt.Errorf("%s: navigation to %s failed: %w", agentdb.ErrCodeNavigation, url, err)
	}
	return nil
}

// step resolves the selector (consulting the store when the plan leaves it
// open), performs the action, and records the outcome.
func (a *Autopilot) step(ctx context.Context, action Action) error {
	selector := action.Selector
	if selector == "" {
		suggestions := a.session.Suggest(schemas.QueryContext{
			Action: action.Type,
			URL:    action.URL,
		}, 1)
		if len(suggestions) == 0 || suggestions[0].Similarity < a.cfg.MinSimilarity {
			return fmt.Errorf("%s: no selector given and no confident suggestion for %q on %s",
				agentdb.ErrCodeElementNotFound, action.Type, action.URL)
		}
		selector = suggestions[0].Selector
		a.logger.Debug("Using suggested selector.",
			zap.String("selector", selector),
			zap.Float64("score", suggestions[0].Score))
	}

	actionCtx, cancel := context.WithTimeout(ctx, a.cfg.ActionTimeout)
	defer cancel()

	err := chromedp.Run(actionCtx, a.tasks(action, selector))
	if err != nil {
		code := agentdb.ErrCodeExecution
		if actionCtx.Err() == context.DeadlineExceeded {
			code = agentdb.ErrCodeTimeout
		}
		if _, recErr := a.session.RecordFailure(action.Type, selector, action.URL, code, action.FieldType); recErr != nil {
			a.logger.Error("Failed to record failure.", zap.Error(recErr))
		}
		return fmt.Errorf("%s %q failed: %w", action.Type, selector, err)
	}

	if _, recErr := a.session.RecordSuccess(action.Type, selector, action.URL, action.Value, action.FieldType); recErr != nil {
		a.logger.Error("Failed to record success.", zap.Error(recErr))
	}
	return nil
}

// tasks builds the chromedp task list for one action.
func (a *Autopilot) tasks(action Action, selector string) chromedp.Tasks {
	switch strings.ToLower(action.Type) {
	case "fill":
		return chromedp.Tasks{
			chromedp.ScrollIntoView(selector, chromedp.ByQuery),
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Clear(selector, chromedp.ByQuery),
			chromedp.SendKeys(selector, action.Value, chromedp.ByQuery),
		}
	case "submit":
		return chromedp.Tasks{
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Submit(selector, chromedp.ByQuery),
		}
	default: // click
		return chromedp.Tasks{
			chromedp.ScrollIntoView(selector, chromedp.ByQuery),
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Click(selector, chromedp.ByQuery),
		}
	}
}
