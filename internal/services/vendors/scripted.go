package vendors

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
	"github.com/ternarybob/rateprobe/internal/services/match"
)

// ScriptedAdapter drives a vendor site from a Definition
type ScriptedAdapter struct {
	def    *Definition
	logger arbor.ILogger
	getenv func(string) string
}

func NewScriptedAdapter(def *Definition, logger arbor.ILogger) *ScriptedAdapter {
	return &ScriptedAdapter{
		def:    def,
		logger: logger,
		getenv: os.Getenv,
	}
}

func (a *ScriptedAdapter) ID() string {
	return a.def.ID
}

func (a *ScriptedAdapter) Search(ctx context.Context, task interfaces.VendorTask) error {
	page := task.Page()
	req := task.Request()

	task.Progress(ctx, fmt.Sprintf("Navigating to %s.", a.def.DisplayName()))
	if err := page.Navigate(ctx, a.def.StartURL); err != nil {
		return err
	}

	loggedIn, err := a.login(ctx, task)
	if err != nil {
		return err
	}
	if loggedIn {
		if err := page.Navigate(ctx, a.def.StartURL); err != nil {
			return err
		}
	}

	var candidates []models.Candidate
	relaxed, err := match.Relax(ctx, req.Hotel.DisplayName, func(ctx context.Context, query string) (match.AttemptResult, error) {
		task.Progress(ctx, fmt.Sprintf("Trying search for '%s'.", query))

		found, err := a.runQuery(ctx, page, query, req)
		if err != nil {
			return match.AttemptResult{}, err
		}
		candidates = found

		result := match.AttemptResult{HasResults: len(found) > 0}
		for _, c := range found {
			if c.Name == req.Hotel.DisplayName {
				result.ExactMatch = true
				break
			}
		}
		return result, nil
	})
	if err != nil {
		return err
	}

	if !relaxed.Found {
		a.logger.Debug().
			Str("vendor", a.def.ID).
			Int("attempts", relaxed.Attempts).
			Msg("No results after query relaxation")
		task.NoResults(ctx)
		return nil
	}

	task.Progress(ctx, fmt.Sprintf("Matching %d results.", len(candidates)))
	best := task.Resolver().Resolve(ctx, models.DedupeByLink(candidates), req.Hotel.DisplayName, req.Hotel.FormattedAddress)
	if best == nil {
		task.NoResults(ctx)
		return nil
	}

	task.Results(ctx, best)
	return nil
}

// login fills the login form if the start page asks for it. Returns whether a login happened.
func (a *ScriptedAdapter) login(ctx context.Context, task interfaces.VendorTask) (bool, error) {
	step := a.def.Login
	if step == nil {
		return false, nil
	}

	page := task.Page()
	required, err := page.Exists(ctx, step.Detect)
	if err != nil {
		return false, err
	}
	if !required {
		return false, nil
	}

	username := a.getenv(step.UsernameEnv)
	password := a.getenv(step.PasswordEnv)
	if username == "" || password == "" {
		return false, fmt.Errorf("%w: %s and %s must be set", interfaces.ErrVendorLoginRequired, step.UsernameEnv, step.PasswordEnv)
	}

	task.Progress(ctx, "Logging in.")
	if err := page.Fill(ctx, step.Username, username); err != nil {
		return false, err
	}
	if err := page.Fill(ctx, step.Password, password); err != nil {
		return false, err
	}
	if err := page.Click(ctx, step.Submit); err != nil {
		return false, err
	}

	if err := a.verify(ctx, task); err != nil {
		return false, err
	}

	still, err := page.Exists(ctx, step.Detect)
	if err != nil {
		return false, err
	}
	if still {
		return false, fmt.Errorf("%w: credentials were rejected", interfaces.ErrVendorLoginRequired)
	}

	if err := task.SaveCookies(ctx); err != nil {
		a.logger.Warn().Err(err).Str("vendor", a.def.ID).Msg("Failed to save cookies after login")
	}
	task.Progress(ctx, "Login successful.")
	return true, nil
}

// verify completes a one-time code challenge when one is shown
func (a *ScriptedAdapter) verify(ctx context.Context, task interfaces.VendorTask) error {
	step := a.def.OTP
	if step == nil {
		return nil
	}

	page := task.Page()
	challenged, err := page.Exists(ctx, step.Detect)
	if err != nil || !challenged {
		return err
	}

	code, err := task.RequestHumanInput(ctx)
	if err != nil {
		return err
	}
	if err := page.Fill(ctx, step.Input, code); err != nil {
		return err
	}
	if err := page.Click(ctx, step.Submit); err != nil {
		return err
	}
	task.Progress(ctx, "Verification code submitted.")
	return nil
}

// runQuery performs one search and returns the extracted candidates
func (a *ScriptedAdapter) runQuery(ctx context.Context, page interfaces.Page, query string, req *models.SearchRequest) ([]models.Candidate, error) {
	step := a.def.Search

	if step.URL != "" {
		if err := page.Navigate(ctx, a.def.QueryURL(query, req)); err != nil {
			return nil, err
		}
	} else {
		if err := page.Fill(ctx, step.Input, query); err != nil {
			return nil, err
		}
		var err error
		if step.Submit != "" {
			err = page.Click(ctx, step.Submit)
		} else {
			err = page.Submit(ctx, step.Input)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := pause(ctx, a.def.SettleDuration()); err != nil {
		return nil, err
	}

	if step.NoResults != "" {
		empty, err := page.Exists(ctx, step.NoResults)
		if err != nil {
			return nil, err
		}
		if empty {
			return nil, nil
		}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	pageURL, err := page.URL(ctx)
	if err != nil {
		pageURL = page.LastURL()
	}
	return ExtractCandidates(html, pageURL, a.def.Results)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
