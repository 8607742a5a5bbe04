// Package report turns a user's monthly spending into the HTML report email.
package report

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"sort"
	"time"

	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
)

// TopN is how many merchants the report ranks.
const TopN = 5

//go:embed templates/report.html
var templateFS embed.FS

// Rendered is a finished report ready to hand to a mailer.
type Rendered struct {
	Subject    string
	HTML       string
	ChartPNG   []byte // nil when no chart panel could be drawn
	TotalSpent core.Money
	Remaining  core.Money
}

// Options configures a Renderer. Zero fields fall back to the ExpenserFX
// name, the rupee symbol and the local time zone.
type Options struct {
	AppName  string
	Currency string
	Location *time.Location
	Logger   *applog.Logger
}

// Renderer builds report emails from aggregated spending. It is safe for
// concurrent use once constructed.
type Renderer struct {
	appName  string
	currency string
	loc      *time.Location
	tmpl     *template.Template
	panels   []panel
	logger   *applog.Logger
}

// NewRenderer parses the embedded report template and applies the option
// defaults. A template parse failure is the only error.
func NewRenderer(opts Options) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	if opts.AppName == "" {
		opts.AppName = "ExpenserFX"
	}
	if opts.Currency == "" {
		opts.Currency = "₹"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	return &Renderer{
		appName:  opts.AppName,
		currency: opts.Currency,
		loc:      opts.Location,
		tmpl:     tmpl,
		panels:   []panel{TopMerchantsPanel, DailyTrendPanel},
		logger:   opts.Logger.WithComponent(applog.ComponentReport),
	}, nil
}

// Subject returns the report subject for period, e.g.
// "ExpenserFX Monthly Report - March 2024".
func (r *Renderer) Subject(period time.Time) string {
	return fmt.Sprintf("%s Monthly Report - %s", r.appName, period.In(r.loc).Format("January 2006"))
}

type merchantLine struct {
	Name   string
	Amount string
}

type templateData struct {
	AppName     string
	Username    string
	PeriodLabel string
	Merchants   []merchantLine
	ChartSrc    template.URL
	TotalSpent  string
	Remaining   string
	OverBudget  bool
}

// Render builds the report for user. Chart panels that fail are dropped;
// if none render the report goes out without an image.
func (r *Renderer) Render(user core.User, spending core.Spending, budget core.Money, period time.Time) (Rendered, error) {
	total := spending.Total()
	remaining := budget.Sub(total)

	data := templateData{
		AppName:     r.appName,
		Username:    user.Username,
		PeriodLabel: period.In(r.loc).Format("January 2006"),
		TotalSpent:  total.Format(r.currency),
		Remaining:   remaining.Format(r.currency),
		OverBudget:  remaining.Cents < 0,
	}
	for _, m := range TopMerchants(spending, TopN) {
		data.Merchants = append(data.Merchants, merchantLine{Name: m.Merchant, Amount: m.Amount.Format(r.currency)})
	}

	chartPNG := r.renderChart(user, spending)
	if chartPNG != nil {
		data.ChartSrc = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(chartPNG))
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "report.html", data); err != nil {
		return Rendered{}, fmt.Errorf("execute report template: %w", err)
	}

	return Rendered{
		Subject:    r.Subject(period),
		HTML:       buf.String(),
		ChartPNG:   chartPNG,
		TotalSpent: total,
		Remaining:  remaining,
	}, nil
}

func (r *Renderer) renderChart(user core.User, spending core.Spending) []byte {
	if spending.IsEmpty() {
		return nil
	}
	var panels [][]byte
	for i, p := range r.panels {
		img, err := r.safePanel(p, spending)
		if err != nil {
			r.logger.Warn("Chart panel dropped", applog.FieldUserID, user.ID, "panel", i, "error", err)
			continue
		}
		panels = append(panels, img)
	}
	if len(panels) == 0 {
		return nil
	}
	out, err := composeSideBySide(panels)
	if err != nil {
		r.logger.Warn("Chart composition failed", applog.FieldUserID, user.ID, "error", err)
		return nil
	}
	return out
}

func (r *Renderer) safePanel(p panel, spending core.Spending) (img []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img, err = nil, fmt.Errorf("panel panicked: %v", rec)
		}
	}()
	return p(spending, r.loc, r.currency)
}

// TopMerchants returns the n highest-spend merchants, largest first. Ties
// keep the order in which merchants first appeared.
func TopMerchants(s core.Spending, n int) []core.MerchantTotal {
	all := s.Merchants()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Amount.Cents > all[j].Amount.Cents
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
