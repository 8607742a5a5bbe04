package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
)

type apiTransaction struct {
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Type          string `json:"type"`
	Time          string `json:"time"`
}

type apiData struct {
	Balance             string           `json:"balance"`
	BalanceDisplay      string           `json:"balance_display"`
	Transactions        []apiTransaction `json:"transactions"`
	MonthlySpent        string           `json:"monthly_spent"`
	MonthlySpentDisplay string           `json:"monthly_spent_display"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())

	data := s.page(r, "Dashboard")
	if u.BudgetSet {
		data.Budget = u.MonthlyBudget.Format(s.opts.Currency)
		data.BudgetValue = centsDecimal(u.MonthlyBudget)
		data.ReportEmail = u.ReportEmail
	} else {
		data.Budget = "Not set"
	}
	s.render(w, r, http.StatusOK, "dashboard.html", data)
}

// handleAPIData pulls the feed, stores the batch for the current user and
// returns balance, recent transactions and this month's spend.
func (s *Server) handleAPIData(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())

	dash, err := s.deps.Dashboard.Refresh(r.Context(), u.ID, s.now())
	if err != nil {
		s.logger.WithComponent(applog.ComponentFeed).ErrorContext(r.Context(), "Dashboard refresh failed",
			applog.FieldUserID, u.ID,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Unable to fetch transaction data"})
		return
	}

	out := apiData{
		Balance:             dash.Balance.StringFixed(2),
		BalanceDisplay:      formatDecimal(dash.Balance, s.opts.Currency),
		Transactions:        make([]apiTransaction, 0, len(dash.Transactions)),
		MonthlySpent:        centsDecimal(dash.MonthlySpent),
		MonthlySpentDisplay: dash.MonthlySpent.Format(s.opts.Currency),
	}
	for _, it := range dash.Transactions {
		out.Transactions = append(out.Transactions, apiTransaction{
			Merchant:      it.Merchant,
			Amount:        it.Amount.StringFixed(2),
			AmountDisplay: formatDecimal(it.Amount, s.opts.Currency),
			Type:          it.Type,
			Time:          it.Time,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSetBudget stores the monthly budget and report address. Saving the
// same values twice leaves the account unchanged.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())

	p := NewRequestBodyParser(r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}

	settings, err := s.deps.Accounts.SetBudget(r.Context(), u, p.Get("monthly_budget"), p.Get("report_email"))
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Invalid budget amount").Write(w)
		return
	case errors.Is(err, core.ErrInvalidEmail):
		UnprocessableEntityError("Invalid report email address").Write(w)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Saving budget failed",
			applog.FieldUserID, u.ID, "error", err)
		InternalServerError("Could not save your budget").Write(w)
		return
	}
	s.forgetUser(u.ID)

	s.logger.InfoContext(r.Context(), "Budget saved",
		applog.FieldUserID, u.ID,
		applog.FieldAmountCents, settings.MonthlyBudget.Cents)

	budget := settings.MonthlyBudget.Format(s.opts.Currency)
	msg := fmt.Sprintf(`<div class="success">Monthly budget set to %s. Reports go to %s.</div>`,
		template.HTMLEscapeString(budget),
		template.HTMLEscapeString(settings.ReportEmail))

	NewHTMXResponse().
		TriggerBudgetSaved(settings.MonthlyBudget.Cents).
		TriggerSuccessNotification("Budget saved").
		BodyHTML(msg).
		Write(w)
}
