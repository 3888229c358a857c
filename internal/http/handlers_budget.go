package http

import (
	"fmt"
	"net/http"
	"sort"

	"finman/internal/core"
)

type categoryBudget struct {
	Category string     `json:"category"`
	Budget   core.Money `json:"budget"`
}

type budgetResponse struct {
	MonthlyBudget   core.Money       `json:"monthly_budget"`
	CategoryBudgets []categoryBudget `json:"category_budgets"`
	CurrentMonth    core.Month       `json:"current_month"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	cfg, err := s.svc.Budgets.Get(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := budgetResponse{
		MonthlyBudget:   cfg.MonthlyBudget,
		CategoryBudgets: make([]categoryBudget, 0, len(cfg.CategoryBudgets)),
		CurrentMonth:    core.CurrentMonth(),
	}
	for category, amount := range cfg.CategoryBudgets {
		resp.CategoryBudgets = append(resp.CategoryBudgets, categoryBudget{Category: category, Budget: amount})
	}
	sort.Slice(resp.CategoryBudgets, func(i, j int) bool {
		return resp.CategoryBudgets[i].Category < resp.CategoryBudgets[j].Category
	})
	NewJSONResponse().Data(resp).Write(w)
}

func (s *Server) handleSetMonthlyBudget(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := requireAmount(p, "monthlyBudget", "monthly_budget")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.svc.Budgets.SetMonthlyBudget(ctx, amount); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message("Monthly budget updated successfully!").
		Field("monthlyBudget", amount).
		Write(w)
}

func (s *Server) handleSetCategoryBudget(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	category := p.Get("category")
	if category == "" {
		BadRequestError("Category is required.").Write(w)
		return
	}
	amount, err := requireAmount(p, "budget", "amount")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.svc.Budgets.SetCategoryBudget(ctx, category, amount); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message(fmt.Sprintf("Budget for %s updated successfully!", category)).
		Field("category", category).
		Field("budget", amount).
		Write(w)
}

func (s *Server) handleDeleteCategoryBudget(w http.ResponseWriter, r *http.Request) {
	category := sanitizeInput(r.PathValue("category"))
	if category == "" {
		BadRequestError("Category is required.").Write(w)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.svc.Budgets.DeleteCategoryBudget(ctx, category); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message(fmt.Sprintf("Budget for %s deleted successfully!", category)).
		Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	prefs, err := s.svc.Settings.Get(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(prefs).Write(w)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	saved, err := s.svc.Settings.Save(ctx, core.Preferences{
		DisplayName: p.Get("displayName", "display_name"),
		Currency:    p.Get("currency"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message("Settings saved successfully!").
		Field("settings", saved).
		Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	cats := s.categories(ctx)
	if cats == nil {
		cats = []string{}
	}
	NewJSONResponse().Data(cats).Write(w)
}
