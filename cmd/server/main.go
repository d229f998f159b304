package main

import (
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/vklymenko/castcalc/internal/catalog"
	"github.com/vklymenko/castcalc/internal/config"
	"github.com/vklymenko/castcalc/internal/costing"
	"github.com/vklymenko/castcalc/internal/db"
	"github.com/vklymenko/castcalc/internal/export"
	"github.com/vklymenko/castcalc/internal/ledger"
	"github.com/vklymenko/castcalc/internal/materials"
	"github.com/vklymenko/castcalc/internal/migrations"
	"github.com/vklymenko/castcalc/internal/seed"
)

type server struct {
	auth     *authService
	db       *sql.DB
	stages   *catalog.StageCatalog
	rows     []materials.SpecRow
	calc     *costing.Calculator
	sessions *sessionStore

	// details is reloaded after admin edits; the stage order and the
	// material catalog stay immutable for the process lifetime.
	mu      sync.RWMutex
	details *catalog.DetailRegistry
}

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
}

type loginViewData struct {
	baseViewData
}

type detailOption struct {
	Name      string
	MassKg    string
	Available bool
	Selected  bool
}

type portionView struct {
	Index     int
	StopStage string
	Quantity  int
	Computed  bool
	Sum       string
}

type reportLineView struct {
	No        int
	Operation string
	Unit      string
	Price     string
	Quantity  string
	TotalCost string
	Stage     string
	Portion   string
	MassKg    string
}

type calculatorViewData struct {
	baseViewData
	Details        []detailOption
	SelectedDetail string
	UnitMassKg     string
	StopStages     []string
	Portions       []portionView
	HasReport      bool
	ReportLines    []reportLineView
	GrandTotal     string
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, "migrations"); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
	}

	stats, err := seed.Run(database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
	if err != nil {
		log.Fatalf("failed to seed reference data: %v", err)
	}
	if stats.Inserts > 0 {
		log.Printf("seeded %d reference rows", stats.Inserts)
	}

	stages, err := catalog.LoadStageCatalog(database)
	if err != nil {
		log.Fatalf("failed to load stage catalog: %v", err)
	}
	stops := stages.StopStages()
	if len(stops) == 0 {
		log.Fatalf("stop stage whitelist is empty")
	}

	details, err := catalog.LoadDetailRegistry(database)
	if err != nil {
		log.Fatalf("failed to load detail registry: %v", err)
	}

	// Loaded once; cached and treated as immutable from here on.
	rows, err := materials.Load(cfg.CatalogPath, stages)
	if err != nil {
		log.Fatalf("failed to load material catalog: %v", err)
	}
	log.Printf("loaded %d material specification rows from %s", len(rows), cfg.CatalogPath)

	calc := costing.NewCalculator(stages)
	defaultStop := stops[0]
	sessions := newSessionStore(cfg.SessionSecret, func() *ledger.Ledger {
		return ledger.New(calc, rows, defaultStop)
	})

	srv := &server{
		auth:     newAuthService(database, cfg.SessionSecret),
		db:       database,
		stages:   stages,
		rows:     rows,
		calc:     calc,
		sessions: sessions,
		details:  details,
	}

	r := chi.NewRouter()
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	r.Get("/", srv.handleCalculator)
	r.Post("/detail", srv.handleDetailSelect)
	r.Post("/portions/add", srv.handlePortionAdd)
	r.Post("/portions/remove", srv.handlePortionRemove)
	r.Post("/portions/compute", srv.handlePortionCompute)
	r.Post("/compute", srv.handleComputeAll)
	r.Get("/export", srv.handleExport)
	r.Get("/login", srv.handleLoginForm)
	r.Post("/login", srv.handleLoginSubmit)
	r.Post("/logout", srv.handleLogout)
	r.Route("/admin", func(r chi.Router) {
		r.Use(srv.adminMiddleware)
		r.Get("/details", srv.handleAdminDetailsForm)
		r.Post("/details/{id}", srv.handleAdminDetailUpdate)
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) registry() *catalog.DetailRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.details
}

func (s *server) reloadDetails() error {
	details, err := catalog.LoadDetailRegistry(s.db)
	if err != nil {
		return fmt.Errorf("reload detail registry: %w", err)
	}

	s.mu.Lock()
	s.details = details
	s.mu.Unlock()
	return nil
}

func (s *server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	led := s.sessions.ledgerFor(w, r)
	registry := s.registry()

	// New sessions start on the first available detail; the user never
	// computes against an unavailable one.
	if led.Detail() == "" {
		if d, err := registry.FirstAvailable(); err == nil {
			led.SetDetail(d.Name, d.MassKg)
		}
	}

	view := calculatorViewData{
		baseViewData: baseViewData{
			ErrorMessage:   r.URL.Query().Get("error"),
			SuccessMessage: r.URL.Query().Get("success"),
		},
		SelectedDetail: led.Detail(),
		StopStages:     s.stages.StopStages(),
	}
	if led.Detail() != "" {
		view.UnitMassKg = led.MassKg().String()
	}

	for _, d := range registry.List() {
		view.Details = append(view.Details, detailOption{
			Name:      d.Name,
			MassKg:    d.MassKg.String(),
			Available: d.Available,
			Selected:  d.Name == led.Detail(),
		})
	}

	for i, p := range led.Portions() {
		pv := portionView{
			Index:     i,
			StopStage: p.StopStage,
			Quantity:  p.Quantity,
			Computed:  p.Computed(),
		}
		if p.Computed() {
			pv.Sum = p.Result.Sum.StringFixed(2)
		}
		view.Portions = append(view.Portions, pv)
	}

	report := led.Report()
	if len(report.Lines) > 0 {
		view.HasReport = true
		view.GrandTotal = report.GrandTotal.StringFixed(2)
		for i, line := range report.Lines {
			view.ReportLines = append(view.ReportLines, reportLineView{
				No:        i + 1,
				Operation: line.OperationName,
				Unit:      line.Unit,
				Price:     line.Price.StringFixed(2),
				Quantity:  line.ConsumedQuantity.String(),
				TotalCost: line.TotalCost.StringFixed(2),
				Stage:     line.Stage,
				Portion:   line.PortionLabel,
				MassKg:    line.PortionMassKg.String(),
			})
		}
	}

	s.renderTemplate(w, "calculator.html", view)
}

func (s *server) handleDetailSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	led := s.sessions.ledgerFor(w, r)
	registry := s.registry()
	name := strings.TrimSpace(r.FormValue("detail"))

	available, err := registry.IsAvailable(name)
	if err != nil {
		redirectWithError(w, r, "/", "unknown detail selected")
		return
	}
	if !available {
		// The current (available) detail stays selected instead.
		redirectWithError(w, r, "/", "This detail is not yet available for calculation.")
		return
	}

	mass, err := registry.MassOf(name)
	if err != nil {
		redirectWithError(w, r, "/", "unknown detail selected")
		return
	}

	led.SetDetail(name, mass)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handlePortionAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	led := s.sessions.ledgerFor(w, r)
	if err := s.syncPortions(r, led); err != nil {
		redirectWithError(w, r, "/", err.Error())
		return
	}

	after := len(led.Portions()) - 1
	if raw := r.FormValue("after"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			redirectWithError(w, r, "/", "after must be an index")
			return
		}
		after = parsed
	}

	led.AddPortion(after)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handlePortionRemove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	led := s.sessions.ledgerFor(w, r)
	if err := s.syncPortions(r, led); err != nil {
		redirectWithError(w, r, "/", err.Error())
		return
	}

	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		redirectWithError(w, r, "/", "index must be numeric")
		return
	}

	// Removing the first portion (or a stale index) is a silent no-op.
	led.RemovePortion(index)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handlePortionCompute(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	led := s.sessions.ledgerFor(w, r)
	if err := s.syncPortions(r, led); err != nil {
		redirectWithError(w, r, "/", err.Error())
		return
	}

	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		redirectWithError(w, r, "/", "index must be numeric")
		return
	}

	if err := led.Compute(index); err != nil {
		switch {
		case errors.Is(err, ledger.ErrZeroQuantity):
			redirectWithError(w, r, "/", "Enter a quantity greater than zero before computing.")
		case errors.Is(err, ledger.ErrNoDetail):
			redirectWithError(w, r, "/", "Select a detail before computing.")
		default:
			log.Printf("compute portion failed: %v", err)
			http.Error(w, "failed to compute portion", http.StatusInternalServerError)
		}
		return
	}

	portions := led.Portions()
	if index >= 0 && index < len(portions) && portions[index].Computed() && len(portions[index].Result.Lines) == 0 {
		redirectWithError(w, r, "/", "No matching material specification for this stop stage.")
		return
	}

	redirectWithSuccess(w, r, "/", "Portion computed.")
}

func (s *server) handleComputeAll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	led := s.sessions.ledgerFor(w, r)
	if err := s.syncPortions(r, led); err != nil {
		redirectWithError(w, r, "/", err.Error())
		return
	}

	computed, err := led.ComputeAll()
	if err != nil {
		if errors.Is(err, ledger.ErrNoDetail) {
			redirectWithError(w, r, "/", "Select a detail before computing.")
			return
		}
		log.Printf("compute all failed: %v", err)
		http.Error(w, "failed to compute portions", http.StatusInternalServerError)
		return
	}

	if computed == 0 {
		redirectWithError(w, r, "/", "No portions with a positive quantity to compute.")
		return
	}

	if len(led.Report().Lines) == 0 {
		redirectWithError(w, r, "/", "No matching material specification for the selected stages.")
		return
	}

	redirectWithSuccess(w, r, "/", fmt.Sprintf("Computed %d portions.", computed))
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	led := s.sessions.ledgerFor(w, r)

	report := led.Report()
	if len(report.Lines) == 0 {
		redirectWithError(w, r, "/", "Nothing computed yet; nothing to export.")
		return
	}

	f, err := export.BuildReport(led.Detail(), report)
	if err != nil {
		log.Printf("build report failed: %v", err)
		http.Error(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(led.Detail(), report)))
	if err := f.Write(w); err != nil {
		log.Printf("write report failed: %v", err)
	}
}

// syncPortions copies the submitted per-portion form values into the
// ledger before any action runs, mirroring what the user sees on screen.
// Unchanged portions are left alone so their computed results survive.
func (s *server) syncPortions(r *http.Request, led *ledger.Ledger) error {
	for i, p := range led.Portions() {
		stageKey := fmt.Sprintf("stage_%d", i)
		qtyKey := fmt.Sprintf("qty_%d", i)
		if !r.Form.Has(stageKey) && !r.Form.Has(qtyKey) {
			continue
		}

		stage := p.StopStage
		if r.Form.Has(stageKey) {
			stage = strings.TrimSpace(r.FormValue(stageKey))
			if !s.stages.IsStopStage(stage) {
				return fmt.Errorf("%q is not a valid stop stage", stage)
			}
		}

		quantity := p.Quantity
		if r.Form.Has(qtyKey) {
			parsed, err := strconv.Atoi(strings.TrimSpace(r.FormValue(qtyKey)))
			if err != nil || parsed < 0 {
				return fmt.Errorf("quantity for portion %d must be a non-negative integer", i+1)
			}
			quantity = parsed
		}

		if stage == p.StopStage && quantity == p.Quantity {
			continue
		}
		if err := led.UpdatePortion(i, stage, quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if isAuthenticated(r, s.auth) {
		http.Redirect(w, r, "/admin/details", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login.html", loginViewData{})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	valid, err := s.auth.validateCredentials(email, password)
	if err != nil {
		http.Error(w, "authentication error", http.StatusInternalServerError)
		return
	}
	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "login.html", loginViewData{baseViewData: baseViewData{ErrorMessage: "Invalid credentials. Try again."}})
		return
	}

	s.auth.setSessionCookie(w, email)
	http.Redirect(w, r, "/admin/details", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r, s.auth) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}

func redirectWithSuccess(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?success="+url.QueryEscape(message), http.StatusSeeOther)
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	templates, err := template.ParseFiles(
		"web/templates/layout.html",
		"web/templates/"+page,
	)
	if err != nil {
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}
