package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/conductor"
	"github.com/lnbitsbox/boxd/pkg/wizard"
	"github.com/sirupsen/logrus"
)

// Setup is the first-run wizard as seen by the configurator API.
type Setup interface {
	Configured() bool
	Step() string
	Generate() (string, error)
	Confirm(confirmed string) error
	Import(mnemonic string) error
	SetPassword(ctx context.Context, password1, password2 string) error
	Complete() error
}

var _ Setup = &wizard.Wizard{}

// wizard errors the operator can fix by resubmitting
var setupValidationErrors = []error{
	wizard.ErrUnknownAction,
	wizard.ErrNotConfirmed,
	wizard.ErrMnemonicRequired,
	wizard.ErrInvalidMnemonic,
	wizard.ErrSeedRequired,
	wizard.ErrPasswordRequired,
	wizard.ErrPasswordTooShort,
	wizard.ErrPasswordMismatch,
	wizard.ErrStepsIncomplete,
}

func ConfiguratorAPI(config boxd.ServerConfig, setup Setup, log logrus.FieldLogger) conductor.Service {
	return newConfigurator(config, setup, log)
}

func newConfigurator(config boxd.ServerConfig, setup Setup, log logrus.FieldLogger) configurator {
	c := configurator{
		config: config,
		setup:  setup,
		log:    log.WithField("system", "configurator"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", c.health)
	r.Get("/api/state", c.getState)
	r.Post("/api/seed", c.seed)
	r.Post("/api/password", c.password)
	r.Post("/api/complete", c.complete)
	c.router = r
	return c
}

type configurator struct {
	config boxd.ServerConfig
	setup  Setup
	router chi.Router
	log    logrus.FieldLogger
}

func (t configurator) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", t.config.Wizard.Bind, t.config.Wizard.Port),
			Handler: t.router,
		}
		go func() {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				t.log.Fatalf("HTTP server configurator ListenAndServe: %v", err)
			}
		}()

		started <- true
		ctx := <-stop
		srv.Shutdown(ctx)
		stopped <- true
	}()
	return nil
}

func (t configurator) health(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, map[string]any{"status": "ok", "configured": t.setup.Configured()})
}

func (t configurator) getState(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, map[string]any{
		"configured": t.setup.Configured(),
		"step":       t.setup.Step(),
	})
}

type SeedRequestBody struct {
	Action    string `json:"action"`
	Confirmed string `json:"confirmed"`
	Mnemonic  string `json:"mnemonic"`
}

func (t configurator) seed(w http.ResponseWriter, r *http.Request) {
	var req SeedRequestBody
	if err := decodeBody(r, &req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "Error parsing payload")
		return
	}

	switch req.Action {
	case "generate":
		mnemonic, err := t.setup.Generate()
		if err != nil {
			t.sendSetupError(w, err)
			return
		}
		sendResponse(w, map[string]any{"mnemonic": mnemonic, "step": t.setup.Step()})
	case "confirm":
		if err := t.setup.Confirm(req.Confirmed); err != nil {
			t.sendSetupError(w, err)
			return
		}
		sendResponse(w, map[string]any{"success": true, "step": t.setup.Step()})
	case "import":
		if err := t.setup.Import(req.Mnemonic); err != nil {
			t.sendSetupError(w, err)
			return
		}
		sendResponse(w, map[string]any{"success": true, "step": t.setup.Step()})
	default:
		if t.setup.Configured() {
			t.sendSetupError(w, wizard.ErrConfigured)
			return
		}
		t.sendSetupError(w, wizard.ErrUnknownAction)
	}
}

type PasswordRequestBody struct {
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

func (t configurator) password(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequestBody
	if err := decodeBody(r, &req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "Error parsing payload")
		return
	}

	if err := t.setup.SetPassword(r.Context(), req.Password1, req.Password2); err != nil {
		t.sendSetupError(w, err)
		return
	}
	sendResponse(w, map[string]any{"success": true, "step": t.setup.Step()})
}

func (t configurator) complete(w http.ResponseWriter, r *http.Request) {
	if err := t.setup.Complete(); err != nil {
		t.sendSetupError(w, err)
		return
	}
	sendResponse(w, map[string]any{"success": true})
}

func (t configurator) sendSetupError(w http.ResponseWriter, err error) {
	if errors.Is(err, wizard.ErrConfigured) {
		sendErrorResponse(w, http.StatusConflict, err.Error())
		return
	}
	for _, v := range setupValidationErrors {
		if errors.Is(err, v) {
			sendErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	t.log.WithError(err).Error("setup step failed")
	sendErrorResponse(w, http.StatusInternalServerError, err.Error())
}
