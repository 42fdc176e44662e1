package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/wizard"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

func newConfiguratorHarness(t *testing.T) (configurator, *wizard.Wizard, boxd.ServerConfig) {
	t.Helper()
	config := boxd.DefaultServerConfig().DevPaths(t.TempDir())
	config.DevMode = true
	log, _ := test.NewNullLogger()
	wiz := wizard.NewWizard(config, &fakeServices{}, &fakeState{}, log)
	return newConfigurator(config, wiz, log), wiz, config
}

func post(t *testing.T, c configurator, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, c configurator, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestConfiguratorHealth(t *testing.T) {
	c, _, _ := newConfiguratorHarness(t)
	assert.JSONEq(t, `{"status":"ok","configured":false}`, get(t, c, "/health").Body.String())
	assert.JSONEq(t, `{"configured":false,"step":"seed"}`, get(t, c, "/api/state").Body.String())
}

func TestConfiguratorFlow(t *testing.T) {
	c, wiz, config := newConfiguratorHarness(t)

	rec := post(t, c, "/api/seed", `{"action":"generate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, strings.Fields(body["mnemonic"].(string)), 12)
	assert.Equal(t, "seed", body["step"])

	rec = post(t, c, "/api/seed", `{"action":"confirm","confirmed":"no"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, c, "/api/seed", `{"action":"import","mnemonic":"`+testMnemonic+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "password", decode(t, rec)["step"])

	rec = post(t, c, "/api/password", `{"password1":"short","password2":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password must be at least 8 characters", decode(t, rec)["error"])

	rec = post(t, c, "/api/password", `{"password1":"longenough","password2":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "complete", decode(t, rec)["step"])

	rec = post(t, c, "/api/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	wiz.Wait()

	mnemonic, err := os.ReadFile(config.Wizard.MnemonicFile)
	require.NoError(t, err)
	assert.Equal(t, testMnemonic+"\n", string(mnemonic))

	assert.JSONEq(t, `{"status":"ok","configured":true}`, get(t, c, "/health").Body.String())
	for _, path := range []string{"/api/seed", "/api/password", "/api/complete"} {
		rec := post(t, c, path, `{"action":"generate"}`)
		assert.Equal(t, http.StatusConflict, rec.Code, path)
		assert.Equal(t, "already configured", decode(t, rec)["error"])
	}
}

func TestConfiguratorRejectsOutOfOrderSteps(t *testing.T) {
	c, _, _ := newConfiguratorHarness(t)

	assert.Equal(t, http.StatusBadRequest, post(t, c, "/api/password", `{"password1":"longenough","password2":"longenough"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, c, "/api/complete", "").Code)
	assert.Equal(t, http.StatusBadRequest, post(t, c, "/api/seed", `{"action":"dance"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, c, "/api/seed", `{`).Code)
}
