package sgp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isp-agent-service/internal/models"
)

func testTenant(url string) models.Tenant {
	return models.Tenant{ID: 7, Name: "NetFibra", SGPURL: url + "/", SGPToken: "tenant-secret"}
}

func TestCallInjectsTenantCredentials(t *testing.T) {
	var path string
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		path = r.URL.Path
		form = r.PostForm
		_, _ = w.Write([]byte(`{"ok": true, "dias": 3}`))
	}))
	defer srv.Close()

	c := New(time.Second, nil)
	out := c.Call(context.Background(), testTenant(srv.URL), "12345678901", "/api/ura/consultacliente/",
		map[string]string{"token": "attacker", "contrato": "55"}, "POST")

	require.NotNil(t, out)
	assert.Equal(t, "/api/ura/consultacliente/", path)
	assert.Equal(t, "tenant-secret", form.Get("token"))
	assert.Equal(t, "ai_assistant", form.Get("app"))
	assert.Equal(t, "12345678901", form.Get("cpfcnpj"))
	assert.Equal(t, "55", form.Get("contrato"))
	assert.Equal(t, "3", String(out["dias"]))
}

func TestCallGetUsesQueryString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "tenant-secret", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	out := New(time.Second, nil).Call(context.Background(), testTenant(srv.URL), "1", "x", nil, "get")
	assert.NotNil(t, out)
}

func TestCallReturnsNilOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	c := New(time.Second, nil)
	assert.Nil(t, c.Call(context.Background(), testTenant(srv.URL), "1", "x", nil, "POST"))
	assert.Nil(t, c.Call(context.Background(), models.Tenant{}, "1", "x", nil, "POST"))
	assert.Nil(t, c.Titulos(context.Background(), models.Tenant{}, "1"))

	srv.Close()
	assert.Nil(t, c.Call(context.Background(), testTenant(srv.URL), "1", "x", nil, "POST"))
}

func TestConsultaClienteParsesContracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"contratos":[{"contratoId":1001},{"contratoId":1002,"login":"joao@fibra"}]}`))
	}))
	defer srv.Close()

	p := New(time.Second, nil).ConsultaCliente(context.Background(), testTenant(srv.URL), "1")
	require.NotNil(t, p)
	assert.Equal(t, "1001", p.FirstContractID())
	assert.Equal(t, "joao@fibra", p.PPPoELogin())
}

func TestAbrirChamadoSendsContractOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		assert.Equal(t, "/api/ura/chamado/", r.URL.Path)
		assert.Equal(t, "1001", r.PostForm.Get("contrato"))
		assert.Equal(t, "1", r.PostForm.Get("ocorrenciatipo"))
		assert.Empty(t, r.PostForm.Get("cpfcnpj"))
		assert.Contains(t, r.PostForm.Get("conteudo"), "Motivo: LED vermelho")
		_, _ = w.Write([]byte(`{"protocolo":"998877"}`))
	}))
	defer srv.Close()

	out := New(time.Second, nil).AbrirChamado(context.Background(), testTenant(srv.URL), "1001", "LED vermelho")
	require.NotNil(t, out)
	assert.Equal(t, "998877", String(out["protocolo"]))
}

func TestRecordsMissingKeyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"titulos":[{"id":1},"junk"]}`))
	}))
	defer srv.Close()

	c := New(time.Second, nil)
	titles := c.Titulos(context.Background(), testTenant(srv.URL), "1")
	require.Len(t, titles, 1)
	assert.Equal(t, "1", String(titles[0]["id"]))
	assert.NotNil(t, c.SegundaVia(context.Background(), testTenant(srv.URL), "1"))
	assert.Empty(t, c.SegundaVia(context.Background(), testTenant(srv.URL), "1"))
}
