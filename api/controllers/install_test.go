package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/haggle-backend/internal/install"
	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
)

type stubInstallService struct {
	shop, code string
	err        error
}

func (s *stubInstallService) Complete(_ context.Context, shop, code string) error {
	s.shop, s.code = shop, code
	return s.err
}

func TestInstallCallbackSuccess(t *testing.T) {
	svc := &stubInstallService{}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&shop=demo.myshopify.com", nil)
	rec := httptest.NewRecorder()

	InstallCallback(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, installedMessage, rec.Body.String())
	assert.Equal(t, "demo.myshopify.com", svc.shop)
	assert.Equal(t, "abc", svc.code)
}

func TestInstallCallbackMissingParams(t *testing.T) {
	svc := &stubInstallService{err: pkgerrors.New(pkgerrors.CodeValidation, install.MissingParamsMessage)}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?shop=demo.myshopify.com", nil)
	rec := httptest.NewRecorder()

	InstallCallback(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), install.MissingParamsMessage)
}
