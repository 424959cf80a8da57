package controllers

import (
	"net/http"

	"github.com/angelmondragon/haggle-backend/api/responses"
	"github.com/angelmondragon/haggle-backend/api/validators"
	"github.com/angelmondragon/haggle-backend/internal/install"
	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
)

const installedMessage = "App installed successfully. Token received. You can close this tab."

// InstallCallback completes the OAuth install redirect.
func InstallCallback(svc install.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMisconfigured, "install service unavailable"))
			return
		}

		shop := validators.QueryValue(r, "shop", 255)
		code := validators.QueryValue(r, "code", 512)

		if err := svc.Complete(ctx, shop, code); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteText(w, http.StatusOK, installedMessage)
	}
}
