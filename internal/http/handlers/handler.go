package handlers

import (
	"momo-storefront/internal/admin"
	"momo-storefront/internal/auth"
	"momo-storefront/internal/config"
	"momo-storefront/internal/storefront"

	"go.uber.org/zap"
)

type Handler struct {
	Portal    *storefront.Portal
	Dashboard *admin.Dashboard
	Sessions  *auth.Sessions
	Logger    *zap.Logger
	Config    config.Config
}
