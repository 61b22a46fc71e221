package commands

import (
	"bufio"
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/internal/config"
	"github.com/jakechorley/study-scheduler/pkg/clients/storeclient"
	"github.com/jakechorley/study-scheduler/pkg/core/refdata"
	"github.com/jakechorley/study-scheduler/pkg/core/services"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg          *config.Config
	Store        *storeclient.Client
	RefData      *refdata.Repository
	Orchestrator *services.Orchestrator
	Registry     *prometheus.Registry
	Logger       *zap.Logger
	Ctx          context.Context

	// In is shared by confirmation prompts and the interactive session
	In *bufio.Reader
}
