package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/inboxkit/mail-triage/internal/adapters/gate"
	"github.com/inboxkit/mail-triage/internal/adapters/trigger"
	"github.com/inboxkit/mail-triage/internal/config"
	"github.com/inboxkit/mail-triage/internal/core"
	"github.com/inboxkit/mail-triage/internal/factory"
	"github.com/inboxkit/mail-triage/internal/logging"
	"github.com/inboxkit/mail-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	providers := []interface{}{
		config.New,
		logging.InitLogger,
		utils.NewTextProcessor,
		factory.NewLLMFactory,
		factory.NewStoreFactory,

		// Analyzer and store from their factories
		func(f *factory.LLMFactory) (core.Analyzer, error) {
			return f.CreateAnalyzer()
		},
		func(f *factory.StoreFactory) (core.Store, error) {
			return f.CreateStore()
		},

		// Core classifiers
		func(cfg *config.Config, logger *zap.Logger) *core.PreFilter {
			return core.NewPreFilter(cfg.GetFloat64("triage.skip_confidence_threshold"), logger)
		},
		core.NewSenderTypeDetector,
		func() *core.Scorer {
			return core.NewScorer(core.DefaultScoringConfig())
		},

		// Job services
		func(cfg *config.Config, store core.Store, scorer *core.Scorer, logger *zap.Logger) (*core.ReassessmentService, error) {
			reassessCfg, err := cfg.GetReassess()
			if err != nil {
				return nil, err
			}
			return core.NewReassessmentService(store, scorer, core.ReassessmentConfig{
				Lookback:   reassessCfg.Lookback,
				BatchSize:  reassessCfg.BatchSize,
				WriteDelta: reassessCfg.WriteDelta,
			}, logger), nil
		},
		func(cfg *config.Config, store core.Store, analyzer core.Analyzer, logger *zap.Logger) (*core.RetryService, error) {
			retryCfg, err := cfg.GetRetry()
			if err != nil {
				return nil, err
			}
			return core.NewRetryService(store, analyzer, core.RetryConfig{
				Cooldown:    retryCfg.Cooldown,
				MaxErrorAge: retryCfg.MaxErrorAge,
				MaxPerRun:   retryCfg.MaxPerRun,
				ItemDelay:   retryCfg.ItemDelay,
			}, logger), nil
		},
		func(cfg *config.Config, logger *zap.Logger) *core.ActionEngine {
			actionsCfg := cfg.GetActions()
			return core.NewActionEngine(core.ActionConfig{
				ArchiveMinCount:       actionsCfg.ArchiveMinCount,
				RelationshipMinEmails: actionsCfg.RelationshipMinEmails,
				MaxSuggestions:        actionsCfg.MaxSuggestions,
			}, logger)
		},

		// HTTP trigger
		func(
			cfg *config.Config,
			reassessor *core.ReassessmentService,
			retrier *core.RetryService,
			actions *core.ActionEngine,
			store core.Store,
			logger *zap.Logger,
		) *trigger.HTTPTrigger {
			return trigger.NewHTTPTrigger(
				cfg.GetString("server.listen_address"),
				reassessor, retrier, actions, store, logger,
			)
		},

		// Job scheduler
		func(
			cfg *config.Config,
			reassessor *core.ReassessmentService,
			retrier *core.RetryService,
			logger *zap.Logger,
		) (*trigger.Scheduler, error) {
			schedCfg, err := cfg.GetScheduler()
			if err != nil {
				return nil, err
			}
			return trigger.NewScheduler(
				reassessor, retrier,
				schedCfg.ReassessInterval, schedCfg.RetryInterval,
				logger,
			), nil
		},

		// SMTP gate. It runs the cheap path only, so it gets its own
		// triage service without analyzer or store.
		func(
			cfg *config.Config,
			preFilter *core.PreFilter,
			detector *core.SenderTypeDetector,
			logger *zap.Logger,
		) *gate.SMTPGate {
			gateCfg := cfg.GetGate()
			cheap := core.NewTriageService(preFilter, detector, nil, nil, logger)
			return gate.NewSMTPGate(
				cheap, logger,
				gateCfg.ListenAddress,
				gateCfg.RelayAddress,
				gateCfg.RelayPort,
				gateCfg.RelayEnabled,
			)
		},
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}
	return container, nil
}
