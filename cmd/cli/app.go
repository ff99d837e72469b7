package cli

import (
	"attendance-bridge/internal/attendance/repository"
	"attendance-bridge/internal/attendance/usecase"
	"attendance-bridge/pkg/config"
	"attendance-bridge/pkg/database"
	"attendance-bridge/pkg/hrapi"
	"attendance-bridge/pkg/logging"
	"attendance-bridge/pkg/wecom"
)

// app holds the collaborators shared by the serve, poll and test-send
// commands.
type app struct {
	cfg  *config.Config
	log  logging.Logger
	repo repository.StateRepository
	hr   *hrapi.Client
	chat *wecom.Client
	poll usecase.PollUsecase
}

func newApp(cfg *config.Config, log logging.Logger) (*app, error) {
	repo, err := newStateRepository(cfg)
	if err != nil {
		return nil, err
	}

	hr := hrapi.NewClient(cfg.HRBaseURL, cfg.HTTPTimeout, cfg.Location)
	wc := wecom.NewClient(cfg.WeComBaseURL, cfg.CorpID, cfg.AgentSecret, cfg.AgentID, cfg.HTTPTimeout)

	poll := usecase.NewPollUsecase(hr, hr, wc, repo, cfg.Location, log,
		usecase.WithRetentionDays(cfg.WatermarkRetentionDays))

	return &app{
		cfg:  cfg,
		log:  log,
		repo: repo,
		hr:   hr,
		chat: wc,
		poll: poll,
	}, nil
}

func newStateRepository(cfg *config.Config) (repository.StateRepository, error) {
	switch cfg.StateBackend {
	case config.StateBackendDatabase:
		db, err := database.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewGormStateRepository(db)
	default:
		return repository.NewFileStateRepository(cfg.StateDir)
	}
}
