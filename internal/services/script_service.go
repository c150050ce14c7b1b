package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

const (
	scriptIDPrefix      = "scr_"
	maxScriptNameLength = 100
	maxScriptCodeBytes  = 64 << 10
)

var (
	ErrScriptInvalidInput = errors.New("script: invalid input")
	ErrScriptNotFound     = errors.New("script: not found")
	ErrScriptConflict     = errors.New("script: conflict")
)

type ScriptServiceDeps struct {
	Scripts     repositories.ScriptRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type scriptService struct {
	scripts repositories.ScriptRepository
	clock   func() time.Time
	newID   func() string
}

var _ ScriptService = (*scriptService)(nil)

func NewScriptService(deps ScriptServiceDeps) (ScriptService, error) {
	if deps.Scripts == nil {
		return nil, errors.New("script service: script repository is required")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = newIDGenerator(scriptIDPrefix)
	}
	return &scriptService{scripts: deps.Scripts, clock: utcClock(deps.Clock), newID: idGen}, nil
}

func (s *scriptService) List(ctx context.Context, placement string) ([]HeadScript, error) {
	return s.list(ctx, placement, false)
}

// ListEnabled returns the snippets rendered into public pages, in injection order.
func (s *scriptService) ListEnabled(ctx context.Context, placement string) ([]HeadScript, error) {
	return s.list(ctx, placement, true)
}

func (s *scriptService) list(ctx context.Context, placement string, enabledOnly bool) ([]HeadScript, error) {
	filter := repositories.ScriptFilter{EnabledOnly: enabledOnly}
	if strings.TrimSpace(placement) != "" {
		normalized, ok := normalizePlacement(placement)
		if !ok {
			return nil, fmt.Errorf("%w: placement must be head or body", ErrScriptInvalidInput)
		}
		filter.Placement = normalized
	}
	scripts, err := s.scripts.List(ctx, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	return scripts, nil
}

func (s *scriptService) Get(ctx context.Context, scriptID string) (HeadScript, error) {
	scriptID = strings.TrimSpace(scriptID)
	if scriptID == "" {
		return HeadScript{}, fmt.Errorf("%w: script id is required", ErrScriptInvalidInput)
	}
	script, err := s.scripts.FindByID(ctx, scriptID)
	if err != nil {
		return HeadScript{}, s.mapError(err)
	}
	return script, nil
}

func (s *scriptService) Create(ctx context.Context, cmd UpsertScriptCommand) (HeadScript, error) {
	now := s.clock()
	script := HeadScript{ID: s.newID(), CreatedAt: now}
	if err := applyScript(&script, cmd, now); err != nil {
		return HeadScript{}, err
	}
	if err := s.scripts.Insert(ctx, script); err != nil {
		return HeadScript{}, s.mapError(err)
	}
	return script, nil
}

func (s *scriptService) Update(ctx context.Context, scriptID string, cmd UpsertScriptCommand) (HeadScript, error) {
	script, err := s.Get(ctx, scriptID)
	if err != nil {
		return HeadScript{}, err
	}
	if err := applyScript(&script, cmd, s.clock()); err != nil {
		return HeadScript{}, err
	}
	if err := s.scripts.Update(ctx, script); err != nil {
		return HeadScript{}, s.mapError(err)
	}
	return script, nil
}

func (s *scriptService) Delete(ctx context.Context, scriptID string) error {
	scriptID = strings.TrimSpace(scriptID)
	if scriptID == "" {
		return fmt.Errorf("%w: script id is required", ErrScriptInvalidInput)
	}
	return s.mapError(s.scripts.Delete(ctx, scriptID))
}

func (s *scriptService) mapError(err error) error {
	return mapRepositoryError(err, ErrScriptNotFound, ErrScriptConflict)
}

// applyScript copies cmd onto script. Code is stored verbatim: it is trusted admin markup.
func applyScript(script *HeadScript, cmd UpsertScriptCommand, now time.Time) error {
	name := sanitizeText(cmd.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrScriptInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxScriptNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrScriptInvalidInput, maxScriptNameLength)
	}
	placement := domain.PlacementHead
	if strings.TrimSpace(cmd.Placement) != "" {
		normalized, ok := normalizePlacement(cmd.Placement)
		if !ok {
			return fmt.Errorf("%w: placement must be head or body", ErrScriptInvalidInput)
		}
		placement = normalized
	}
	code := strings.TrimSpace(cmd.Code)
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrScriptInvalidInput)
	}
	if len(code) > maxScriptCodeBytes {
		return fmt.Errorf("%w: code must be at most %d bytes", ErrScriptInvalidInput, maxScriptCodeBytes)
	}
	if cmd.Order < 0 {
		return fmt.Errorf("%w: order must not be negative", ErrScriptInvalidInput)
	}

	script.Name = name
	script.Placement = placement
	script.Code = code
	script.Enabled = cmd.Enabled
	script.Order = cmd.Order
	script.UpdatedAt = now
	return nil
}

func normalizePlacement(raw string) (string, bool) {
	switch p := strings.ToLower(strings.TrimSpace(raw)); p {
	case domain.PlacementHead, domain.PlacementBody:
		return p, true
	default:
		return "", false
	}
}
