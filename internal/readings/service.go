// Package readings turns a paid tool request into a stored reading: it
// validates the input, charges the user, asks the model and falls back to a
// static text when the model answer cannot be used.
package readings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"guia_service/internal/ledger"
	"guia_service/internal/store"
	"guia_service/internal/utils"
)

// detachedTimeout bounds the writes that must outlive the request context.
const detachedTimeout = 10 * time.Second

// TextGenerator produces raw model text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	store  store.Store
	ledger *ledger.Service
	gen    TextGenerator
	rng    Randomizer
	now    func() time.Time
	log    *zap.Logger
}

func NewService(s store.Store, l *ledger.Service, gen TextGenerator, log *zap.Logger) *Service {
	return &Service{store: s, ledger: l, gen: gen, rng: globalRand{}, now: time.Now, log: log}
}

// WithRandomizer replaces the card shuffler; used by tests.
func (s *Service) WithRandomizer(rng Randomizer) *Service {
	s.rng = rng
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type Result struct {
	Reading *store.Reading `json:"reading"`
	Balance int64          `json:"balance"`
}

func (s *Service) Generate(ctx context.Context, uid, toolName string, input map[string]string) (*Result, error) {
	tool, err := LookupTool(toolName)
	if err != nil {
		return nil, err
	}

	clean := make(map[string]string, len(input))
	for k, v := range input {
		clean[k] = strings.TrimSpace(v)
	}

	user, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	p, err := tool.prepare(clean, toolEnv{now: s.now(), rng: s.rng, user: user})
	if err != nil {
		return nil, err
	}

	spend, err := s.ledger.Spend(ctx, uid, tool.Cost, tool.Name, "Leitura: "+tool.Title)
	if err != nil {
		return nil, err
	}

	raw, err := s.gen.Generate(ctx, p.prompt)
	if err != nil {
		s.log.Error("gemini generation failed",
			zap.String("uid", uid),
			zap.String("tool", tool.Name),
			zap.Error(err))
		if rerr := s.refund(ctx, uid, spend); rerr != nil {
			return nil, fmt.Errorf("%w: %v (refund failed: %v)", ErrGenerationFailed, err, rerr)
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	result, fallback := parseResult(raw, p.fallback)
	if fallback {
		s.log.Warn("unparseable model output, using fallback",
			zap.String("uid", uid),
			zap.String("tool", tool.Name))
	}
	for k, v := range p.computed {
		result[k] = v
	}

	reading := &store.Reading{
		Tool:     tool.Name,
		Input:    clean,
		Result:   result,
		Cost:     tool.Cost,
		Fallback: fallback,
	}
	// the user already paid for this answer, so it is stored even if the
	// caller has gone away
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()
	if err := s.store.SaveReading(sctx, uid, reading); err != nil {
		if rerr := s.refund(ctx, uid, spend); rerr != nil {
			return nil, fmt.Errorf("save reading: %w (refund failed: %v)", err, rerr)
		}
		return nil, fmt.Errorf("save reading: %w", err)
	}

	return &Result{Reading: reading, Balance: spend.BalanceAfter}, nil
}

// refund gives the spend back on a context detached from the request, so a
// client disconnect or deadline does not leave the user charged.
func (s *Service) refund(ctx context.Context, uid string, spend *store.Transaction) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()
	if _, err := s.ledger.Refund(rctx, uid, spend); err != nil {
		s.log.Error("refund failed",
			zap.String("uid", uid),
			zap.String("transaction", spend.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// parseResult decodes the model output as a JSON object. It reports true when
// the fallback had to be used.
func parseResult(raw string, fallback map[string]interface{}) (map[string]interface{}, bool) {
	var out map[string]interface{}
	err := json.Unmarshal([]byte(utils.GeminiGetCleanedJsonResponse(raw)), &out)
	if err != nil || len(out) == 0 {
		copied := make(map[string]interface{}, len(fallback))
		for k, v := range fallback {
			copied[k] = v
		}
		return copied, true
	}
	return out, false
}

func (s *Service) List(ctx context.Context, uid string, limit int) ([]store.Reading, error) {
	return s.store.ListReadings(ctx, uid, limit)
}

func (s *Service) Get(ctx context.Context, uid, id string) (*store.Reading, error) {
	r, err := s.store.GetReading(ctx, uid, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}
	return r, err
}
